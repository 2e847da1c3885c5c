package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flyerflutter/dealcomb/app/area"
	"github.com/flyerflutter/dealcomb/app/deal"
	"github.com/flyerflutter/dealcomb/app/flipp"
)

// Coordinator serializes refreshes so each area has at most one fetch
// sweep in flight. Concurrent callers for the same area share that
// sweep's outcome instead of issuing duplicate upstream traffic, and a
// running sweep is never cancelled just because the caller that
// triggered it went away.
type Coordinator struct {
	searcher        Searcher
	normalizer      *deal.Normalizer
	dealStore       DealStore
	areaStore       AreaStore
	areas           *area.ConfigCache
	freshnessWindow time.Duration
	failureCooldown time.Duration
	refreshTimeout  time.Duration
	now             func() time.Time

	mu     sync.Mutex
	states map[string]*areaState
}

type areaState struct {
	inflight    chan struct{} // non-nil while a sweep is running
	lastFailure time.Time
}

type Options struct {
	FreshnessWindow time.Duration
	FailureCooldown time.Duration
	RefreshTimeout  time.Duration
}

func NewCoordinator(searcher Searcher, normalizer *deal.Normalizer, dealStore DealStore, areaStore AreaStore, areas *area.ConfigCache, opts Options) *Coordinator {
	if opts.FreshnessWindow == 0 {
		opts.FreshnessWindow = 168 * time.Hour
	}
	if opts.FailureCooldown == 0 {
		opts.FailureCooldown = 5 * time.Minute
	}
	if opts.RefreshTimeout == 0 {
		opts.RefreshTimeout = 10 * time.Minute
	}

	return &Coordinator{
		searcher:        searcher,
		normalizer:      normalizer,
		dealStore:       dealStore,
		areaStore:       areaStore,
		areas:           areas,
		freshnessWindow: opts.FreshnessWindow,
		failureCooldown: opts.FailureCooldown,
		refreshTimeout:  opts.RefreshTimeout,
		now:             time.Now,
		states:          make(map[string]*areaState),
	}
}

// EnsureFresh makes sure the store holds usable data for an area before
// a read. If the area was refreshed inside the freshness window it
// returns immediately; otherwise it joins or starts a refresh and waits
// for it. When the refresh fails, stale rows are still served if any
// exist. The caller's context only bounds the wait, not the sweep.
func (c *Coordinator) EnsureFresh(ctx context.Context, areaKey string) (Status, error) {
	key, err := flipp.NormalizeAreaKey(areaKey)
	if err != nil {
		return "", err
	}

	fresh, err := c.isFresh(key)
	if err != nil {
		return "", err
	}
	if fresh {
		return StatusFresh, nil
	}

	wait, started, err := c.joinOrStart(key)
	if err != nil {
		return "", err
	}
	if wait == nil {
		// In failure cooldown, no sweep running. Serve what we have.
		return c.staleOrNoData(key)
	}
	if started {
		slog.Info("Refresh started", "area", key)
	}

	select {
	case <-wait:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	fresh, err = c.isFresh(key)
	if err != nil {
		return "", err
	}
	if fresh {
		return StatusFresh, nil
	}
	return c.staleOrNoData(key)
}

// TriggerRefresh starts a background sweep for an area unless one is
// already running or the area is in failure cooldown. It reports
// whether a new sweep was started.
func (c *Coordinator) TriggerRefresh(areaKey string) (bool, error) {
	key, err := flipp.NormalizeAreaKey(areaKey)
	if err != nil {
		return false, err
	}

	wait, started, err := c.joinOrStart(key)
	if err != nil {
		return false, err
	}
	_ = wait
	return started, nil
}

// joinOrStart returns a channel that closes when the in-flight sweep
// for the area completes, starting one if needed. A nil channel means
// no sweep is running and none was started (failure cooldown).
func (c *Coordinator) joinOrStart(key string) (<-chan struct{}, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.states[key]
	if !ok {
		st = &areaState{}
		c.states[key] = st
	}

	if st.inflight != nil {
		return st.inflight, false, nil
	}
	if !st.lastFailure.IsZero() && c.now().Sub(st.lastFailure) < c.failureCooldown {
		return nil, false, nil
	}

	done := make(chan struct{})
	st.inflight = done
	go c.runSweep(key, st, done)
	return done, true, nil
}

func (c *Coordinator) runSweep(key string, st *areaState, done chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
	defer cancel()

	err := c.refreshArea(ctx, key)

	c.mu.Lock()
	st.inflight = nil
	if err != nil {
		st.lastFailure = c.now()
	} else {
		st.lastFailure = time.Time{}
	}
	c.mu.Unlock()
	close(done)

	if err != nil {
		slog.Error("Refresh failed", "area", key, "error", err)
	}
}

// refreshArea runs the full fetch-normalize-persist sweep for one area.
// Individual query failures are tolerated; the sweep fails only when
// every query fails.
func (c *Coordinator) refreshArea(ctx context.Context, key string) error {
	cfg, err := c.areas.GetConfig(key)
	if err != nil {
		cfg = area.DefaultConfig(key)
	}

	now := c.now()
	if err := c.areaStore.MarkRefreshing(key, now); err != nil {
		return err
	}

	var (
		deals     []deal.Deal
		seen      = make(map[string]struct{})
		succeeded int
		skipped   int
	)

	for _, query := range cfg.Queries {
		items, err := c.searcher.Search(ctx, key, query)
		if err != nil {
			slog.Warn("Query failed during refresh", "area", key, "query", query, "error", err)
			continue
		}
		succeeded++

		if cfg.Settings.MaxResults > 0 && len(items) > cfg.Settings.MaxResults {
			items = items[:cfg.Settings.MaxResults]
		}

		for _, item := range items {
			d, skip := c.normalizer.Run(item, key, now)
			if skip != nil {
				skipped++
				slog.Debug("Item skipped", "area", key, "name", skip.Name, "reason", skip.Reason)
				continue
			}

			identity := d.MerchantID + "\x00" + d.SourceItemID
			if _, dup := seen[identity]; dup {
				continue
			}
			seen[identity] = struct{}{}
			deals = append(deals, d)
		}
	}

	if succeeded == 0 {
		if markErr := c.areaStore.MarkFailed(key); markErr != nil {
			slog.Error("Failed to record refresh failure", "area", key, "error", markErr)
		}
		return fmt.Errorf("all %d queries failed for area %s", len(cfg.Queries), key)
	}

	if err := c.dealStore.UpsertMany(key, deals); err != nil {
		if markErr := c.areaStore.MarkFailed(key); markErr != nil {
			slog.Error("Failed to record refresh failure", "area", key, "error", markErr)
		}
		return err
	}

	if err := c.areaStore.MarkSucceeded(key, c.now()); err != nil {
		return err
	}

	slog.Info("Refresh completed", "area", key, "deals", len(deals), "skipped", skipped, "queries_ok", succeeded, "queries_total", len(cfg.Queries))
	return nil
}

// isFresh reports whether the area was refreshed recently enough that
// no new sweep is warranted. The bound is the area's refresh interval,
// never more than the freshness window that limits what Query serves.
func (c *Coordinator) isFresh(key string) (bool, error) {
	a, err := c.areaStore.Get(key)
	if err != nil {
		return false, err
	}
	if a == nil || a.LastRefreshedAt == nil {
		return false, nil
	}

	bound := c.freshnessWindow
	if cfg, err := c.areas.GetConfig(key); err == nil {
		if interval := time.Duration(cfg.Settings.RefreshInterval) * time.Second; interval > 0 && interval < bound {
			bound = interval
		}
	}
	return c.now().Sub(*a.LastRefreshedAt) < bound, nil
}

func (c *Coordinator) staleOrNoData(key string) (Status, error) {
	n, err := c.dealStore.CountForArea(key, c.now())
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoDataAvailable, key)
	}
	return StatusStale, nil
}
