package refresh

import (
	"context"
	"errors"
	"time"

	"github.com/flyerflutter/dealcomb/app/database"
	"github.com/flyerflutter/dealcomb/app/deal"
	"github.com/flyerflutter/dealcomb/app/flipp"
)

// ErrNoDataAvailable means an area has no rows at all and the attempt to
// populate it failed. Callers must not confuse it with a valid empty
// result for a filtered query.
var ErrNoDataAvailable = errors.New("no deal data available for area")

// Status describes what a caller can expect from the store after
// EnsureFresh returns.
type Status string

const (
	// StatusFresh means the area was refreshed inside the freshness
	// window, either before the call or by it.
	StatusFresh Status = "fresh"
	// StatusStale means the latest refresh attempt failed but older
	// rows are still present and servable.
	StatusStale Status = "stale"
)

type Searcher interface {
	Search(ctx context.Context, areaKey, query string) ([]flipp.RawItem, error)
}

type DealStore interface {
	UpsertMany(areaKey string, deals []deal.Deal) error
	CountForArea(areaKey string, now time.Time) (int, error)
}

type AreaStore interface {
	Get(areaKey string) (*database.AreaFreshness, error)
	MarkRefreshing(areaKey string, now time.Time) error
	MarkSucceeded(areaKey string, now time.Time) error
	MarkFailed(areaKey string) error
}
