package flipp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidAreaKey is returned before any network call when the area
// key is not a valid Canadian postal code.
var ErrInvalidAreaKey = errors.New("invalid postal code format")

var postalCodeRe = regexp.MustCompile(`^[A-Z]\d[A-Z]\d[A-Z]\d$`)

// Limiter gates outgoing requests. *rate.Limiter satisfies it; tests
// substitute a no-op implementation.
type Limiter interface {
	Wait(ctx context.Context) error
}

type Options struct {
	BaseURL    string
	UserAgent  string
	Locale     string
	Timeout    time.Duration
	MaxRetries int
	MaxResults int
}

// Client queries the unofficial flyer catalog search endpoint. The
// endpoints require no credentials but are undocumented and may change
// without notice, so every request goes through the shared limiter and
// transient failures are retried with backoff.
type Client struct {
	baseURL    string
	userAgent  string
	locale     string
	timeout    time.Duration
	maxRetries int
	maxResults int
	httpClient *http.Client
	limiter    Limiter
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewClient(httpClient *http.Client, limiter Limiter, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://backflipp.wishabi.com/flipp"
	}
	if opts.Locale == "" {
		opts.Locale = "en-ca"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 100
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		userAgent:  opts.UserAgent,
		locale:     opts.Locale,
		timeout:    opts.Timeout,
		maxRetries: opts.MaxRetries,
		maxResults: opts.MaxResults,
		httpClient: httpClient,
		limiter:    limiter,
		sleep:      sleepContext,
	}
}

// NormalizeAreaKey uppercases a postal code and strips whitespace,
// validating the A1B2C3 format.
func NormalizeAreaKey(areaKey string) (string, error) {
	normalized := strings.ToUpper(strings.Join(strings.Fields(areaKey), ""))
	if !postalCodeRe.MatchString(normalized) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAreaKey, areaKey)
	}
	return normalized, nil
}

// Search fetches raw promotional items for an area and free-text query.
// Transient failures (network errors, 5xx, 429) are retried internally
// with exponential backoff; a 429 carrying a Retry-After hint waits at
// least that long instead. Terminal errors are always a *Failure.
func (c *Client) Search(ctx context.Context, areaKey, query string) ([]RawItem, error) {
	postal, err := NormalizeAreaKey(areaKey)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("locale", c.locale)
	params.Set("postal_code", postal)
	params.Set("q", strings.TrimSpace(query))
	searchURL := c.baseURL + "/items/search?" + params.Encode()

	var lastFailure *Failure
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Failure{Kind: FailureNetwork, Err: err}
		}

		items, failure := c.doSearch(ctx, searchURL)
		if failure == nil {
			return items, nil
		}
		if !failure.Retryable() {
			return nil, failure
		}

		lastFailure = failure
		if attempt == c.maxRetries {
			break
		}

		delay := backoffDelay(attempt)
		if failure.RetryAfter > delay {
			delay = failure.RetryAfter
		}

		slog.Warn("Upstream request failed, retrying",
			"kind", string(failure.Kind), "status", failure.StatusCode,
			"attempt", attempt, "max_attempts", c.maxRetries, "delay", delay.String())

		if err := c.sleep(ctx, delay); err != nil {
			return nil, &Failure{Kind: FailureNetwork, Err: err}
		}
	}

	return nil, lastFailure
}

func (c *Client) doSearch(ctx context.Context, searchURL string) ([]RawItem, *Failure) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, &Failure{Kind: FailureNetwork, Err: err}
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Failure{Kind: FailureNetwork, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Fall through to decoding below.
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Failure{
			Kind:       FailureRateLimited,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        errors.New("upstream rate limit"),
		}
	case resp.StatusCode >= 500:
		return nil, &Failure{
			Kind:       FailureUpstream,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("server error: %s", resp.Status),
		}
	default:
		return nil, &Failure{
			Kind:       FailureUpstream,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", resp.Status),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Failure{Kind: FailureNetwork, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &Failure{Kind: FailureMalformed, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	items := parsed.Items
	if len(items) > c.maxResults {
		items = items[:c.maxResults]
	}

	return items, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-CA,en;q=0.9")
	req.Header.Set("Referer", "https://flipp.com/")
	req.Header.Set("Origin", "https://flipp.com")
}

func backoffDelay(attempt int) time.Duration {
	delay := time.Duration(1<<uint(attempt-1)) * time.Second
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return delay
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
