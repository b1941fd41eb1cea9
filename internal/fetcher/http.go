package fetcher

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent         string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
	BackoffBase       time.Duration
}

// HTTPFetcher implements Fetcher over net/http. Requests are paced per host
// and retried on transport errors, 429, and 5xx responses.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions
	log    *zap.Logger

	mu    sync.Mutex
	hosts map[string]*hostLimiter
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates an HTTPFetcher, filling zero options with defaults.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "navaids/1.0"
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.BackoffBase == 0 {
		opts.BackoffBase = time.Second
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:  opts,
		log:   zap.L().With(zap.String("component", "fetcher.http")),
		hosts: make(map[string]*hostLimiter),
	}
}

func (f *HTTPFetcher) hostFor(u *url.URL) *hostLimiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hosts[u.Host]
	if !ok {
		burst := max(1, int(math.Ceil(f.opts.RequestsPerSecond)))
		h = newHostLimiter(u.Host, rate.Limit(f.opts.RequestsPerSecond), burst)
		f.hosts[u.Host] = h
	}
	return h
}

// Download fetches the URL and returns the response body. Statuses outside
// 2xx that are not retried are returned as errors immediately.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "application/xml, text/xml")

	resp, err := f.do(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "download")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, eris.Errorf("download: unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return resp.Body, nil
}

func (f *HTTPFetcher) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	host := f.hostFor(req.URL)
	target := req.URL.String()

	var lastErr error
	for attempt := range f.opts.MaxRetries {
		if err := host.wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		resp, err := f.client.Do(req.Clone(ctx))
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "request cancelled")
			}
			lastErr = err
			f.log.Warn("feed request failed, retrying",
				zap.String("url", target), zap.Int("attempt", attempt+1), zap.Error(err))
			f.sleep(ctx, f.backoff(attempt))

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http %d from %s", resp.StatusCode, target)
			if resp.StatusCode == http.StatusTooManyRequests {
				host.slowDown()
			}
			wait := f.backoff(attempt)
			if ra, ok := retryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
				wait = min(ra, 30*f.opts.BackoffBase)
			}
			f.log.Warn("feed host returned retryable status",
				zap.String("url", target),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
				zap.Duration("wait", wait),
			)
			f.sleep(ctx, wait)

		default:
			host.speedUp()
			return resp, nil
		}
	}
	return nil, eris.Wrap(lastErr, "all retries exhausted")
}

// backoff is exponential in attempt with up to 50% jitter, capped at 30x
// the base delay.
func (f *HTTPFetcher) backoff(attempt int) time.Duration {
	d := min(time.Duration(float64(f.opts.BackoffBase)*math.Pow(2, float64(attempt))), 30*f.opts.BackoffBase)
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
	}
	return d
}

func (f *HTTPFetcher) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// retryAfter parses a Retry-After header given either as delay seconds or
// an HTTP date.
func retryAfter(v string, now time.Time) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		return max(at.Sub(now), 0), true
	}
	return 0, false
}
