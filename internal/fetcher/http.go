package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/billboard-signals/internal/resilience"
)

const (
	defaultMaxBodyBytes = 8 << 20
	// errorBodyBytes bounds how much of a failed response is kept.
	errorBodyBytes = 512
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	Retry        resilience.RetryConfig
	// RateLimits maps a host to its requests per second. Unlisted hosts are
	// not throttled.
	RateLimits map[string]float64
}

// AdaptiveLimiter is a token bucket that slows down after a 429 and slowly
// recovers on success, bounded to [initial/4, initial*2].
type AdaptiveLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	current rate.Limit
	min     rate.Limit
	max     rate.Limit
}

// NewAdaptiveLimiter creates a limiter starting at perSecond.
func NewAdaptiveLimiter(perSecond float64) *AdaptiveLimiter {
	r := rate.Limit(perSecond)
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &AdaptiveLimiter{
		limiter: rate.NewLimiter(r, burst),
		current: r,
		min:     r / 4,
		max:     r * 2,
	}
}

func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess raises the rate by a fifth.
func (a *AdaptiveLimiter) OnSuccess() {
	a.set(a.Limit() * 1.2)
}

// OnRateLimit halves the rate.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.set(a.Limit() * 0.5)
}

func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *AdaptiveLimiter) set(r rate.Limit) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r = min(max(r, a.min), a.max)
	a.current = r
	a.limiter.SetLimit(r)
}

// DefaultRateLimits returns per-host request rates for the signal APIs.
func DefaultRateLimits() map[string]float64 {
	return map[string]float64{
		"api.tomtom.com":   5,
		"www.inegi.org.mx": 2,
	}
}

// HTTPFetcher implements Fetcher with per-host throttling and retries on
// transient failures.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	limiters map[string]*AdaptiveLimiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "billboard-signals/1.0"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.RateLimits == nil {
		opts.RateLimits = DefaultRateLimits()
	}

	limiters := make(map[string]*AdaptiveLimiter, len(opts.RateLimits))
	for host, rps := range opts.RateLimits {
		if rps > 0 {
			limiters[host] = NewAdaptiveLimiter(rps)
		}
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: limiters,
	}
}

// Get fetches rawURL. 408, 429 and 5xx responses and transport failures
// are retried; the final error is returned unchanged.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return nil, eris.Wrap(err, "fetcher: parse url")
	}

	retry := f.opts.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(u.Host, "get")
	}
	return resilience.DoVal(ctx, retry, func(ctx context.Context) ([]byte, error) {
		return f.getOnce(ctx, u)
	})
}

func (f *HTTPFetcher) getOnce(ctx context.Context, u *url.URL) ([]byte, error) {
	lim := f.limiters[u.Host]
	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		// *url.Error embeds the full URL, and API keys travel in its query
		// and path. Keep only the cause; the host is named below.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		wrapped := eris.Wrapf(err, "fetcher: get %s", u.Host)
		if errors.Is(err, context.Canceled) {
			return nil, wrapped
		}
		return nil, resilience.NewTransientError(wrapped, 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	zap.L().Debug("fetcher: response",
		zap.String("host", u.Host),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyBytes))
		statusErr := &StatusError{StatusCode: resp.StatusCode, Host: u.Host, Body: string(snippet)}
		if resp.StatusCode == http.StatusTooManyRequests && lim != nil {
			lim.OnRateLimit()
			zap.L().Warn("fetcher: rate limited, slowing down",
				zap.String("host", u.Host),
				zap.Float64("rate", float64(lim.Limit())),
			)
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes+1))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "fetcher: read body from %s", u.Host), 0)
	}
	if int64(len(body)) > f.opts.MaxBodyBytes {
		return nil, eris.Errorf("fetcher: body from %s exceeds %d bytes", u.Host, f.opts.MaxBodyBytes)
	}
	if lim != nil {
		lim.OnSuccess()
	}
	return body, nil
}
