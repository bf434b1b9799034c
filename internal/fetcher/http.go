// Package fetcher is the HTTP transport under the market client: retries
// with jittered exponential backoff, per-host rate limiting tuned to the
// exchanges' acceptable-use terms, and optional proxy rotation.
package fetcher

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// defaultUserAgent is a browser User-Agent. Both exchanges reject the Go
// default agent on some endpoints.
const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// maxBodySize caps a response read. The largest full-market daily table
// is a few megabytes; anything past this is a misbehaving endpoint.
const maxBodySize = 64 << 20

// HTTPOptions configures the HTTP transport.
type HTTPOptions struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRetries   int
	Proxies      Selector
	RateLimiters map[string]*rate.Limiter
}

// DefaultRateLimiters returns the per-host rate limiters for the known
// exchange hosts. Both are conservative: the exchanges ban IPs that poll
// faster than a few requests per second.
func DefaultRateLimiters() map[string]*rate.Limiter {
	return map[string]*rate.Limiter{
		"www.twse.com.tw": rate.NewLimiter(1, 2),
		"www.tpex.org.tw": rate.NewLimiter(1, 2),
	}
}

// HTTPFetcher fetches exchange payloads over net/http with retry, rate
// limiting, and proxy rotation. It implements the market client's
// Transport interface.
type HTTPFetcher struct {
	opts     HTTPOptions
	limiters map[string]*rate.Limiter
	client   *http.Client
	proxies  Selector
}

// NewHTTPFetcher creates an HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.RateLimiters == nil {
		opts.RateLimiters = DefaultRateLimiters()
	}
	proxies := opts.Proxies
	if proxies == nil {
		proxies = NoProxy{}
	}

	f := &HTTPFetcher{
		opts:     opts,
		limiters: opts.RateLimiters,
		proxies:  proxies,
	}
	transport := &http.Transport{
		Proxy:               f.proxyFunc,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	f.client = &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
	}
	return f
}

// proxyFunc asks the Selector for a proxy per request, so a rotating pool
// spreads consecutive requests without rebuilding the client.
func (f *HTTPFetcher) proxyFunc(*http.Request) (*url.URL, error) {
	return f.proxies.Next(), nil
}

func (f *HTTPFetcher) limiterFor(host string) *rate.Limiter {
	if lim, ok := f.limiters[host]; ok {
		return lim
	}
	return nil
}

// Get fetches one URL with the given query parameters and returns the
// whole response body.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %q", rawURL)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.doWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read body from %s", u.Host)
	}
	return body, nil
}

func (f *HTTPFetcher) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	lim := f.limiterFor(req.URL.Host)

	var lastErr error
	for attempt := range f.opts.MaxRetries {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "fetcher: rate limiter wait")
			}
		}

		cloned := req.Clone(ctx)
		resp, err := f.client.Do(cloned)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "fetcher")
			}
			lastErr = err
			zap.L().Warn("http request failed, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			f.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = eris.Errorf("fetcher: http %d from %s", resp.StatusCode, req.URL.Host)
			zap.L().Warn("retryable http status",
				zap.String("url", req.URL.String()),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			f.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, eris.Errorf("fetcher: unexpected status %d from %s", resp.StatusCode, req.URL.String())
		}

		return resp, nil
	}

	return nil, eris.Wrap(lastErr, "fetcher: all retries exhausted")
}

func (f *HTTPFetcher) backoff(ctx context.Context, attempt int) {
	base := time.Second
	maxBackoff := 30 * time.Second
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}
	d += time.Duration(rand.Int64N(int64(d) / 2))

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
