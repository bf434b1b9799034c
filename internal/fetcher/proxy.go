package fetcher

import (
	"net/url"
	"sync"

	"github.com/rotisserie/eris"
)

// Selector hands out the proxy to use for the next request. Implementations
// must be safe for concurrent use.
type Selector interface {
	// Next returns the proxy URL for the next request, or nil for a
	// direct connection.
	Next() *url.URL
}

// NoProxy is the direct-connection Selector.
type NoProxy struct{}

func (NoProxy) Next() *url.URL { return nil }

// Static always returns the same proxy.
type Static struct {
	proxy *url.URL
}

func (s *Static) Next() *url.URL { return s.proxy }

// RoundRobin cycles through a fixed proxy list, one per request, so a
// long backfill spreads its load across the pool.
type RoundRobin struct {
	mu      sync.Mutex
	proxies []*url.URL
	cursor  int
}

func (r *RoundRobin) Next() *url.URL {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.proxies[r.cursor]
	r.cursor = (r.cursor + 1) % len(r.proxies)
	return p
}

// NewSelector builds a Selector from configured proxy URLs: none means
// direct, one means static, several means round-robin.
func NewSelector(raw []string) (Selector, error) {
	if len(raw) == 0 {
		return NoProxy{}, nil
	}
	proxies := make([]*url.URL, len(raw))
	for i, s := range raw {
		u, err := url.Parse(s)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: proxy url %q", s)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, eris.Errorf("fetcher: proxy url %q missing scheme or host", s)
		}
		proxies[i] = u
	}
	if len(proxies) == 1 {
		return &Static{proxy: proxies[0]}, nil
	}
	return &RoundRobin{proxies: proxies}, nil
}
