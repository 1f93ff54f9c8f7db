package engine

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Rotation cycles through a fixed proxy list. It advances after every failed
// attempt so the next attempt goes out through a different proxy.
// A Rotation with no proxies is valid and always yields a nil proxy.
type Rotation struct {
	mu      sync.Mutex
	proxies []*url.URL
	idx     int
}

// NewRotation parses proxy addresses. Bare "host:port" entries default to http.
func NewRotation(addrs []string) (*Rotation, error) {
	r := &Rotation{}
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if !strings.Contains(a, "://") {
			a = "http://" + a
		}
		u, err := url.Parse(a)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", a, err)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("invalid proxy %q: missing host", a)
		}
		r.proxies = append(r.proxies, u)
	}
	return r, nil
}

// Current returns the proxy for the next attempt, or nil for a direct connection.
func (r *Rotation) Current() *url.URL {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.proxies) == 0 {
		return nil
	}
	return r.proxies[r.idx]
}

// Advance moves to the next proxy and returns it.
func (r *Rotation) Advance() *url.URL {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.proxies) == 0 {
		return nil
	}
	r.idx = (r.idx + 1) % len(r.proxies)
	return r.proxies[r.idx]
}

// Len returns the number of proxies.
func (r *Rotation) Len() int {
	if r == nil {
		return 0
	}
	return len(r.proxies)
}
