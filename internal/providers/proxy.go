package providers

import (
	"net/http"
	"net/url"
	"sync"
	"time"
)

// clientPool hands out one *http.Client per proxy so connections are reused
// across attempts routed through the same proxy.
type clientPool struct {
	timeout time.Duration
	base    *http.Client

	mu      sync.Mutex
	clients map[string]*http.Client
}

func newClientPool(base *http.Client, timeout time.Duration) *clientPool {
	if base == nil {
		base = &http.Client{Timeout: timeout}
	}
	return &clientPool{
		timeout: timeout,
		base:    base,
		clients: make(map[string]*http.Client),
	}
}

// get returns the client for proxy, or the base client when proxy is nil.
func (p *clientPool) get(proxy *url.URL) *http.Client {
	if proxy == nil {
		return p.base
	}
	key := proxy.String()

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[key]; ok {
		return c
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = http.ProxyURL(proxy)
	c := &http.Client{Timeout: p.timeout, Transport: transport}
	p.clients[key] = c
	return c
}
