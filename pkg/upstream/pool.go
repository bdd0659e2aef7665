// Package upstream talks to the news API through a single shared HTTP client.
package upstream

import (
	"net/http"
	"sync"
	"time"
)

// Defaults for the pooled client.
const (
	DefaultTimeout            = 5 * time.Second
	DefaultMaxConnections     = 10
	DefaultMaxIdleConnections = 5
)

// PoolConfig bounds the shared client.
type PoolConfig struct {
	Timeout            time.Duration
	MaxConnections     int
	MaxIdleConnections int
}

// Pool owns one lazily built http.Client shared by every fetch.
type Pool struct {
	cfg PoolConfig

	mu        sync.Mutex
	client    *http.Client
	transport *http.Transport
	// retired is the transport dropped by the last Close. Requests in flight
	// at that moment return their connections to it afterwards.
	retired *http.Transport
}

// NewPool creates a Pool. No client is built until Client is called.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = DefaultMaxConnections
	}
	if cfg.MaxIdleConnections < 0 {
		cfg.MaxIdleConnections = 0
	}
	return &Pool{cfg: cfg}
}

// Client returns the shared client, building it on first use or after Close.
func (p *Pool) Client() *http.Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		p.drainRetired()
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.MaxConnsPerHost = p.cfg.MaxConnections
		t.MaxIdleConns = p.cfg.MaxIdleConnections
		t.MaxIdleConnsPerHost = p.cfg.MaxIdleConnections
		if p.cfg.MaxIdleConnections == 0 {
			t.DisableKeepAlives = true
		}
		p.transport = t
		p.client = &http.Client{
			Timeout:   p.cfg.Timeout,
			Transport: t,
		}
	}
	return p.client
}

// Open reports whether a client is currently built.
func (p *Pool) Open() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client != nil
}

// Close releases the pooled connections. It is a no-op when no client was
// built and safe to call more than once. Connections still busy are closed
// by a later Close or by the next Client call.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.drainRetired()
	if p.transport != nil {
		p.transport.CloseIdleConnections()
		p.retired = p.transport
	}
	p.client = nil
	p.transport = nil
	return nil
}

func (p *Pool) drainRetired() {
	if p.retired != nil {
		p.retired.CloseIdleConnections()
	}
}
