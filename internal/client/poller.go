package client

import (
	"context"
	"sync"
	"time"
)

// defaultPollInterval keeps the notification feed fresh even when the push
// channel drops events.
const defaultPollInterval = 30 * time.Second

// Poller refetches the notification list on a fixed interval. It runs
// alongside the push channel on purpose: push covers the live case, the poll
// covers broadcasts missed while disconnected. Neither replaces the other.
type Poller struct {
	cache    *Cache
	interval time.Duration

	mu      sync.Mutex
	stopCh  chan struct{}
	running bool
}

// NewPoller creates a poller over the given cache. A non-positive interval
// falls back to the default.
func NewPoller(cache *Cache, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{
		cache:    cache,
		interval: interval,
	}
}

// Start launches the polling loop. Calling Start twice is a no-op; a stopped
// poller can be started again.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	p.mu.Unlock()

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.cache.Invalidate(ctx, CacheKeyNotifications)
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the polling loop.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	close(p.stopCh)
	p.running = false
}
