// Package client implements the session side of the board: a keyed snapshot
// cache, the bridge from channel events to cache invalidation and alerts, the
// notification poller, the REST client, and the view filter.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Cache keys used by the session.
const (
	CacheKeyTasks         = "tasks"
	CacheKeyUsers         = "users"
	CacheKeyNotifications = "notifications"
)

// FetchFunc loads a fresh snapshot for one cache key.
type FetchFunc func(ctx context.Context) (any, error)

// Cache is a keyed store of fetched collections. Invalidation marks an entry
// stale and schedules a refetch; the entry keeps serving its last good
// snapshot until a fetch succeeds. There is no merging and no cancellation:
// whichever fetch resolves last for a key wins, and a superseded result is
// repaired by the next invalidation.
type Cache struct {
	logger  *slog.Logger
	onError func(key string, err error)

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	fetch FetchFunc
	value any
	ok    bool
	stale bool
}

// NewCache creates an empty cache.
func NewCache(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		logger:  logger,
		entries: make(map[string]*cacheEntry),
	}
}

// Register binds a key to its fetch function. The entry starts stale with no
// snapshot.
func (c *Cache) Register(key string, fetch FetchFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry{fetch: fetch, stale: true}
}

// OnError sets the hook invoked when a refetch fails. The failing key keeps
// its last good snapshot.
func (c *Cache) OnError(fn func(key string, err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// Get returns the last good snapshot for the key and whether the entry is
// currently stale. A stale snapshot is still servable.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !e.ok {
		return nil, true
	}
	return e.value, e.stale
}

// Invalidate marks the key stale and schedules a refetch in the background.
// Safe to call from event handlers; it never blocks.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	e.stale = true
	c.mu.Unlock()

	go func() {
		if err := c.Refetch(ctx, key); err != nil {
			c.logger.Warn("refetch failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}()
}

// Refetch synchronously loads a fresh snapshot for the key. On success the
// snapshot is stored and the entry becomes fresh; on failure the previous
// snapshot is kept, the entry stays stale, and the error hook fires.
func (c *Cache) Refetch(ctx context.Context, key string) error {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("unknown cache key %q", key)
	}
	fetch := e.fetch
	errHook := c.onError
	c.mu.Unlock()

	value, err := fetch(ctx)
	if err != nil {
		if errHook != nil {
			errHook(key, err)
		}
		return err
	}

	c.mu.Lock()
	e.value = value
	e.ok = true
	e.stale = false
	c.mu.Unlock()
	return nil
}
