package cache

import (
	"context"
	"sync"
	"time"

	"go-damage-sync/internal/logger"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Loader produces a fresh payload for a cache key.
type Loader[T any] func(ctx context.Context) (T, error)

type entry[T any] struct {
	payload   T
	fetchedAt time.Time
}

// Cache deduplicates expensive aggregate reads. Concurrent callers of the
// same key share one in-flight load, successful loads replace the cached
// entry, and failed loads fall back to the previous entry (stale-on-error)
// or to a defined empty payload. Entries have no TTL; freshness is driven
// by the caller's force flag.
type Cache[T any] struct {
	mu      sync.RWMutex
	group   singleflight.Group
	entries map[string]entry[T]
	empty   func() T
}

// New creates a cache. empty builds the degraded payload returned when a
// load fails and nothing is cached yet; it must never be nil.
func New[T any](empty func() T) *Cache[T] {
	return &Cache[T]{
		entries: make(map[string]entry[T]),
		empty:   empty,
	}
}

// Get returns the payload for key. With force unset, an in-flight load for
// the same key is joined rather than duplicated, guaranteeing at most one
// concurrent loader call per key. With force set, any in-flight load is
// detached and the loader runs again. Get never returns an error: failures
// resolve to the stale entry when one exists and to the empty payload
// otherwise. It never retries on its own; callers decide whether to call
// again with force.
func (c *Cache[T]) Get(ctx context.Context, key string, force bool, loader Loader[T]) T {
	if force {
		c.group.Forget(key)
	}

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		return loader(ctx)
	})
	if err == nil {
		payload := v.(T)
		c.mu.Lock()
		c.entries[key] = entry[T]{payload: payload, fetchedAt: time.Now()}
		c.mu.Unlock()
		return payload
	}

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	fields := logrus.Fields{"key": key, "shared": shared}
	if ok {
		logger.WithError(err).WithFields(fields).Warn("Aggregate load failed, serving stale entry")
		return e.payload
	}
	logger.WithError(err).WithFields(fields).Warn("Aggregate load failed with no cached entry, serving empty payload")
	return c.empty()
}

// Cached returns the cached payload for key without loading.
func (c *Cache[T]) Cached(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e.payload, ok
}

// FetchedAt reports when the cached entry for key was stored.
func (c *Cache[T]) FetchedAt(key string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e.fetchedAt, ok
}

// Invalidate drops the cached entry for key. In-flight loads are unaffected.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
