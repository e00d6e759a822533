// Package sitecache is the in-process, read-through site cache: an LRU of
// bounded size with per-entry TTL and single-flight coalesced loads,
// invalidated on every site/monitor mutation.
package sitecache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
	"github.com/nick2bad4u/uptime-watcher/internal/eventbus"
)

// Loader fetches a site from durable storage on a cache miss.
type Loader func(ctx context.Context, identifier string) (core.Site, bool, error)

type entry struct {
	site      core.Site
	expiresAt time.Time
}

// Cache implements core.Cache with TTL expiry atop an LRU bound.
type Cache struct {
	logger *slog.Logger
	bus    *eventbus.Bus
	ttl    time.Duration

	mu    sync.RWMutex
	lru   *lru.Cache[string, *entry]
	group singleflight.Group
	load  Loader

	debounceMu sync.Mutex
	pending    map[string]*time.Timer
}

// New constructs a Cache bounded to size entries with the given TTL.
// Invalidation events are published on bus, if non-nil.
func New(size int, ttl time.Duration, load Loader, logger *slog.Logger, bus *eventbus.Bus) (*Cache, error) {
	l, err := lru.New[string, *entry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{
		logger:  logger,
		bus:     bus,
		ttl:     ttl,
		lru:     l,
		load:    load,
		pending: make(map[string]*time.Timer),
	}, nil
}

var _ core.Cache = (*Cache)(nil)

// Get returns identifier's site, loading it from the Loader on a miss or
// expiry. Concurrent misses for the same identifier coalesce onto one
// Loader call.
func (c *Cache) Get(ctx context.Context, identifier string) (core.Site, bool, error) {
	c.mu.RLock()
	if e, ok := c.lru.Get(identifier); ok && time.Now().Before(e.expiresAt) {
		c.mu.RUnlock()
		return e.site, true, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(identifier, func() (any, error) {
		site, found, err := c.load(ctx, identifier)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, nil
		}
		c.Set(identifier, site)
		return site, nil
	})
	if err != nil {
		return core.Site{}, false, err
	}
	if v == nil {
		return core.Site{}, false, nil
	}
	return v.(core.Site), true, nil
}

// Set populates or overwrites identifier's cached entry.
func (c *Cache) Set(identifier string, site core.Site) {
	c.mu.Lock()
	c.lru.Add(identifier, &entry{site: site, expiresAt: time.Now().Add(c.ttl)})
	c.mu.Unlock()
}

// Delete invalidates identifier's cached entry and publishes
// cache:invalidated, debounced so a burst of deletes for the same key
// collapses into one event.
func (c *Cache) Delete(identifier string) {
	c.mu.Lock()
	c.lru.Remove(identifier)
	c.mu.Unlock()
	c.debounceInvalidate("site", identifier)
}

// All returns every currently cached site (not a durable-storage scan).
func (c *Cache) All() []core.Site {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := c.lru.Keys()
	sites := make([]core.Site, 0, len(keys))
	now := time.Now()
	for _, k := range keys {
		if e, ok := c.lru.Peek(k); ok && now.Before(e.expiresAt) {
			sites = append(sites, e.site)
		}
	}
	return sites
}

// Clear empties the cache and publishes a type:"all" invalidation.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.lru.Purge()
	c.mu.Unlock()
	c.publishInvalidate("all", "")
}

const invalidateDebounce = 50 * time.Millisecond

func (c *Cache) debounceInvalidate(kind, identifier string) {
	c.debounceMu.Lock()
	defer c.debounceMu.Unlock()

	if t, ok := c.pending[identifier]; ok {
		t.Stop()
	}
	c.pending[identifier] = time.AfterFunc(invalidateDebounce, func() {
		c.debounceMu.Lock()
		delete(c.pending, identifier)
		c.debounceMu.Unlock()
		c.publishInvalidate(kind, identifier)
	})
}

func (c *Cache) publishInvalidate(kind, identifier string) {
	if c.bus == nil {
		return
	}
	payload := map[string]any{"type": kind}
	if identifier != "" {
		payload["identifier"] = identifier
	}
	if err := c.bus.Publish(eventbus.NewEvent("cache:invalidated", payload, "")); err != nil {
		c.logger.Debug("cache:invalidated publish dropped", "error", err)
	}
}
