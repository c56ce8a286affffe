package cache

import (
	"context"
	"time"

	"github.com/Egham-7/cascade-engine/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// ResponseCache is the content-addressed store of prior (query -> response)
// pairs. It owns every CacheEntry it holds; callers get copies.
//
// Whether caching is enabled at all is the caller's decision (the facade
// checks cache_enabled before touching the cache), so the disabled path is
// observable rather than silently absorbed here.
type ResponseCache struct {
	store Store
	clock func() time.Time
}

// NewResponseCache creates a cache over the given backend store.
func NewResponseCache(store Store) *ResponseCache {
	return &ResponseCache{store: store, clock: time.Now}
}

// Get looks up a query. Expired entries are treated as not found and lazily
// evicted. Backend errors degrade to a miss — the request proceeds to model
// execution and the failure is only logged.
func (c *ResponseCache) Get(ctx context.Context, requestID, query string, ttl time.Duration) (models.CacheEntry, bool) {
	key := Key(query)

	entry, found, err := c.store.Get(ctx, key, query)
	if err != nil {
		degraded := models.NewCacheUnavailableError("get", err)
		fiberlog.Warnf("[%s] ResponseCache: %v - degrading to miss", requestID, degraded)
		return models.CacheEntry{}, false
	}
	if !found {
		fiberlog.Debugf("[%s] ResponseCache: miss for key %.12s", requestID, key)
		return models.CacheEntry{}, false
	}

	if entry.IsExpired(ttl, c.clock()) {
		fiberlog.Debugf("[%s] ResponseCache: entry for key %.12s expired, evicting", requestID, key)
		if err := c.store.Delete(ctx, key, query); err != nil {
			fiberlog.Warnf("[%s] ResponseCache: failed to evict expired entry: %v", requestID, err)
		}
		return models.CacheEntry{}, false
	}

	fiberlog.Infof("[%s] ResponseCache: hit for key %.12s (model=%s, quality=%.2f)",
		requestID, key, entry.ModelUsed, entry.QualityScore)
	return entry, true
}

// Put stores an entry for a query, overwriting any existing entry for the
// same key. Write failures are logged and swallowed; they never fail the
// primary request.
func (c *ResponseCache) Put(ctx context.Context, requestID, query string, entry models.CacheEntry, ttl time.Duration) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = c.clock()
	}
	key := Key(query)

	if err := c.store.Set(ctx, key, query, entry, ttl); err != nil {
		fiberlog.Warnf("[%s] ResponseCache: write failed for key %.12s (swallowed): %v", requestID, key, err)
		return
	}
	fiberlog.Debugf("[%s] ResponseCache: stored key %.12s (model=%s)", requestID, key, entry.ModelUsed)
}

// Close releases the backend.
func (c *ResponseCache) Close() error {
	return c.store.Close()
}
