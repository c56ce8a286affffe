package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Egham-7/cascade-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	getErr error
	setErr error
}

func (f *failingStore) Get(context.Context, string, string) (models.CacheEntry, bool, error) {
	return models.CacheEntry{}, false, f.getErr
}
func (f *failingStore) Set(context.Context, string, string, models.CacheEntry, time.Duration) error {
	return f.setErr
}
func (f *failingStore) Delete(context.Context, string, string) error { return nil }
func (f *failingStore) Close() error                                 { return nil }

func newTestCache(t *testing.T) *ResponseCache {
	t.Helper()
	store, err := NewMemoryStore(16)
	require.NoError(t, err)
	return NewResponseCache(store)
}

func TestResponseCacheRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	entry := models.CacheEntry{
		Response:     "Paris",
		ModelUsed:    "openai:gpt-4o-mini",
		QualityScore: 0.92,
		Cost:         0.0004,
	}
	c.Put(ctx, "req1", "What is the capital of France?", entry, time.Hour)

	got, found := c.Get(ctx, "req2", "what is the capital of FRANCE?", time.Hour)
	require.True(t, found, "normalized variants of the same query share an entry")
	assert.Equal(t, "Paris", got.Response)
	assert.Equal(t, "openai:gpt-4o-mini", got.ModelUsed)
	assert.False(t, got.CreatedAt.IsZero(), "CreatedAt is stamped on write")
}

func TestResponseCacheMiss(t *testing.T) {
	c := newTestCache(t)
	_, found := c.Get(context.Background(), "req1", "never stored", time.Hour)
	assert.False(t, found)
}

func TestResponseCacheExpiry(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	now := time.Now()
	c.clock = func() time.Time { return now }
	c.Put(ctx, "req1", "stale question", models.CacheEntry{Response: "old"}, time.Hour)

	_, found := c.Get(ctx, "req2", "stale question", time.Hour)
	require.True(t, found, "fresh entry is a hit")

	c.clock = func() time.Time { return now.Add(2 * time.Hour) }
	_, found = c.Get(ctx, "req3", "stale question", time.Hour)
	assert.False(t, found, "expired entry is a miss")

	// The expired entry was lazily evicted, so even rolling the clock back
	// does not resurrect it.
	c.clock = func() time.Time { return now }
	_, found = c.Get(ctx, "req4", "stale question", time.Hour)
	assert.False(t, found)
}

func TestResponseCacheDegradesToMissOnBackendError(t *testing.T) {
	c := NewResponseCache(&failingStore{getErr: errors.New("connection refused")})
	_, found := c.Get(context.Background(), "req1", "any query", time.Hour)
	assert.False(t, found, "backend failure must look like a miss")
}

func TestResponseCacheSwallowsWriteErrors(t *testing.T) {
	c := NewResponseCache(&failingStore{setErr: errors.New("connection refused")})
	assert.NotPanics(t, func() {
		c.Put(context.Background(), "req1", "any query", models.CacheEntry{Response: "x"}, time.Hour)
	})
}
