package cache

import (
	"context"
	"time"

	"github.com/Egham-7/cascade-engine/internal/models"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMemoryCapacity = 1000

// MemoryStore is an in-process LRU cache backend. TTL is enforced lazily by
// the ResponseCache layer on read, so the store itself only bounds entry
// count.
type MemoryStore struct {
	entries *lru.Cache[string, models.CacheEntry]
}

// NewMemoryStore creates an LRU-backed store with the given capacity.
func NewMemoryStore(capacity int) (*MemoryStore, error) {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	entries, err := lru.New[string, models.CacheEntry](capacity)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{entries: entries}, nil
}

func (m *MemoryStore) Get(_ context.Context, key, _ string) (models.CacheEntry, bool, error) {
	entry, found := m.entries.Get(key)
	return entry, found, nil
}

func (m *MemoryStore) Set(_ context.Context, key, _ string, entry models.CacheEntry, _ time.Duration) error {
	m.entries.Add(key, entry)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key, _ string) error {
	m.entries.Remove(key)
	return nil
}

func (m *MemoryStore) Close() error {
	m.entries.Purge()
	return nil
}
