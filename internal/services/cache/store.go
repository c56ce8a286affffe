package cache

import (
	"context"
	"time"

	"github.com/Egham-7/cascade-engine/internal/models"
)

// Store is a cache backend. key is the normalized content digest; query is
// the raw text, which similarity-based backends need for embedding. Backend
// errors are returned to the ResponseCache layer, which degrades them —
// they never reach a caller.
type Store interface {
	Get(ctx context.Context, key, query string) (models.CacheEntry, bool, error)
	Set(ctx context.Context, key, query string, entry models.CacheEntry, ttl time.Duration) error
	Delete(ctx context.Context, key, query string) error
	Close() error
}
