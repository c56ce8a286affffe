package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/Egham-7/cascade-engine/internal/models"

	"github.com/botirk38/semanticcache"
	"github.com/botirk38/semanticcache/options"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

const defaultEmbeddingModel = "text-embedding-3-large"

// SemanticStore is the opt-in similarity-matching backend. Exact content-key
// lookups are tried first; when they miss, the raw query is embedded and
// matched against prior queries at the configured similarity threshold.
// This backend gives the reserved similarity_threshold policy its meaning;
// the memory and redis backends ignore it entirely.
type SemanticStore struct {
	cache     *semanticcache.SemanticCache[string, models.CacheEntry]
	threshold float32
}

// SemanticStoreConfig configures the semantic backend.
type SemanticStoreConfig struct {
	OpenAIAPIKey        string
	EmbeddingModel      string
	Capacity            int
	SimilarityThreshold float64
}

// NewSemanticStore creates a semantic cache backend over an in-memory LRU.
func NewSemanticStore(cfg SemanticStoreConfig) (*SemanticStore, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("semantic cache backend requires an OpenAI API key for embeddings")
	}
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("invalid similarity threshold %.2f; must be in (0.0, 1.0]", cfg.SimilarityThreshold)
	}

	embedModel := cfg.EmbeddingModel
	if embedModel == "" {
		embedModel = defaultEmbeddingModel
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}

	sc, err := semanticcache.New(
		options.WithOpenAIProvider[string, models.CacheEntry](cfg.OpenAIAPIKey, embedModel),
		options.WithLRUBackend[string, models.CacheEntry](capacity),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create semantic cache: %w", err)
	}

	fiberlog.Infof("SemanticStore: initialized (model=%s, capacity=%d, threshold=%.2f)",
		embedModel, capacity, cfg.SimilarityThreshold)
	return &SemanticStore{cache: sc, threshold: float32(cfg.SimilarityThreshold)}, nil
}

func (s *SemanticStore) Get(ctx context.Context, key, query string) (models.CacheEntry, bool, error) {
	// Exact match first, then similarity.
	if hit, found, err := s.cache.Get(ctx, key); found && err == nil {
		return hit, true, nil
	} else if err != nil {
		return models.CacheEntry{}, false, err
	}

	match, err := s.cache.Lookup(ctx, query, s.threshold)
	if err != nil {
		return models.CacheEntry{}, false, err
	}
	if match == nil {
		return models.CacheEntry{}, false, nil
	}
	fiberlog.Debugf("SemanticStore: similarity hit (score=%.2f)", match.Score)
	return match.Value, true, nil
}

func (s *SemanticStore) Set(ctx context.Context, key, query string, entry models.CacheEntry, _ time.Duration) error {
	// Fire-and-forget: the embedding call is too slow to hold the request.
	s.cache.SetAsync(ctx, key, query, entry)
	return nil
}

func (s *SemanticStore) Delete(ctx context.Context, key, _ string) error {
	s.cache.DeleteAsync(ctx, key)
	return nil
}

func (s *SemanticStore) Close() error {
	return s.cache.Close()
}
