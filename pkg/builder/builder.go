// Package builder provides a fluent configuration builder for embedding the
// cascade engine without a YAML file.
package builder

import (
	"github.com/Egham-7/cascade-engine/internal/config"
	"github.com/Egham-7/cascade-engine/internal/models"

	"github.com/gofiber/fiber/v2"
)

type Builder struct {
	cfg         *config.Config
	middlewares []fiber.Handler
}

// New creates a builder with working defaults: in-memory cache, default
// policies, no providers.
func New() *Builder {
	return &Builder{
		cfg: &config.Config{
			Server: models.ServerConfig{
				Port:           "8080",
				AllowedOrigins: "*",
				Environment:    "development",
				LogLevel:       "info",
			},
			Policies:  models.DefaultPolicies(),
			Cache:     config.CacheConfig{Backend: "memory"},
			Providers: make(map[string]config.ProviderConfig),
		},
		middlewares: []fiber.Handler{},
	}
}

// Build returns the assembled config.
func (b *Builder) Build() *config.Config {
	return b.cfg
}

// GetMiddlewares returns the custom middlewares registered on the builder.
func (b *Builder) GetMiddlewares() []fiber.Handler {
	return b.middlewares
}

// Server configuration

// Port sets the server port.
func (b *Builder) Port(port string) *Builder {
	b.cfg.Server.Port = port
	return b
}

// AllowedOrigins sets CORS allowed origins.
func (b *Builder) AllowedOrigins(origins string) *Builder {
	b.cfg.Server.AllowedOrigins = origins
	return b
}

// Environment sets the environment (development/production).
func (b *Builder) Environment(env string) *Builder {
	b.cfg.Server.Environment = env
	return b
}

// LogLevel sets the logging level (trace, debug, info, warn, error, fatal).
func (b *Builder) LogLevel(level string) *Builder {
	b.cfg.Server.LogLevel = level
	return b
}

// Policies

// Policies replaces the whole policy block.
func (b *Builder) Policies(policies models.CascadePolicies) *Builder {
	b.cfg.Policies = policies
	return b
}

// QualityThreshold sets the minimum acceptable quality score.
func (b *Builder) QualityThreshold(threshold float64) *Builder {
	b.cfg.Policies.QualityThreshold = threshold
	return b
}

// MaxCostPerRequest sets the per-request budget ceiling.
func (b *Builder) MaxCostPerRequest(maxCost float64) *Builder {
	b.cfg.Policies.MaxCostPerRequest = maxCost
	return b
}

// EscalationEnabled toggles tier escalation.
func (b *Builder) EscalationEnabled(enabled bool) *Builder {
	b.cfg.Policies.EscalationEnabled = enabled
	return b
}

// ExplorationRate sets the adaptive router's exploration probability.
func (b *Builder) ExplorationRate(rate float64) *Builder {
	b.cfg.Policies.ExplorationRate = rate
	return b
}

// Models and providers

// Tier sets the model list for a tier ("small", "medium", "large").
func (b *Builder) Tier(name string, modelIDs ...string) *Builder {
	if b.cfg.Tiers == nil {
		b.cfg.Tiers = make(map[string][]string)
	}
	b.cfg.Tiers[name] = modelIDs
	return b
}

// Provider registers an API key for a provider.
func (b *Builder) Provider(name, apiKey string) *Builder {
	b.cfg.Providers[name] = config.ProviderConfig{APIKey: apiKey}
	return b
}

// JudgeModel sets the quality evaluation judge model.
func (b *Builder) JudgeModel(modelID string) *Builder {
	b.cfg.Evaluator.JudgeModel = modelID
	return b
}

// Cache backends

// MemoryCache selects the in-process LRU cache backend.
func (b *Builder) MemoryCache(capacity int) *Builder {
	b.cfg.Cache = config.CacheConfig{Backend: "memory", Capacity: capacity}
	return b
}

// RedisCache selects the Redis cache backend.
func (b *Builder) RedisCache(redisURL string) *Builder {
	b.cfg.Cache = config.CacheConfig{Backend: "redis", RedisURL: redisURL}
	return b
}

// SemanticCache selects the embedding-based cache backend.
func (b *Builder) SemanticCache(openaiAPIKey, embeddingModel string, threshold float64) *Builder {
	b.cfg.Cache = config.CacheConfig{
		Backend:             "semantic",
		OpenAIAPIKey:        openaiAPIKey,
		EmbeddingModel:      embeddingModel,
		SimilarityThreshold: threshold,
	}
	return b
}

// Infrastructure

// Ledger enables the usage ledger on the given database.
func (b *Builder) Ledger(driver, dsn string) *Builder {
	b.cfg.Ledger = config.LedgerConfig{Enabled: true, Driver: driver, DSN: dsn}
	return b
}

// CircuitBreakers enables Redis-backed provider circuit breakers.
func (b *Builder) CircuitBreakers(redisURL string) *Builder {
	b.cfg.Breakers = config.BreakerConfig{Enabled: true, RedisURL: redisURL}
	return b
}

// Use appends a custom fiber middleware.
func (b *Builder) Use(middleware fiber.Handler) *Builder {
	b.middlewares = append(b.middlewares, middleware)
	return b
}
