package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Egham-7/cascade-engine/internal/models"
	"github.com/Egham-7/cascade-engine/internal/services/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFileSubstitutesEnvVars(t *testing.T) {
	t.Setenv("TEST_CASCADE_PORT", "9090")
	t.Setenv("TEST_CASCADE_OPENAI_KEY", "sk-test")

	path := writeConfig(t, `
server:
  port: "${TEST_CASCADE_PORT:-8080}"
  environment: "${TEST_CASCADE_ENV:-development}"
providers:
  OpenAI:
    api_key: "${TEST_CASCADE_OPENAI_KEY}"
policies:
  quality_threshold: 0.8
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Environment, "unset vars fall back to defaults")
	assert.Equal(t, "sk-test", cfg.APIKeyFor("openai"), "provider keys are case-insensitive")
	assert.InDelta(t, 0.8, cfg.Policies.QualityThreshold, 1e-9)
	// Fields absent from the YAML keep policy defaults.
	assert.Equal(t, models.DefaultPolicies().MaxEscalations, cfg.Policies.MaxEscalations)
}

func TestLoadFromFileRejectsBadPaths(t *testing.T) {
	_, err := LoadFromFile("../../etc/passwd.yaml")
	assert.Error(t, err)

	_, err = LoadFromFile("config.json")
	assert.Error(t, err)
}

func TestTierModels(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "8080"
tiers:
  small:
    - "openai:gpt-4o-mini"
  large:
    - "anthropic:claude-opus-4.1"
    - "openai:o3"
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	byTier, err := cfg.TierModels()
	require.NoError(t, err)
	assert.Equal(t, []string{"openai:gpt-4o-mini"}, byTier[models.TierSmall])
	assert.Equal(t, []string{"anthropic:claude-opus-4.1", "openai:o3"}, byTier[models.TierLarge])
	assert.Empty(t, byTier[models.TierMedium])
}

func TestTierModelsRejectsUnknownTier(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "8080"
tiers:
  gigantic:
    - "openai:o3"
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	_, err = cfg.TierModels()
	assert.Error(t, err)
}

func TestCacheConfigFeedsSemanticStoreConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "8080"
cache:
  backend: "semantic"
  openai_api_key: "sk-embed"
  embedding_model: "text-embedding-3-large"
  capacity: 512
  similarity_threshold: 0.85
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	sc := cache.SemanticStoreConfig{
		OpenAIAPIKey:        cfg.Cache.OpenAIAPIKey,
		EmbeddingModel:      cfg.Cache.EmbeddingModel,
		Capacity:            cfg.Cache.Capacity,
		SimilarityThreshold: cfg.Cache.SimilarityThreshold,
	}
	assert.Equal(t, "sk-embed", sc.OpenAIAPIKey)
	assert.Equal(t, 512, sc.Capacity)
	assert.InDelta(t, 0.85, sc.SimilarityThreshold, 1e-9)
}

func TestValidate(t *testing.T) {
	cfg := &Config{Policies: models.DefaultPolicies()}
	err := cfg.Validate()
	require.Error(t, err, "missing port")

	cfg.Server.Port = "8080"
	require.NoError(t, cfg.Validate())

	cfg.Cache.Backend = "redis"
	assert.Error(t, cfg.Validate(), "redis backend needs a URL")

	cfg.Cache.RedisURL = "redis://localhost:6379"
	assert.NoError(t, cfg.Validate())

	cfg.Cache.Backend = "punchcards"
	assert.Error(t, cfg.Validate())
}

func TestBreakerRedisURLFallsBackToCache(t *testing.T) {
	cfg := &Config{}
	cfg.Cache.RedisURL = "redis://cache:6379"
	assert.Equal(t, "redis://cache:6379", cfg.BreakerRedisURL())

	cfg.Breakers.RedisURL = "redis://breakers:6379"
	assert.Equal(t, "redis://breakers:6379", cfg.BreakerRedisURL())
}
