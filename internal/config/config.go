package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Egham-7/cascade-engine/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete engine configuration.
type Config struct {
	Server    models.ServerConfig       `yaml:"server"`
	Policies  models.CascadePolicies    `yaml:"policies"`
	Tiers     map[string][]string       `yaml:"tiers,omitempty"`
	Cache     CacheConfig               `yaml:"cache"`
	Ledger    LedgerConfig              `yaml:"ledger"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Evaluator EvaluatorConfig           `yaml:"evaluator"`
	Breakers  BreakerConfig             `yaml:"circuit_breakers"`
}

// CacheConfig selects and configures the response cache backend.
type CacheConfig struct {
	Backend             string  `yaml:"backend"` // memory, redis, semantic
	RedisURL            string  `yaml:"redis_url,omitempty"`
	Capacity            int     `yaml:"capacity,omitempty"`
	OpenAIAPIKey        string  `yaml:"openai_api_key,omitempty"`
	EmbeddingModel      string  `yaml:"embedding_model,omitempty"`
	SimilarityThreshold float64 `yaml:"similarity_threshold,omitempty"`
}

// LedgerConfig configures the usage ledger database.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Driver  string `yaml:"driver,omitempty"` // sqlite, postgres, mysql
	DSN     string `yaml:"dsn,omitempty"`
}

// ProviderConfig holds per-provider credentials.
type ProviderConfig struct {
	APIKey string `yaml:"api_key"`
}

// EvaluatorConfig selects the quality evaluator.
type EvaluatorConfig struct {
	JudgeModel string `yaml:"judge_model,omitempty"`
}

// BreakerConfig configures the per-provider circuit breakers. Breakers share
// the cache's Redis when no URL is given here.
type BreakerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	RedisURL string `yaml:"redis_url,omitempty"`
}

// LoadFromFile loads configuration from a YAML file with environment variable
// substitution.
func LoadFromFile(configPath string) (*Config, error) {
	// Validate and clean the file path to prevent directory traversal
	cleanPath := filepath.Clean(configPath)
	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid config path: path traversal not allowed")
	}
	ext := filepath.Ext(cleanPath)
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("invalid config file: only .yaml and .yml files are allowed")
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 - path is validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	content := substituteEnvVars(string(data))

	config := &Config{Policies: models.DefaultPolicies()}
	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Normalize provider map keys to lowercase for case-insensitive lookups
	if config.Providers != nil {
		normalized := make(map[string]ProviderConfig, len(config.Providers))
		for key, value := range config.Providers {
			normalized[strings.ToLower(key)] = value
		}
		config.Providers = normalized
	}

	return config, nil
}

// New creates a Config by loading from the specified config file path.
func New(configPath string) (*Config, error) {
	return LoadFromFile(configPath)
}

// LoadEnvFiles loads environment variables from .env files in order of
// precedence (first has highest priority).
func LoadEnvFiles(envFiles []string) {
	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err == nil {
				fmt.Printf("Loaded environment variables from %s\n", envFile)
			}
		}
	}
}

// substituteEnvVars replaces ${VAR_NAME} and ${VAR_NAME:-default} patterns
// with environment variables.
func substituteEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::(-[^}]*))?\}`)

	return re.ReplaceAllStringFunc(content, func(match string) string {
		submatches := re.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""
		if len(submatches) > 2 && submatches[2] != "" {
			defaultValue = strings.TrimPrefix(submatches[2], "-")
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// TierModels converts the YAML tier sections into the catalog's keyed form.
// Unknown tier names are rejected so a typo cannot silently empty a tier.
func (c *Config) TierModels() (map[models.ModelTier][]string, error) {
	if len(c.Tiers) == 0 {
		return nil, nil
	}

	byTier := make(map[models.ModelTier][]string, len(c.Tiers))
	for name, modelIDs := range c.Tiers {
		tier, err := models.ParseTier(name)
		if err != nil {
			return nil, fmt.Errorf("tiers.%s: %w", name, err)
		}
		byTier[tier] = modelIDs
	}
	return byTier, nil
}

// APIKeyFor returns the configured API key for a provider, or "".
func (c *Config) APIKeyFor(provider string) string {
	if cfg, exists := c.Providers[strings.ToLower(provider)]; exists {
		return cfg.APIKey
	}
	return ""
}

// BreakerRedisURL resolves the breakers' Redis URL, falling back to the
// cache's Redis.
func (c *Config) BreakerRedisURL() string {
	if c.Breakers.RedisURL != "" {
		return c.Breakers.RedisURL
	}
	return c.Cache.RedisURL
}

// GetNormalizedLogLevel returns the log level in lowercase for consistent
// comparison.
func (c *Config) GetNormalizedLogLevel() string {
	return strings.ToLower(c.Server.LogLevel)
}

// IsProduction returns true if the environment is production.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate checks that all required configuration values are set and that
// the policy block is coherent.
func (c *Config) Validate() error {
	var missing []string

	if c.Server.Port == "" {
		missing = append(missing, "server.port")
	}
	switch c.Cache.Backend {
	case "", "memory", "redis", "semantic":
	default:
		return fmt.Errorf("cache.backend must be memory, redis or semantic, got %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisURL == "" {
		missing = append(missing, "cache.redis_url")
	}
	if c.Cache.Backend == "semantic" && c.Cache.OpenAIAPIKey == "" {
		missing = append(missing, "cache.openai_api_key")
	}

	if len(missing) > 0 {
		return &ValidationError{MissingFields: missing}
	}

	return c.Policies.Validate()
}

// ValidationError represents configuration validation errors.
type ValidationError struct {
	MissingFields []string
}

func (e *ValidationError) Error() string {
	return "missing required configuration fields: " + strings.Join(e.MissingFields, ", ")
}
