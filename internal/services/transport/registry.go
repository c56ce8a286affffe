package transport

import (
	"context"
	"fmt"

	"github.com/Egham-7/cascade-engine/internal/models"
	"github.com/Egham-7/cascade-engine/internal/utils"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

const defaultProvider = "openai"

// Config carries per-provider credentials for the default adapters.
type Config struct {
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	GeminiAPIKey    string `yaml:"gemini_api_key"`
}

// provider is one upstream model API. Adapters receive the bare model name
// (provider prefix already stripped).
type provider interface {
	Invoke(ctx context.Context, model, query string) (string, error)
}

// Registry routes "provider:model" identifiers to the matching provider
// adapter. It is the engine's default ModelTransport; library embedders can
// swap in their own.
type Registry struct {
	providers map[string]provider
}

// NewRegistry builds a registry with an adapter per configured credential.
func NewRegistry(cfg Config) *Registry {
	providers := make(map[string]provider)
	if cfg.OpenAIAPIKey != "" {
		providers["openai"] = newOpenAIProvider(cfg.OpenAIAPIKey)
	}
	if cfg.AnthropicAPIKey != "" {
		providers["anthropic"] = newAnthropicProvider(cfg.AnthropicAPIKey)
	}
	if cfg.GeminiAPIKey != "" {
		providers["gemini"] = newGeminiProvider(cfg.GeminiAPIKey)
	}
	fiberlog.Infof("Transport: %d provider adapters configured", len(providers))
	return &Registry{providers: providers}
}

// Invoke implements models.ModelTransport.
func (r *Registry) Invoke(ctx context.Context, modelID, query string) (string, error) {
	providerName, model, err := utils.SplitModelID(modelID, defaultProvider)
	if err != nil {
		return "", models.NewValidationError("invalid model identifier", err)
	}

	adapter, ok := r.providers[providerName]
	if !ok {
		return "", fmt.Errorf("no adapter configured for provider %s", providerName)
	}
	return adapter.Invoke(ctx, model, query)
}
