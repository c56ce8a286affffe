package utils

import (
	"fmt"
	"strings"
)

// SplitModelID parses a model identifier in "provider:model" form.
// A bare model name resolves to defaultProvider.
// Examples:
//   - "openai:gpt-4o" -> ("openai", "gpt-4o", nil)
//   - "gpt-4o" with defaultProvider "openai" -> ("openai", "gpt-4o", nil)
//   - ":gpt-4o" -> error (empty provider)
//   - "openai:" -> error (empty model)
func SplitModelID(modelID, defaultProvider string) (provider, model string, err error) {
	trimmed := strings.TrimSpace(modelID)
	if trimmed == "" {
		return "", "", fmt.Errorf("model identifier cannot be empty")
	}

	if !strings.Contains(trimmed, ":") {
		if defaultProvider == "" {
			return "", "", fmt.Errorf("no provider in model %q and no default provider configured", modelID)
		}
		return defaultProvider, trimmed, nil
	}

	parts := strings.SplitN(trimmed, ":", 2)
	provider = strings.ToLower(strings.TrimSpace(parts[0]))
	model = strings.TrimSpace(parts[1])
	if provider == "" {
		return "", "", fmt.Errorf("empty provider in model identifier %q", modelID)
	}
	if model == "" {
		return "", "", fmt.Errorf("empty model in model identifier %q", modelID)
	}
	return provider, model, nil
}
