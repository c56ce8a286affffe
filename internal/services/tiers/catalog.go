package tiers

import (
	"strings"

	"github.com/Egham-7/cascade-engine/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// complexityTable is the static complexity label -> tier mapping. Lookups
// never fail: unrecognized labels map to TierMedium so an unknown complexity
// cannot block execution.
var complexityTable = map[string]models.ModelTier{
	"trivial":  models.TierSmall,
	"simple":   models.TierSmall,
	"medium":   models.TierMedium,
	"balanced": models.TierMedium,
	"creative": models.TierMedium,
	"high":     models.TierLarge,
	"complex":  models.TierLarge,
	"expert":   models.TierLarge,
}

// Breaker is the availability check the catalog consults when filtering
// models, keyed by provider name. Satisfied by the circuit breaker service.
type Breaker interface {
	CanExecute() bool
}

// Catalog maps capability tiers to concrete model identifiers. Model IDs use
// the "provider:model" form. The mapping is static configuration; it is
// built once and never mutated.
type Catalog struct {
	tierModels map[models.ModelTier][]string
}

// DefaultTierModels returns the built-in tier mapping used when the
// configuration supplies none.
func DefaultTierModels() map[models.ModelTier][]string {
	return map[models.ModelTier][]string{
		models.TierSmall: {
			"openai:gpt-4o-mini",
			"anthropic:claude-3-5-haiku-20241022",
			"gemini:gemini-2.5-flash-lite",
		},
		models.TierMedium: {
			"openai:gpt-4o",
			"anthropic:claude-3-5-sonnet-20241022",
			"gemini:gemini-2.5-pro",
		},
		models.TierLarge: {
			"anthropic:claude-opus-4.1",
			"openai:o3",
			"openai:gpt-5-pro",
		},
	}
}

// NewCatalog creates a catalog from the given tier mapping. Any tier with an
// empty list is backfilled from the defaults so ModelsForTier is non-empty
// for every tier.
func NewCatalog(tierModels map[models.ModelTier][]string) *Catalog {
	defaults := DefaultTierModels()
	resolved := make(map[models.ModelTier][]string, len(defaults))
	for _, tier := range models.AllTiers() {
		list := tierModels[tier]
		if len(list) == 0 {
			list = defaults[tier]
			fiberlog.Debugf("Catalog: no models configured for tier %s, using defaults", tier)
		}
		resolved[tier] = append([]string(nil), list...)
	}
	return &Catalog{tierModels: resolved}
}

// NewDefaultCatalog creates a catalog with the built-in tier mapping.
func NewDefaultCatalog() *Catalog {
	return NewCatalog(nil)
}

// ModelsForTier returns the ordered model identifiers for a tier. The result
// is a copy and is never empty.
func (c *Catalog) ModelsForTier(tier models.ModelTier) []string {
	return append([]string(nil), c.tierModels[tier]...)
}

// DefaultModel returns the first model of the lowest tier, used as the
// last-resort fallback when a tier filters down to nothing.
func (c *Catalog) DefaultModel() string {
	return c.tierModels[models.TierSmall][0]
}

// TierForComplexity maps a complexity label to a tier, defaulting to
// TierMedium for anything unrecognized.
func TierForComplexity(label string) models.ModelTier {
	if tier, ok := complexityTable[strings.ToLower(strings.TrimSpace(label))]; ok {
		return tier
	}
	return models.TierMedium
}

// AvailableModels filters a tier's model list against per-provider circuit
// breakers. A provider without a breaker is treated as available; breaker
// failures never remove models. If every model is filtered out, the
// lowest-tier default model is returned instead of an empty list.
func (c *Catalog) AvailableModels(tier models.ModelTier, breakers map[string]Breaker) []string {
	all := c.tierModels[tier]
	if len(breakers) == 0 {
		return append([]string(nil), all...)
	}

	available := make([]string, 0, len(all))
	for _, model := range all {
		provider := ProviderOf(model)
		if cb, exists := breakers[provider]; exists && !cb.CanExecute() {
			fiberlog.Debugf("Catalog: filtering %s (circuit breaker open for %s)", model, provider)
			continue
		}
		available = append(available, model)
	}

	if len(available) == 0 {
		fallback := c.DefaultModel()
		fiberlog.Warnf("Catalog: tier %s has no available models, falling back to %s", tier, fallback)
		return []string{fallback}
	}
	return available
}

// ProviderOf extracts the provider from a "provider:model" identifier,
// defaulting to openai for bare model names.
func ProviderOf(modelID string) string {
	if idx := strings.Index(modelID, ":"); idx > 0 {
		return strings.ToLower(modelID[:idx])
	}
	return "openai"
}
