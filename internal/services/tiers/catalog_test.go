package tiers

import (
	"testing"

	"github.com/Egham-7/cascade-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBreaker bool

func (b stubBreaker) CanExecute() bool { return bool(b) }

func TestTierForComplexity(t *testing.T) {
	cases := map[string]models.ModelTier{
		"trivial":  models.TierSmall,
		"simple":   models.TierSmall,
		"medium":   models.TierMedium,
		"balanced": models.TierMedium,
		"creative": models.TierMedium,
		"high":     models.TierLarge,
		"complex":  models.TierLarge,
		"expert":   models.TierLarge,
	}
	for label, want := range cases {
		assert.Equal(t, want, TierForComplexity(label), "label %q", label)
	}

	// Unrecognized labels never block execution.
	assert.Equal(t, models.TierMedium, TierForComplexity("galactic"))
	assert.Equal(t, models.TierMedium, TierForComplexity(""))
	assert.Equal(t, models.TierSmall, TierForComplexity("  Simple "))
}

func TestClassifyPrompt(t *testing.T) {
	assert.Equal(t, "simple", ClassifyPrompt("What is 2+2?"))
	assert.Equal(t, "trivial", ClassifyPrompt("   "))
	assert.Equal(t, "expert", ClassifyPrompt("Prove the theorem holds for all n"))
	assert.Equal(t, "complex", ClassifyPrompt("Please analyze the trade-off between these two database designs in depth"))
	assert.Equal(t, "creative", ClassifyPrompt("Write a story about a lighthouse keeper who never sleeps at all"))
	assert.Equal(t, "medium", ClassifyPrompt("Can you tell me how the water cycle works in temperate climates?"))
}

func TestCatalogBackfillsEmptyTiers(t *testing.T) {
	catalog := NewCatalog(map[models.ModelTier][]string{
		models.TierSmall: {"openai:gpt-4o-mini"},
	})

	assert.Equal(t, []string{"openai:gpt-4o-mini"}, catalog.ModelsForTier(models.TierSmall))
	for _, tier := range []models.ModelTier{models.TierMedium, models.TierLarge} {
		assert.NotEmpty(t, catalog.ModelsForTier(tier), "tier %s should be backfilled", tier)
	}
}

func TestAvailableModelsFiltersOpenBreakers(t *testing.T) {
	catalog := NewCatalog(map[models.ModelTier][]string{
		models.TierMedium: {"openai:gpt-4o", "anthropic:claude-3-5-sonnet-20241022"},
	})

	breakers := map[string]Breaker{
		"openai":    stubBreaker(false),
		"anthropic": stubBreaker(true),
	}
	available := catalog.AvailableModels(models.TierMedium, breakers)
	assert.Equal(t, []string{"anthropic:claude-3-5-sonnet-20241022"}, available)
}

func TestAvailableModelsFallsBackWhenAllFiltered(t *testing.T) {
	catalog := NewDefaultCatalog()

	breakers := map[string]Breaker{
		"openai":    stubBreaker(false),
		"anthropic": stubBreaker(false),
		"gemini":    stubBreaker(false),
	}
	available := catalog.AvailableModels(models.TierLarge, breakers)
	require.Len(t, available, 1)
	assert.Equal(t, catalog.DefaultModel(), available[0])
}

func TestAvailableModelsWithoutBreakers(t *testing.T) {
	catalog := NewDefaultCatalog()
	available := catalog.AvailableModels(models.TierSmall, nil)
	assert.Equal(t, catalog.ModelsForTier(models.TierSmall), available)
}

func TestProviderOf(t *testing.T) {
	assert.Equal(t, "anthropic", ProviderOf("anthropic:claude-opus-4.1"))
	assert.Equal(t, "openai", ProviderOf("gpt-4o"))
	assert.Equal(t, "gemini", ProviderOf("GEMINI:gemini-2.5-pro"))
}
