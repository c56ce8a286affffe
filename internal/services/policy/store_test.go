package policy

import (
	"testing"

	"github.com/Egham-7/cascade-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreFallsBackOnInvalidPolicies(t *testing.T) {
	s := NewStore(models.CascadePolicies{QualityThreshold: 5.0})
	assert.Equal(t, models.DefaultPolicies(), s.Snapshot())
}

func TestUpdateMergesAndValidates(t *testing.T) {
	s := NewDefaultStore()

	require.NoError(t, s.Update(map[string]any{
		"quality_threshold": 0.9,
		"max_escalations":   1,
		"cache_enabled":     false,
	}))

	p := s.Snapshot()
	assert.InDelta(t, 0.9, p.QualityThreshold, 1e-9)
	assert.Equal(t, 1, p.MaxEscalations)
	assert.False(t, p.CacheEnabled)
	// Untouched fields keep their defaults.
	assert.InDelta(t, models.DefaultPolicies().ExplorationRate, p.ExplorationRate, 1e-9)
}

func TestUpdateIgnoresUnknownKeys(t *testing.T) {
	s := NewDefaultStore()
	require.NoError(t, s.Update(map[string]any{"no_such_knob": 42}))
	assert.Equal(t, models.DefaultPolicies(), s.Snapshot())
}

func TestUpdateRejectsInvalidMerge(t *testing.T) {
	s := NewDefaultStore()
	before := s.Snapshot()

	err := s.Update(map[string]any{"quality_threshold": 3.0})
	require.Error(t, err)
	assert.True(t, models.IsErrorType(err, models.ErrorTypeValidation))
	assert.Equal(t, before, s.Snapshot(), "failed updates leave the live set untouched")
}

func TestUpdateSkipsWrongValueTypes(t *testing.T) {
	s := NewDefaultStore()
	require.NoError(t, s.Update(map[string]any{"quality_threshold": "very high"}))
	assert.Equal(t, models.DefaultPolicies(), s.Snapshot())
}
