package policy

import (
	"sync"

	"github.com/Egham-7/cascade-engine/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Store holds the live CascadePolicies for the engine. The policy set is
// replaced wholesale on update, so a reader snapshot is always internally
// consistent — it never mixes old and new field values.
type Store struct {
	mu       sync.RWMutex
	policies models.CascadePolicies
}

// NewStore creates a policy store seeded with the given policies, falling
// back to defaults if they fail validation.
func NewStore(policies models.CascadePolicies) *Store {
	if err := policies.Validate(); err != nil {
		fiberlog.Warnf("PolicyStore: invalid initial policies (%v), using defaults", err)
		policies = models.DefaultPolicies()
	}
	return &Store{policies: policies}
}

// NewDefaultStore creates a policy store with default policies.
func NewDefaultStore() *Store {
	return &Store{policies: models.DefaultPolicies()}
}

// Snapshot returns a copy of the current policy set.
func (s *Store) Snapshot() models.CascadePolicies {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policies
}

// Update merges a partial policy map into the current set and swaps it in
// atomically. Unknown keys are ignored. The merged set must validate; on
// failure the current set is kept and the error returned.
func (s *Store) Update(partial map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.policies.Merge(partial)
	if err := merged.Validate(); err != nil {
		fiberlog.Warnf("PolicyStore: rejecting policy update: %v", err)
		return models.NewValidationError("invalid policy update", err)
	}

	s.policies = merged
	fiberlog.Infof("PolicyStore: policies updated (quality_threshold=%.2f, max_cost=%.4f, escalation=%t, cache=%t, exploration=%.2f)",
		merged.QualityThreshold, merged.MaxCostPerRequest, merged.EscalationEnabled, merged.CacheEnabled, merged.ExplorationRate)
	return nil
}
