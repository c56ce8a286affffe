package models

import "fmt"

// CascadePolicies holds the tunable knobs of the cascade engine. A policy set
// is treated as a value: updates replace the whole struct so concurrent
// readers never observe a partially applied change.
type CascadePolicies struct {
	QualityThreshold    float64 `json:"quality_threshold" yaml:"quality_threshold"`
	MaxCostPerRequest   float64 `json:"max_cost_per_request" yaml:"max_cost_per_request"`
	LatencySLAMs        int64   `json:"latency_sla_ms" yaml:"latency_sla_ms"`
	EscalationEnabled   bool    `json:"escalation_enabled" yaml:"escalation_enabled"`
	CacheEnabled        bool    `json:"cache_enabled" yaml:"cache_enabled"`
	MaxEscalations      int     `json:"max_escalations" yaml:"max_escalations"`
	ExplorationRate     float64 `json:"exploration_rate" yaml:"exploration_rate"`
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"` // reserved for the semantic cache backend
	CacheTTLSeconds     int64   `json:"cache_ttl_seconds" yaml:"cache_ttl_seconds"`
}

// DefaultPolicies returns the policy set used when the caller configures
// nothing.
func DefaultPolicies() CascadePolicies {
	return CascadePolicies{
		QualityThreshold:    0.7,
		MaxCostPerRequest:   0.5,
		LatencySLAMs:        30_000,
		EscalationEnabled:   true,
		CacheEnabled:        true,
		MaxEscalations:      3,
		ExplorationRate:     0.1,
		SimilarityThreshold: 0.9,
		CacheTTLSeconds:     3600,
	}
}

// Validate checks range constraints on the policy set.
func (p CascadePolicies) Validate() error {
	if p.QualityThreshold < 0 || p.QualityThreshold > 1 {
		return fmt.Errorf("quality_threshold %.2f out of range [0,1]", p.QualityThreshold)
	}
	if p.MaxCostPerRequest <= 0 {
		return fmt.Errorf("max_cost_per_request must be positive, got %.4f", p.MaxCostPerRequest)
	}
	if p.LatencySLAMs <= 0 {
		return fmt.Errorf("latency_sla_ms must be positive, got %d", p.LatencySLAMs)
	}
	if p.MaxEscalations < 0 {
		return fmt.Errorf("max_escalations must be >= 0, got %d", p.MaxEscalations)
	}
	if p.ExplorationRate < 0 || p.ExplorationRate > 1 {
		return fmt.Errorf("exploration_rate %.2f out of range [0,1]", p.ExplorationRate)
	}
	if p.SimilarityThreshold < 0 || p.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold %.2f out of range [0,1]", p.SimilarityThreshold)
	}
	if p.CacheTTLSeconds <= 0 {
		return fmt.Errorf("cache_ttl_seconds must be positive, got %d", p.CacheTTLSeconds)
	}
	return nil
}

// Merge applies a partial update to a copy of the policy set and returns it.
// Unknown keys are ignored rather than rejected; keys with the wrong value
// type are also skipped so a sloppy caller cannot corrupt the policy set.
func (p CascadePolicies) Merge(partial map[string]any) CascadePolicies {
	merged := p
	for key, raw := range partial {
		switch key {
		case "quality_threshold":
			if v, ok := toFloat(raw); ok {
				merged.QualityThreshold = v
			}
		case "max_cost_per_request":
			if v, ok := toFloat(raw); ok {
				merged.MaxCostPerRequest = v
			}
		case "latency_sla_ms":
			if v, ok := toInt(raw); ok {
				merged.LatencySLAMs = v
			}
		case "escalation_enabled":
			if v, ok := raw.(bool); ok {
				merged.EscalationEnabled = v
			}
		case "cache_enabled":
			if v, ok := raw.(bool); ok {
				merged.CacheEnabled = v
			}
		case "max_escalations":
			if v, ok := toInt(raw); ok {
				merged.MaxEscalations = int(v)
			}
		case "exploration_rate":
			if v, ok := toFloat(raw); ok {
				merged.ExplorationRate = v
			}
		case "similarity_threshold":
			if v, ok := toFloat(raw); ok {
				merged.SimilarityThreshold = v
			}
		case "cache_ttl_seconds":
			if v, ok := toInt(raw); ok {
				merged.CacheTTLSeconds = v
			}
		}
	}
	return merged
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func toInt(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
