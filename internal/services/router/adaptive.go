package router

import (
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/Egham-7/cascade-engine/internal/models"
	"github.com/Egham-7/cascade-engine/internal/services/policy"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Routing reasons reported back to callers.
const (
	ReasonExploration  = "exploration"
	ReasonExploitation = "exploitation"
)

type historyKey struct {
	category string
	model    string
}

// AdaptiveRouter maintains per-(category, model) rolling performance
// statistics and chooses a model via an exploration/exploitation policy.
//
// The history map is the router's only mutable state; one coarse lock guards
// it. Every operation under the lock is an O(1) map access or a bounded
// window read, and the lock is never held across model I/O.
type AdaptiveRouter struct {
	policies *policy.Store

	mu      sync.Mutex
	history map[historyKey]*perfRing

	// randFloat is swappable in tests for a deterministic policy.
	randFloat func() float64
	randIntN  func(n int) int
}

// NewAdaptiveRouter creates an adaptive router reading exploration_rate from
// the policy store.
func NewAdaptiveRouter(policies *policy.Store) *AdaptiveRouter {
	return &AdaptiveRouter{
		policies:  policies,
		history:   make(map[historyKey]*perfRing),
		randFloat: rand.Float64,
		randIntN:  rand.IntN,
	}
}

// SelectModel picks a model from the category's candidate pool. With
// probability exploration_rate it samples uniformly at random; otherwise it
// exploits the best rolling avg_quality, tie-broken by lowest avg_cost. A
// category with no history always explores (cold start).
func (ar *AdaptiveRouter) SelectModel(category string, pool []string) (string, string) {
	if len(pool) == 0 {
		return "", ReasonExploration
	}
	rate := ar.policies.Snapshot().ExplorationRate

	ar.mu.Lock()
	defer ar.mu.Unlock()

	hasHistory := false
	for _, model := range pool {
		if ring, ok := ar.history[historyKey{category, model}]; ok && ring.size > 0 {
			hasHistory = true
			break
		}
	}

	if !hasHistory || ar.randFloat() < rate {
		model := pool[ar.randIntN(len(pool))]
		fiberlog.Debugf("AdaptiveRouter: %s -> %s (%s)", category, model, ReasonExploration)
		return model, ReasonExploration
	}

	best := ""
	bestQuality, bestCost := -1.0, math.MaxFloat64
	for _, model := range pool {
		ring, ok := ar.history[historyKey{category, model}]
		if !ok || ring.size == 0 {
			continue
		}
		q, c := ring.avgQuality(), ring.avgCost()
		if q > bestQuality || (q == bestQuality && c < bestCost) {
			best, bestQuality, bestCost = model, q, c
		}
	}

	fiberlog.Debugf("AdaptiveRouter: %s -> %s (%s, avg_quality=%.2f)", category, best, ReasonExploitation, bestQuality)
	return best, ReasonExploitation
}

// UpdateRoutingPerformance appends an observation to the rolling window and
// recomputes the running statistics. Atomic per key: concurrent updates for
// the same (category, model) never lose an observation.
func (ar *AdaptiveRouter) UpdateRoutingPerformance(category, model string, quality float64, latencyMs int64, costSpent float64) {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	key := historyKey{category, model}
	ring, ok := ar.history[key]
	if !ok {
		ring = &perfRing{}
		ar.history[key] = ring
	}
	ring.append(models.PerformanceSample{Quality: quality, LatencyMs: latencyMs, Cost: costSpent})
}

// Predict returns the current rolling summary for a (category, model) pair,
// or nil when no history exists yet.
func (ar *AdaptiveRouter) Predict(category, model string) *models.PerformanceSummary {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	ring, ok := ar.history[historyKey{category, model}]
	if !ok || ring.size == 0 {
		return nil
	}
	return &models.PerformanceSummary{
		Category:     category,
		Model:        model,
		SampleCount:  ring.size,
		AvgQuality:   ring.avgQuality(),
		AvgLatencyMs: ring.avgLatencyMs(),
		AvgCost:      ring.avgCost(),
	}
}

// Recommendations returns, per known category, the best model, a ranked
// fallback list, and a confidence score derived from sample count and
// quality variance (more samples and tighter spread raise confidence,
// capped below 1).
func (ar *AdaptiveRouter) Recommendations() models.RoutingRecommendations {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	byCategory := make(map[string][]models.PerformanceSummary)
	stddevs := make(map[historyKey]float64)
	for key, ring := range ar.history {
		if ring.size == 0 {
			continue
		}
		byCategory[key.category] = append(byCategory[key.category], models.PerformanceSummary{
			Category:     key.category,
			Model:        key.model,
			SampleCount:  ring.size,
			AvgQuality:   ring.avgQuality(),
			AvgLatencyMs: ring.avgLatencyMs(),
			AvgCost:      ring.avgCost(),
		})
		stddevs[key] = ring.qualityStdDev()
	}

	recs := models.RoutingRecommendations{
		CategoryModelMapping: make(map[string]string, len(byCategory)),
		ConfidenceScores:     make(map[string]float64, len(byCategory)),
		Recommendations:      make(map[string]models.RoutingRecommendation, len(byCategory)),
		GeneratedAt:          time.Now(),
	}

	for category, summaries := range byCategory {
		sort.Slice(summaries, func(i, j int) bool {
			if summaries[i].AvgQuality != summaries[j].AvgQuality {
				return summaries[i].AvgQuality > summaries[j].AvgQuality
			}
			return summaries[i].AvgCost < summaries[j].AvgCost
		})

		best := summaries[0]
		fallbacks := make([]string, 0, len(summaries)-1)
		for _, s := range summaries[1:] {
			fallbacks = append(fallbacks, s.Model)
		}

		confidence := confidenceScore(best.SampleCount, stddevs[historyKey{category, best.Model}])
		recs.CategoryModelMapping[category] = best.Model
		recs.ConfidenceScores[category] = confidence
		recs.Recommendations[category] = models.RoutingRecommendation{
			Category:   category,
			BestModel:  best.Model,
			Fallbacks:  fallbacks,
			Confidence: confidence,
			Summary:    summaries,
		}
	}
	return recs
}

// confidenceScore grows with sample count and shrinks with quality spread,
// capped at 0.99.
func confidenceScore(sampleCount int, stddev float64) float64 {
	sampleFactor := float64(sampleCount) / float64(sampleCount+10)
	spreadPenalty := math.Min(stddev*2, 0.9)
	confidence := sampleFactor * (1 - spreadPenalty)
	return math.Min(confidence, 0.99)
}
