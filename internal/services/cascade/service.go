package cascade

import (
	"context"
	"strings"
	"time"

	"github.com/Egham-7/cascade-engine/internal/models"
	"github.com/Egham-7/cascade-engine/internal/services/cache"
	"github.com/Egham-7/cascade-engine/internal/services/consensus"
	"github.com/Egham-7/cascade-engine/internal/services/cost"
	"github.com/Egham-7/cascade-engine/internal/services/escalation"
	"github.com/Egham-7/cascade-engine/internal/services/ledger"
	"github.com/Egham-7/cascade-engine/internal/services/metrics"
	"github.com/Egham-7/cascade-engine/internal/services/policy"
	"github.com/Egham-7/cascade-engine/internal/services/router"
	"github.com/Egham-7/cascade-engine/internal/services/tiers"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

// ProviderBreaker is the per-provider availability contract the facade
// consults and feeds back into.
type ProviderBreaker interface {
	CanExecute() bool
	RecordSuccess()
	RecordFailure()
}

// Dependencies wires a cascade service. Transport and Evaluator are
// required; nil sinks default to no-ops and a nil cache disables caching
// outright.
type Dependencies struct {
	Policies  *policy.Store
	Catalog   *tiers.Catalog
	Cache     *cache.ResponseCache
	Estimator *cost.Estimator
	Transport models.ModelTransport
	Evaluator models.QualityEvaluator
	Ledger    models.CostLedger
	Metrics   models.MetricsExporter
	Breakers  map[string]ProviderBreaker
}

// Service is the public entry point of the cascade engine. Per request it
// composes: cache check -> model selection -> execution -> quality check ->
// optional escalation/consensus -> cache write -> performance update.
//
// All per-request state lives on the stack of the call; the only shared
// mutable state is inside the response cache and the adaptive router.
type Service struct {
	policies   *policy.Store
	catalog    *tiers.Catalog
	cache      *cache.ResponseCache
	estimator  *cost.Estimator
	transport  models.ModelTransport
	evaluator  models.QualityEvaluator
	ledger     models.CostLedger
	metrics    models.MetricsExporter
	breakers   map[string]ProviderBreaker
	filterView map[string]tiers.Breaker

	escalation *escalation.Controller
	consensus  *consensus.Executor
	router     *router.AdaptiveRouter
}

// NewService constructs the engine from its dependencies.
func NewService(deps Dependencies) *Service {
	if deps.Policies == nil {
		deps.Policies = policy.NewDefaultStore()
	}
	if deps.Catalog == nil {
		deps.Catalog = tiers.NewDefaultCatalog()
	}
	if deps.Estimator == nil {
		deps.Estimator = cost.NewEstimator()
	}
	if deps.Ledger == nil {
		deps.Ledger = ledger.NewNoopLedger()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoopExporter()
	}

	transport := deps.Transport
	if len(deps.Breakers) > 0 {
		transport = &breakerTransport{inner: deps.Transport, breakers: deps.Breakers}
	}

	filterView := make(map[string]tiers.Breaker, len(deps.Breakers))
	for provider, breaker := range deps.Breakers {
		filterView[provider] = breaker
	}

	return &Service{
		policies:   deps.Policies,
		catalog:    deps.Catalog,
		cache:      deps.Cache,
		estimator:  deps.Estimator,
		transport:  transport,
		evaluator:  deps.Evaluator,
		ledger:     deps.Ledger,
		metrics:    deps.Metrics,
		breakers:   deps.Breakers,
		filterView: filterView,
		escalation: escalation.NewController(deps.Catalog, deps.Estimator, transport, deps.Evaluator),
		consensus:  consensus.NewExecutor(deps.Estimator, transport, deps.Evaluator),
		router:     router.NewAdaptiveRouter(deps.Policies),
	}
}

// Execute runs a single request through the cascade. The execution mode is
// taken from metadata["mode"] (direct, adaptive, escalation); absent that,
// escalation when the policy enables it, direct otherwise.
func (s *Service) Execute(ctx context.Context, req models.ExecuteRequest) (*models.ExecutionResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, models.NewValidationError("query cannot be empty", nil)
	}

	requestID := newRequestID()
	pol := s.policies.Snapshot()
	threshold, maxCost := resolveOverrides(pol, req.QualityRequirement, req.MaxCost)
	started := time.Now()

	var trace []string

	if result, ok := s.checkCache(ctx, requestID, req.Query, pol, &trace); ok {
		s.metrics.RecordRequestLatency(string(models.ModeDirect), time.Since(started).Milliseconds())
		return result, nil
	}

	complexity := metadataString(req.Metadata, "complexity")
	if complexity == "" {
		complexity = tiers.ClassifyPrompt(req.Query)
		trace = append(trace, "complexity="+complexity+" (classified)")
	} else {
		trace = append(trace, "complexity="+complexity+" (caller)")
	}

	mode := models.ExecutionMode(metadataString(req.Metadata, "mode"))
	if mode == "" {
		if pol.EscalationEnabled {
			mode = models.ModeEscalation
		} else {
			mode = models.ModeDirect
		}
	}
	trace = append(trace, "mode="+string(mode))

	var (
		result *models.ExecutionResult
		err    error
	)
	switch mode {
	case models.ModeAdaptive:
		category := metadataString(req.Metadata, "category")
		if category == "" {
			category = complexity
		}
		adaptive, adaptiveErr := s.ExecuteAdaptive(ctx, req.Query, category, req.QualityRequirement)
		if adaptiveErr != nil {
			return nil, adaptiveErr
		}
		adaptive.ExecutionResult.SelectionReasoning = joinTrace(append(trace, adaptive.RoutingReason))
		return &adaptive.ExecutionResult, nil
	case models.ModeDirect:
		result, err = s.executeDirect(ctx, requestID, req.Query, complexity, trace)
	default:
		result, err = s.executeEscalation(ctx, requestID, req.Query, complexity, threshold, maxCost, pol, trace)
	}
	if err != nil {
		return nil, err
	}

	// Below-threshold answers are served but never cached.
	if result.QualityScore >= threshold {
		s.writeThrough(ctx, requestID, req.Query, result, pol)
	}
	s.recordSpend(req.Query, result.ModelSelected, result.Response, result.TotalCost)
	s.metrics.RecordRequestLatency(string(mode), time.Since(started).Milliseconds())
	return result, nil
}

// ExecuteWithEscalationTracking runs the escalation state machine and
// returns the full attempt history alongside the final result.
func (s *Service) ExecuteWithEscalationTracking(ctx context.Context, query string, qualityRequirement float64) (*models.EscalationReport, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.NewValidationError("query cannot be empty", nil)
	}

	requestID := newRequestID()
	pol := s.policies.Snapshot()
	threshold, maxCost := resolveOverrides(pol, qualityRequirement, 0)

	report, err := s.escalation.Run(ctx, escalation.Params{
		RequestID:         requestID,
		Query:             query,
		Complexity:        tiers.ClassifyPrompt(query),
		QualityThreshold:  threshold,
		MaxCost:           maxCost,
		EscalationEnabled: pol.EscalationEnabled,
		MaxEscalations:    pol.MaxEscalations,
		Breakers:          s.filterView,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordEscalationDepth(report.TotalAttempts)
	if pol.CacheEnabled && s.cache != nil && report.Status == models.EscalationSatisfied {
		s.cache.Put(ctx, requestID, query, models.CacheEntry{
			Response:     report.FinalResponse,
			ModelUsed:    report.FinalModel,
			QualityScore: report.FinalQualityScore,
			Cost:         report.CumulativeCost,
		}, cacheTTL(pol))
	}
	s.recordSpend(query, report.FinalModel, report.FinalResponse, report.CumulativeCost)
	return report, nil
}

// ExecuteWithConsensus fans the query out to the named models concurrently
// and aggregates their answers.
func (s *Service) ExecuteWithConsensus(ctx context.Context, query string, modelIDs []string, consensusThreshold float64, method models.AggregationMethod) (*models.ConsensusResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.NewValidationError("query cannot be empty", nil)
	}

	requestID := newRequestID()
	pol := s.policies.Snapshot()

	result, err := s.consensus.Execute(ctx, consensus.Params{
		RequestID:   requestID,
		Query:       query,
		Models:      modelIDs,
		Threshold:   consensusThreshold,
		Method:      method,
		CallTimeout: time.Duration(pol.LatencySLAMs) * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordConsensusRun(len(modelIDs), len(result.DisagreementPoints))
	for _, individual := range result.IndividualResponses {
		if individual.Error == "" {
			s.recordSpend(query, individual.Model, individual.Response, individual.Cost)
		}
	}
	return result, nil
}

// ExecuteAdaptive routes via the learned per-category statistics and feeds
// the observation back into the rolling window afterwards.
func (s *Service) ExecuteAdaptive(ctx context.Context, query, category string, qualityRequirement float64) (*models.AdaptiveResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.NewValidationError("query cannot be empty", nil)
	}

	requestID := newRequestID()
	pol := s.policies.Snapshot()
	started := time.Now()

	var trace []string
	if result, ok := s.checkCache(ctx, requestID, query, pol, &trace); ok {
		return &models.AdaptiveResult{ExecutionResult: *result, RoutingReason: "cache_hit"}, nil
	}

	pool := s.catalog.AvailableModels(tiers.TierForComplexity(category), s.filterView)
	selected, reason := s.router.SelectModel(category, pool)
	prediction := s.router.Predict(category, selected)
	trace = append(trace, "category="+category, "routing="+reason, "model="+selected)

	// Selected model first, remaining pool as sequential fallbacks.
	candidates := append([]string{selected}, without(pool, selected)...)
	attempt, err := s.invokeFirstAvailable(ctx, requestID, query, candidates)
	if err != nil {
		return nil, err
	}
	if attempt.model != selected {
		trace = append(trace, "fallback="+attempt.model)
	}

	s.router.UpdateRoutingPerformance(category, attempt.model, attempt.quality, attempt.latencyMs, attempt.cost)

	result := &models.ExecutionResult{
		Response:           attempt.response,
		ModelSelected:      attempt.model,
		QualityScore:       attempt.quality,
		TotalCost:          attempt.cost,
		LatencyMs:          attempt.latencyMs,
		SelectionReasoning: joinTrace(trace),
	}
	threshold, _ := resolveOverrides(pol, qualityRequirement, 0)
	if attempt.quality < threshold {
		// Adaptive mode never escalates mid-request; the low score feeds the
		// window so the router steers away from this model over time.
		fiberlog.Warnf("[%s] Adaptive: %s scored %.2f below requirement %.2f", requestID, attempt.model, attempt.quality, threshold)
	}

	s.writeThrough(ctx, requestID, query, result, pol)
	s.recordSpend(query, attempt.model, attempt.response, attempt.cost)
	s.metrics.RecordRequestLatency(string(models.ModeAdaptive), time.Since(started).Milliseconds())

	return &models.AdaptiveResult{
		ExecutionResult:       *result,
		RoutingReason:         reason,
		PerformancePrediction: prediction,
		ActualPerformance: models.PerformanceSample{
			Quality:   attempt.quality,
			LatencyMs: attempt.latencyMs,
			Cost:      attempt.cost,
		},
	}, nil
}

// SetPolicies merges a partial policy map into the live policy set.
func (s *Service) SetPolicies(partial map[string]any) error {
	return s.policies.Update(partial)
}

// Policies returns a snapshot of the live policy set.
func (s *Service) Policies() models.CascadePolicies {
	return s.policies.Snapshot()
}

// GetRoutingRecommendations reports the learned per-category routing state.
func (s *Service) GetRoutingRecommendations() models.RoutingRecommendations {
	return s.router.Recommendations()
}

// Close releases the cache backend.
func (s *Service) Close() error {
	if s.cache != nil {
		return s.cache.Close()
	}
	return nil
}

func newRequestID() string {
	return uuid.NewString()[:8]
}

func resolveOverrides(pol models.CascadePolicies, qualityRequirement, maxCost float64) (float64, float64) {
	threshold := pol.QualityThreshold
	if qualityRequirement > 0 {
		threshold = qualityRequirement
	}
	budget := pol.MaxCostPerRequest
	if maxCost > 0 {
		budget = maxCost
	}
	return threshold, budget
}

func cacheTTL(pol models.CascadePolicies) time.Duration {
	return time.Duration(pol.CacheTTLSeconds) * time.Second
}

func metadataString(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	if v, ok := metadata[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func joinTrace(parts []string) string {
	return strings.Join(parts, "; ")
}

func without(pool []string, exclude string) []string {
	rest := make([]string, 0, len(pool))
	for _, m := range pool {
		if m != exclude {
			rest = append(rest, m)
		}
	}
	return rest
}

// checkCache performs step (a) of the cascade. The cache_enabled check
// happens here, in the caller, so the disabled no-op path stays observable.
func (s *Service) checkCache(ctx context.Context, requestID, query string, pol models.CascadePolicies, trace *[]string) (*models.ExecutionResult, bool) {
	if !pol.CacheEnabled || s.cache == nil {
		*trace = append(*trace, "cache=disabled")
		return nil, false
	}

	entry, found := s.cache.Get(ctx, requestID, query, cacheTTL(pol))
	s.metrics.RecordCacheLookup(found)
	if !found {
		*trace = append(*trace, "cache=miss")
		return nil, false
	}

	// A hit never invokes a model and never incurs cost.
	return &models.ExecutionResult{
		Response:           entry.Response,
		ModelSelected:      entry.ModelUsed,
		QualityScore:       entry.QualityScore,
		TotalCost:          0,
		LatencyMs:          0,
		CacheHit:           true,
		SelectionReasoning: joinTrace(append(*trace, "cache=hit; served from cache")),
	}, true
}

func (s *Service) writeThrough(ctx context.Context, requestID, query string, result *models.ExecutionResult, pol models.CascadePolicies) {
	if !pol.CacheEnabled || s.cache == nil || result.CacheHit || result.DeadlineExceeded {
		return
	}
	s.cache.Put(ctx, requestID, query, models.CacheEntry{
		Response:     result.Response,
		ModelUsed:    result.ModelSelected,
		QualityScore: result.QualityScore,
		Cost:         result.TotalCost,
	}, cacheTTL(pol))
}

// recordSpend reports usage to the cost ledger fire-and-forget; ledger
// failures never reach the request path.
func (s *Service) recordSpend(query, model, response string, costSpent float64) {
	tokensIn := cost.EstimateTokens(query)
	tokensOut := cost.EstimateTokens(response)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.ledger.Record(ctx, model, tokensIn, tokensOut, costSpent); err != nil {
			fiberlog.Debugf("Cascade: ledger record failed (ignored): %v", err)
		}
	}()
}
