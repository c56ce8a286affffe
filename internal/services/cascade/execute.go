package cascade

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Egham-7/cascade-engine/internal/models"
	"github.com/Egham-7/cascade-engine/internal/services/escalation"
	"github.com/Egham-7/cascade-engine/internal/services/tiers"
	"github.com/Egham-7/cascade-engine/internal/utils"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

type attemptResult struct {
	model     string
	response  string
	quality   float64
	cost      float64
	latencyMs int64
}

// executeDirect performs one attempt against the tier matching the query's
// complexity, no escalation.
func (s *Service) executeDirect(ctx context.Context, requestID, query, complexity string, trace []string) (*models.ExecutionResult, error) {
	tier := tiers.TierForComplexity(complexity)
	candidates := s.catalog.AvailableModels(tier, s.filterView)
	trace = append(trace, fmt.Sprintf("tier=%s", tier))

	attempt, err := s.invokeFirstAvailable(ctx, requestID, query, candidates)
	if err != nil {
		return nil, err
	}
	trace = append(trace, "model="+attempt.model)

	return &models.ExecutionResult{
		Response:           attempt.response,
		ModelSelected:      attempt.model,
		QualityScore:       attempt.quality,
		TotalCost:          attempt.cost,
		LatencyMs:          attempt.latencyMs,
		SelectionReasoning: joinTrace(trace),
	}, nil
}

// executeEscalation runs the escalation state machine and flattens the
// report into an execution result.
func (s *Service) executeEscalation(ctx context.Context, requestID, query, complexity string, threshold, maxCost float64, pol models.CascadePolicies, trace []string) (*models.ExecutionResult, error) {
	report, err := s.escalation.Run(ctx, escalation.Params{
		RequestID:         requestID,
		Query:             query,
		Complexity:        complexity,
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

	path := make([]string, 0, len(report.EscalationHistory))
	var latency int64
	for _, record := range report.EscalationHistory {
		path = append(path, fmt.Sprintf("%s:%.2f", record.TierName, record.QualityScore))
		latency += record.LatencyMs
	}
	trace = append(trace, "path="+strings.Join(path, "->"), "status="+string(report.Status))

	return &models.ExecutionResult{
		Response:           report.FinalResponse,
		ModelSelected:      report.FinalModel,
		QualityScore:       report.FinalQualityScore,
		TotalCost:          report.CumulativeCost,
		LatencyMs:          latency,
		DeadlineExceeded:   report.DeadlineExceeded,
		SelectionReasoning: joinTrace(trace),
	}, nil
}

// invokeFirstAvailable tries candidates in order until one returns a
// response, then scores and prices it. Evaluation failure degrades the
// quality score to 0.0 rather than failing the attempt.
func (s *Service) invokeFirstAvailable(ctx context.Context, requestID, query string, candidates []string) (attemptResult, error) {
	if len(candidates) == 0 {
		return attemptResult{}, models.NewTransientModelError("", fmt.Errorf("no candidate models"))
	}

	var lastErr error
	for _, model := range candidates {
		start := time.Now()
		response, err := s.transport.Invoke(ctx, model, query)
		elapsed := time.Since(start)
		if err != nil {
			if ctx.Err() != nil {
				return attemptResult{}, models.NewDeadlineExceededError(ctx.Err())
			}
			fiberlog.Warnf("[%s] Model %s failed in %v: %v", requestID, model, elapsed, err)
			lastErr = err
			continue
		}

		quality, err := s.evaluator.Score(ctx, query, response)
		if err != nil {
			fiberlog.Warnf("[%s] Quality evaluation failed for %s, scoring 0.0: %v", requestID, model, err)
			quality = 0.0
		}

		return attemptResult{
			model:     model,
			response:  response,
			quality:   quality,
			cost:      s.estimator.EstimateForText(model, query, response),
			latencyMs: elapsed.Milliseconds(),
		}, nil
	}
	return attemptResult{}, models.NewTransientModelError(candidates[len(candidates)-1], lastErr)
}

// breakerTransport reports every invocation's outcome to the owning
// provider's circuit breaker.
type breakerTransport struct {
	inner    models.ModelTransport
	breakers map[string]ProviderBreaker
}

func (t *breakerTransport) Invoke(ctx context.Context, modelID, query string) (string, error) {
	provider, _, err := utils.SplitModelID(modelID, "openai")
	if err != nil {
		return "", err
	}

	response, err := t.inner.Invoke(ctx, modelID, query)
	if breaker, ok := t.breakers[provider]; ok {
		// Context expiry is the caller's deadline, not provider health.
		if err != nil && ctx.Err() == nil {
			breaker.RecordFailure()
		} else if err == nil {
			breaker.RecordSuccess()
		}
	}
	return response, err
}
