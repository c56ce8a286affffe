package escalation

import (
	"context"
	"time"

	"github.com/Egham-7/cascade-engine/internal/models"
	"github.com/Egham-7/cascade-engine/internal/services/cost"
	"github.com/Egham-7/cascade-engine/internal/services/tiers"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Assumed output budget for the pre-attempt cost projection.
const projectedOutputTokens = 500

// Controller drives a single request through increasing tiers until the
// quality bar is met or a budget/attempt ceiling is hit.
//
// The state machine is SELECT -> EXECUTE -> CHECK: select a model from the
// current tier, execute and score it, then either terminate (SATISFIED /
// EXHAUSTED) or advance one tier and repeat. The final response is always
// the last attempt's, never the best-scoring one.
type Controller struct {
	catalog   *tiers.Catalog
	estimator *cost.Estimator
	transport models.ModelTransport
	evaluator models.QualityEvaluator
}

// NewController creates an escalation controller.
func NewController(
	catalog *tiers.Catalog,
	estimator *cost.Estimator,
	transport models.ModelTransport,
	evaluator models.QualityEvaluator,
) *Controller {
	return &Controller{
		catalog:   catalog,
		estimator: estimator,
		transport: transport,
		evaluator: evaluator,
	}
}

// Params carries one escalation run's inputs. QualityThreshold and MaxCost
// are the already-resolved values (caller overrides applied over policy).
type Params struct {
	RequestID        string
	Query            string
	Complexity       string
	QualityThreshold float64
	MaxCost          float64
	EscalationEnabled bool
	MaxEscalations   int
	Breakers         map[string]tiers.Breaker
}

type attemptOutcome struct {
	record   models.EscalationRecord
	response string
}

// Run executes the state machine. It returns a report containing the ordered
// EscalationRecords and the last attempt's result, or a surfaced error
// (budget exceeded, all models failed, deadline with nothing usable).
func (c *Controller) Run(ctx context.Context, p Params) (*models.EscalationReport, error) {
	tier := tiers.TierForComplexity(p.Complexity)
	fiberlog.Infof("[%s] ═══ Escalation Started (complexity=%s, start tier=%s, threshold=%.2f) ═══",
		p.RequestID, p.Complexity, tier, p.QualityThreshold)

	var (
		records        []models.EscalationRecord
		last           attemptOutcome
		cumulativeCost float64
	)
	attempts := 0

	for {
		if ctx.Err() != nil {
			return c.deadlineResult(p.RequestID, records, last, cumulativeCost, p.QualityThreshold, ctx.Err())
		}

		candidates := c.catalog.AvailableModels(tier, p.Breakers)

		// Budget guard: never issue an attempt whose projected cost would
		// push cumulative spend past the ceiling.
		projected := cumulativeCost + c.estimator.ProjectCost(candidates[0], p.Query, projectedOutputTokens)
		if projected > p.MaxCost {
			fiberlog.Warnf("[%s] Escalation aborted: projected cost %.6f exceeds budget %.6f (tier %s)",
				p.RequestID, projected, p.MaxCost, tier)
			return nil, models.NewBudgetExceededError(projected, p.MaxCost)
		}

		outcome, err := c.attempt(ctx, tier, candidates, p)
		attempts++
		if err != nil {
			if ctx.Err() != nil {
				return c.deadlineResult(p.RequestID, records, last, cumulativeCost, p.QualityThreshold, ctx.Err())
			}
			next, ok := tier.Next()
			if p.EscalationEnabled && ok && attempts-1 < p.MaxEscalations {
				fiberlog.Warnf("[%s] Tier %s produced no response, escalating to %s", p.RequestID, tier, next)
				tier = next
				continue
			}
			if len(records) > 0 {
				// Keep the last usable attempt rather than failing the request.
				return c.finalize(p.RequestID, records, last, cumulativeCost, p.QualityThreshold, false), nil
			}
			return nil, err
		}

		outcome.record.AttemptNumber = attempts
		records = append(records, outcome.record)
		last = outcome
		cumulativeCost += outcome.record.Cost

		fiberlog.Infof("[%s] Attempt %d: %s (tier %s) scored %.2f at cost %.6f",
			p.RequestID, attempts, outcome.record.Model, tier, outcome.record.QualityScore, outcome.record.Cost)

		// CHECK: terminate or advance one tier.
		if outcome.record.QualityScore >= p.QualityThreshold {
			return c.finalize(p.RequestID, records, last, cumulativeCost, p.QualityThreshold, false), nil
		}
		next, canAdvance := tier.Next()
		if !p.EscalationEnabled || !canAdvance || attempts-1 >= p.MaxEscalations {
			return c.finalize(p.RequestID, records, last, cumulativeCost, p.QualityThreshold, false), nil
		}

		fiberlog.Infof("[%s] Quality %.2f below threshold %.2f, escalating %s -> %s",
			p.RequestID, outcome.record.QualityScore, p.QualityThreshold, tier, next)
		tier = next
	}
}

// attempt runs EXECUTE for one tier: candidates are tried in order until one
// produces a response. A model error is a single failed attempt, not a
// request failure.
func (c *Controller) attempt(ctx context.Context, tier models.ModelTier, candidates []string, p Params) (attemptOutcome, error) {
	var lastErr error
	for _, model := range candidates {
		start := time.Now()
		response, err := c.transport.Invoke(ctx, model, p.Query)
		latency := time.Since(start)
		if err != nil {
			fiberlog.Warnf("[%s] Model %s failed in %v: %v", p.RequestID, model, latency, err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		quality, err := c.evaluator.Score(ctx, p.Query, response)
		if err != nil {
			fiberlog.Warnf("[%s] Quality evaluation failed for %s, scoring 0.0: %v", p.RequestID, model, err)
			quality = 0.0
		}

		return attemptOutcome{
			record: models.EscalationRecord{
				Tier:         tier,
				TierName:     tier.String(),
				Model:        model,
				QualityScore: quality,
				Cost:         c.estimator.EstimateForText(model, p.Query, response),
				LatencyMs:    latency.Milliseconds(),
			},
			response: response,
		}, nil
	}
	return attemptOutcome{}, models.NewTransientModelError(candidates[len(candidates)-1], lastErr)
}

func (c *Controller) finalize(requestID string, records []models.EscalationRecord, last attemptOutcome, cumulativeCost, threshold float64, deadline bool) *models.EscalationReport {
	status := models.EscalationExhausted
	if last.record.QualityScore >= threshold {
		status = models.EscalationSatisfied
	}
	fiberlog.Infof("[%s] ═══ Escalation Complete (%s, attempts=%d, final=%s, cost=%.6f) ═══",
		requestID, status, len(records), last.record.Model, cumulativeCost)
	return &models.EscalationReport{
		FinalResponse:     last.response,
		FinalModel:        last.record.Model,
		EscalationHistory: records,
		TotalAttempts:     len(records),
		FinalQualityScore: last.record.QualityScore,
		CumulativeCost:    cumulativeCost,
		Status:            status,
		DeadlineExceeded:  deadline,
	}
}

// deadlineResult returns the best result obtained so far flagged as
// deadline-exceeded, or a surfaced DeadlineExceeded error when no attempt
// completed.
func (c *Controller) deadlineResult(requestID string, records []models.EscalationRecord, last attemptOutcome, cumulativeCost, threshold float64, cause error) (*models.EscalationReport, error) {
	if len(records) == 0 {
		fiberlog.Errorf("[%s] Deadline exceeded before any attempt completed", requestID)
		return nil, models.NewDeadlineExceededError(cause)
	}
	fiberlog.Warnf("[%s] Deadline exceeded mid-escalation, returning last attempt (%s)", requestID, last.record.Model)
	return c.finalize(requestID, records, last, cumulativeCost, threshold, true), nil
}
