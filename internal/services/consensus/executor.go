package consensus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Egham-7/cascade-engine/internal/models"
	"github.com/Egham-7/cascade-engine/internal/services/cost"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// minimum successful responses for an aggregation to be meaningful.
const minSuccessful = 2

// Executor fans a single request out to several named models concurrently
// and aggregates their answers. Each call gets its own timeout derived from
// the latency SLA; a model that errors or times out is recorded with an
// error marker and excluded from aggregation.
type Executor struct {
	estimator *cost.Estimator
	transport models.ModelTransport
	evaluator models.QualityEvaluator
}

// NewExecutor creates a consensus executor.
func NewExecutor(estimator *cost.Estimator, transport models.ModelTransport, evaluator models.QualityEvaluator) *Executor {
	return &Executor{
		estimator: estimator,
		transport: transport,
		evaluator: evaluator,
	}
}

// Params carries one consensus run's inputs.
type Params struct {
	RequestID   string
	Query       string
	Models      []string
	Threshold   float64
	Method      models.AggregationMethod
	CallTimeout time.Duration
}

// Execute invokes all models concurrently into fixed result slots, joins on
// them with a bounded timeout, and aggregates the successful responses.
func (e *Executor) Execute(ctx context.Context, p Params) (*models.ConsensusResult, error) {
	if len(p.Models) < minSuccessful {
		return nil, models.NewValidationError(
			fmt.Sprintf("consensus requires at least %d models, got %d", minSuccessful, len(p.Models)), nil)
	}
	method := p.Method
	if method == "" {
		method = models.AggregationWeightedAverage
	}

	fiberlog.Infof("[%s] ═══ Consensus Started (%d models, method=%s, per-call timeout=%v) ═══",
		p.RequestID, len(p.Models), method, p.CallTimeout)

	start := time.Now()
	results := e.fanOut(ctx, p)
	totalLatency := time.Since(start)

	succeeded := make([]models.IndividualResponse, 0, len(results))
	totalCost := 0.0
	for _, r := range results {
		totalCost += r.Cost
		if r.Error == "" {
			succeeded = append(succeeded, r)
		}
	}

	if len(succeeded) < minSuccessful {
		fiberlog.Errorf("[%s] Consensus failed: only %d of %d models responded", p.RequestID, len(succeeded), len(p.Models))
		return nil, models.NewInsufficientConsensusError(len(succeeded), minSuccessful)
	}

	chosen, disagreements := aggregate(p.Query, succeeded, method)
	score := weightedQualityMean(succeeded)
	agreement := agreementRatio(succeeded, disagreements)
	if agreement < p.Threshold {
		fiberlog.Warnf("[%s] Consensus agreement %.2f below threshold %.2f (%d disagreement points)",
			p.RequestID, agreement, p.Threshold, len(disagreements))
	}

	fiberlog.Infof("[%s] ═══ Consensus Complete (winner=%s, score=%.2f, cost=%.6f, disagreements=%d) ═══",
		p.RequestID, chosen.Model, score, totalCost, len(disagreements))

	return &models.ConsensusResult{
		ConsensusResponse:   chosen.Response,
		IndividualResponses: results,
		ConsensusScore:      score,
		DisagreementPoints:  disagreements,
		TotalCost:           totalCost,
		TotalLatencyMs:      totalLatency.Milliseconds(),
		AggregationMethod:   method,
	}, nil
}

// fanOut spawns one goroutine per model writing into its own result slot,
// then joins on all of them. If the caller context expires first, slots that
// never completed are marked as timeouts rather than waited on.
func (e *Executor) fanOut(ctx context.Context, p Params) []models.IndividualResponse {
	results := make([]models.IndividualResponse, len(p.Models))
	completed := make([]bool, len(p.Models))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i, model := range p.Models {
		wg.Add(1)
		go func(slot int, modelID string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					fiberlog.Errorf("[%s] Panic invoking %s: %v", p.RequestID, modelID, r)
					mu.Lock()
					results[slot] = models.IndividualResponse{Model: modelID, Error: fmt.Sprintf("panic: %v", r)}
					completed[slot] = true
					mu.Unlock()
				}
			}()

			outcome := e.invokeOne(ctx, modelID, p)
			mu.Lock()
			results[slot] = outcome
			completed[slot] = true
			mu.Unlock()
		}(i, model)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		fiberlog.Warnf("[%s] Consensus join cancelled: %v", p.RequestID, ctx.Err())
	}

	// Snapshot under the lock; abandoned calls become timeout markers.
	mu.Lock()
	defer mu.Unlock()
	snapshot := make([]models.IndividualResponse, len(results))
	for i := range results {
		if completed[i] {
			snapshot[i] = results[i]
		} else {
			snapshot[i] = models.IndividualResponse{Model: p.Models[i], Error: "timeout: call abandoned"}
		}
	}
	return snapshot
}

func (e *Executor) invokeOne(ctx context.Context, modelID string, p Params) models.IndividualResponse {
	callCtx := ctx
	if p.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	response, err := e.transport.Invoke(callCtx, modelID, p.Query)
	latency := time.Since(start)

	if err != nil {
		marker := err.Error()
		if callCtx.Err() != nil {
			marker = "timeout: " + marker
		}
		fiberlog.Warnf("[%s] ❌ Consensus model %s failed in %v: %v", p.RequestID, modelID, latency, err)
		return models.IndividualResponse{Model: modelID, LatencyMs: latency.Milliseconds(), Error: marker}
	}

	quality, err := e.evaluator.Score(ctx, p.Query, response)
	if err != nil {
		fiberlog.Warnf("[%s] Quality evaluation failed for %s, scoring 0.0: %v", p.RequestID, modelID, err)
		quality = 0.0
	}

	fiberlog.Infof("[%s] ✅ Consensus model %s responded in %v (quality=%.2f)", p.RequestID, modelID, latency, quality)
	return models.IndividualResponse{
		Model:        modelID,
		Response:     response,
		QualityScore: quality,
		Cost:         e.estimator.EstimateForText(modelID, p.Query, response),
		LatencyMs:    latency.Milliseconds(),
	}
}

// weightedQualityMean is the quality-weighted mean of included scores.
func weightedQualityMean(included []models.IndividualResponse) float64 {
	var weighted, total float64
	for _, r := range included {
		weighted += r.QualityScore * r.QualityScore
		total += r.QualityScore
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

func agreementRatio(included []models.IndividualResponse, disagreements []models.DisagreementPoint) float64 {
	dissenting := 0
	for _, d := range disagreements {
		dissenting += len(d.Models)
	}
	if len(included) == 0 {
		return 0
	}
	return float64(len(included)-dissenting) / float64(len(included))
}
