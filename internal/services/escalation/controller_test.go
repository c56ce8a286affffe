package escalation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Egham-7/cascade-engine/internal/models"
	"github.com/Egham-7/cascade-engine/internal/services/cost"
	"github.com/Egham-7/cascade-engine/internal/services/tiers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu      sync.Mutex
	calls   []string
	failing map[string]error
}

func (f *fakeTransport) Invoke(_ context.Context, modelID, _ string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, modelID)
	f.mu.Unlock()
	if err, ok := f.failing[modelID]; ok {
		return "", err
	}
	return "answer from " + modelID, nil
}

// scriptedEvaluator returns the configured scores in call order, repeating
// the last one.
type scriptedEvaluator struct {
	mu     sync.Mutex
	scores []float64
	idx    int
}

func (s *scriptedEvaluator) Score(context.Context, string, string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	score := s.scores[s.idx]
	if s.idx < len(s.scores)-1 {
		s.idx++
	}
	return score, nil
}

func newTestController(transport models.ModelTransport, evaluator models.QualityEvaluator) *Controller {
	return NewController(tiers.NewDefaultCatalog(), cost.NewEstimator(), transport, evaluator)
}

func baseParams() Params {
	return Params{
		RequestID:         "test",
		Query:             "What is 2+2?",
		Complexity:        "simple",
		QualityThreshold:  0.5,
		MaxCost:           0.5,
		EscalationEnabled: true,
		MaxEscalations:    3,
	}
}

func TestRunSatisfiedOnFirstAttempt(t *testing.T) {
	transport := &fakeTransport{}
	c := newTestController(transport, &scriptedEvaluator{scores: []float64{0.8}})

	report, err := c.Run(context.Background(), baseParams())
	require.NoError(t, err)

	assert.Equal(t, models.EscalationSatisfied, report.Status)
	assert.Equal(t, 1, report.TotalAttempts)
	require.Len(t, report.EscalationHistory, 1)
	assert.Equal(t, "small", report.EscalationHistory[0].TierName)
	assert.Equal(t, 1, report.EscalationHistory[0].AttemptNumber)
	assert.InDelta(t, 0.8, report.FinalQualityScore, 1e-9)
	assert.Greater(t, report.CumulativeCost, 0.0)
}

func TestRunEscalatesThroughAllTiersAndExhausts(t *testing.T) {
	transport := &fakeTransport{}
	c := newTestController(transport, &scriptedEvaluator{scores: []float64{0.6, 0.75, 0.9}})

	p := baseParams()
	p.QualityThreshold = 0.95
	report, err := c.Run(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, models.EscalationExhausted, report.Status)
	require.Len(t, report.EscalationHistory, 3)
	assert.Equal(t, "small", report.EscalationHistory[0].TierName)
	assert.Equal(t, "medium", report.EscalationHistory[1].TierName)
	assert.Equal(t, "large", report.EscalationHistory[2].TierName)

	// Last attempt wins, even though it scored below threshold.
	assert.InDelta(t, 0.9, report.FinalQualityScore, 1e-9)
	assert.Equal(t, report.EscalationHistory[2].Model, report.FinalModel)
	assert.True(t, strings.HasPrefix(report.FinalResponse, "answer from "))
}

func TestRunStopsWhenEscalationDisabled(t *testing.T) {
	transport := &fakeTransport{}
	c := newTestController(transport, &scriptedEvaluator{scores: []float64{0.1}})

	p := baseParams()
	p.EscalationEnabled = false
	report, err := c.Run(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, models.EscalationExhausted, report.Status)
	assert.Equal(t, 1, report.TotalAttempts)
}

func TestRunRespectsMaxEscalations(t *testing.T) {
	transport := &fakeTransport{}
	c := newTestController(transport, &scriptedEvaluator{scores: []float64{0.1}})

	p := baseParams()
	p.QualityThreshold = 0.99
	p.MaxEscalations = 1
	report, err := c.Run(context.Background(), p)
	require.NoError(t, err)

	// One escalation allowed: small then medium, no third attempt.
	assert.Equal(t, 2, report.TotalAttempts)
}

func TestRunBudgetGuardRejectsBeforeFirstAttempt(t *testing.T) {
	transport := &fakeTransport{}
	c := newTestController(transport, &scriptedEvaluator{scores: []float64{0.9}})

	p := baseParams()
	p.MaxCost = 1e-12
	_, err := c.Run(context.Background(), p)
	require.Error(t, err)
	assert.True(t, models.IsErrorType(err, models.ErrorTypeBudgetExceeded))
	assert.Empty(t, transport.calls, "no model call may be issued past the budget")
}

func TestRunFallsToNextCandidateOnModelError(t *testing.T) {
	catalog := tiers.NewDefaultCatalog()
	small := catalog.ModelsForTier(models.TierSmall)
	transport := &fakeTransport{failing: map[string]error{small[0]: errors.New("rate limited")}}
	c := newTestController(transport, &scriptedEvaluator{scores: []float64{0.8}})

	report, err := c.Run(context.Background(), baseParams())
	require.NoError(t, err)

	assert.Equal(t, 1, report.TotalAttempts, "candidate fallback is not an escalation")
	assert.Equal(t, small[1], report.FinalModel)
}

func TestRunAllModelsFailing(t *testing.T) {
	failing := make(map[string]error)
	catalog := tiers.NewDefaultCatalog()
	for _, tier := range models.AllTiers() {
		for _, m := range catalog.ModelsForTier(tier) {
			failing[m] = errors.New("down")
		}
	}
	transport := &fakeTransport{failing: failing}
	c := newTestController(transport, &scriptedEvaluator{scores: []float64{0.8}})

	_, err := c.Run(context.Background(), baseParams())
	require.Error(t, err)
	assert.True(t, models.IsErrorType(err, models.ErrorTypeTransientModel))
}

func TestRunExpiredContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	transport := &fakeTransport{}
	c := newTestController(transport, &scriptedEvaluator{scores: []float64{0.8}})

	_, err := c.Run(ctx, baseParams())
	require.Error(t, err)
	assert.True(t, models.IsErrorType(err, models.ErrorTypeDeadlineExceeded))
}
