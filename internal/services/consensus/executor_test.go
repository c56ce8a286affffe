package consensus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Egham-7/cascade-engine/internal/models"
	"github.com/Egham-7/cascade-engine/internal/services/cost"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapTransport struct {
	responses map[string]string
	errs      map[string]error
}

func (m *mapTransport) Invoke(_ context.Context, modelID, _ string) (string, error) {
	if err, ok := m.errs[modelID]; ok {
		return "", err
	}
	return m.responses[modelID], nil
}

type mapEvaluator struct {
	scores map[string]float64 // keyed by response text
}

func (m *mapEvaluator) Score(_ context.Context, _, response string) (float64, error) {
	return m.scores[response], nil
}

func newTestExecutor(transport models.ModelTransport, evaluator models.QualityEvaluator) *Executor {
	return NewExecutor(cost.NewEstimator(), transport, evaluator)
}

func testParams(modelIDs ...string) Params {
	return Params{
		RequestID:   "test",
		Query:       "What is the boiling point of water at sea level?",
		Models:      modelIDs,
		Threshold:   0.6,
		Method:      models.AggregationWeightedAverage,
		CallTimeout: time.Second,
	}
}

func TestExecuteRejectsFewerThanTwoModels(t *testing.T) {
	e := newTestExecutor(&mapTransport{}, &mapEvaluator{})
	_, err := e.Execute(context.Background(), testParams("openai:gpt-4o"))
	require.Error(t, err)
	assert.True(t, models.IsErrorType(err, models.ErrorTypeValidation))
}

func TestExecuteToleratesOneFailure(t *testing.T) {
	transport := &mapTransport{
		responses: map[string]string{
			"openai:gpt-4o":                        "Water boils at 100 degrees Celsius at sea level",
			"anthropic:claude-3-5-sonnet-20241022": "Water boils at 100 degrees Celsius at sea level",
		},
		errs: map[string]error{"gemini:gemini-2.5-pro": errors.New("quota exceeded")},
	}
	evaluator := &mapEvaluator{scores: map[string]float64{
		"Water boils at 100 degrees Celsius at sea level": 0.9,
	}}
	e := newTestExecutor(transport, evaluator)

	result, err := e.Execute(context.Background(), testParams("openai:gpt-4o", "anthropic:claude-3-5-sonnet-20241022", "gemini:gemini-2.5-pro"))
	require.NoError(t, err)

	require.Len(t, result.IndividualResponses, 3, "failed calls are still reported")
	var failed int
	for _, r := range result.IndividualResponses {
		if r.Error != "" {
			failed++
			assert.Equal(t, "gemini:gemini-2.5-pro", r.Model)
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, "Water boils at 100 degrees Celsius at sea level", result.ConsensusResponse)
	assert.Empty(t, result.DisagreementPoints)
}

func TestExecuteInsufficientConsensus(t *testing.T) {
	transport := &mapTransport{
		responses: map[string]string{"openai:gpt-4o": "fine"},
		errs: map[string]error{
			"anthropic:claude-3-5-sonnet-20241022": errors.New("down"),
			"gemini:gemini-2.5-pro":                errors.New("down"),
		},
	}
	e := newTestExecutor(transport, &mapEvaluator{scores: map[string]float64{"fine": 0.9}})

	_, err := e.Execute(context.Background(), testParams("openai:gpt-4o", "anthropic:claude-3-5-sonnet-20241022", "gemini:gemini-2.5-pro"))
	require.Error(t, err)
	assert.True(t, models.IsErrorType(err, models.ErrorTypeInsufficientConsensus))
}

func TestExecuteRecordsDisagreement(t *testing.T) {
	agree := "The answer is 100 degrees Celsius at standard atmospheric pressure"
	dissent := "It depends entirely on the altitude and the purity of the liquid sample"
	transport := &mapTransport{responses: map[string]string{
		"m1": agree,
		"m2": agree,
		"m3": dissent,
	}}
	evaluator := &mapEvaluator{scores: map[string]float64{agree: 0.85, dissent: 0.6}}
	e := newTestExecutor(transport, evaluator)

	result, err := e.Execute(context.Background(), testParams("m1", "m2", "m3"))
	require.NoError(t, err)

	assert.Equal(t, agree, result.ConsensusResponse)
	require.Len(t, result.DisagreementPoints, 1)
	point := result.DisagreementPoints[0]
	assert.Equal(t, []string{"m3"}, point.Models)
	assert.Equal(t, []string{dissent}, point.Variants)
	assert.Equal(t, agree, point.Resolution)
	assert.NotEmpty(t, point.Topic)
}

func TestExecuteConsensusScoreIsQualityWeighted(t *testing.T) {
	a := "Response alpha with its own distinct set of words here"
	b := "Completely different response beta sharing nothing in common whatsoever today"
	transport := &mapTransport{responses: map[string]string{"m1": a, "m2": b}}
	evaluator := &mapEvaluator{scores: map[string]float64{a: 0.8, b: 0.6}}
	e := newTestExecutor(transport, evaluator)

	result, err := e.Execute(context.Background(), testParams("m1", "m2"))
	require.NoError(t, err)

	// sum(q^2)/sum(q) = (0.64+0.36)/1.4
	assert.InDelta(t, 1.0/1.4, result.ConsensusScore, 1e-9)
}

func TestExecuteBestQualityMethod(t *testing.T) {
	a := "Short answer agreeing with the common view of this question"
	b := "An entirely distinct and much more thorough treatment of the topic"
	transport := &mapTransport{responses: map[string]string{"m1": a, "m2": a, "m3": b}}
	evaluator := &mapEvaluator{scores: map[string]float64{a: 0.6, b: 0.95}}
	e := newTestExecutor(transport, evaluator)

	p := testParams("m1", "m2", "m3")
	p.Method = models.AggregationBestQuality
	result, err := e.Execute(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, b, result.ConsensusResponse, "best_quality returns the top-scored response verbatim")
}

func TestExecuteMajorityVoteMethod(t *testing.T) {
	a := "The majority position phrased in its usual words and numbers"
	b := "A dissenting position that differs from everything else entirely somehow"
	transport := &mapTransport{responses: map[string]string{"m1": a, "m2": a, "m3": b}}
	evaluator := &mapEvaluator{scores: map[string]float64{a: 0.5, b: 0.99}}
	e := newTestExecutor(transport, evaluator)

	p := testParams("m1", "m2", "m3")
	p.Method = models.AggregationMajorityVote
	result, err := e.Execute(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, a, result.ConsensusResponse, "majority_vote prefers the larger cluster")
}

func TestClusterResponsesGroupsSimilarAnswers(t *testing.T) {
	same := "the answer is one hundred degrees celsius"
	clusters := clusterResponses([]models.IndividualResponse{
		{Model: "m1", Response: same},
		{Model: "m2", Response: "The answer is one hundred degrees CELSIUS!"},
		{Model: "m3", Response: "something else entirely unrelated to temperature measurements altogether"},
	})
	require.Len(t, clusters, 2)
	assert.Len(t, clusters[0].members, 2)
	assert.Len(t, clusters[1].members, 1)
}

func TestJaccard(t *testing.T) {
	a := tokenSet("alpha beta gamma")
	b := tokenSet("alpha beta delta")
	assert.InDelta(t, 0.5, jaccard(a, b), 1e-9)
	assert.InDelta(t, 1.0, jaccard(a, a), 1e-9)
	assert.InDelta(t, 1.0, jaccard(tokenSet(""), tokenSet("")), 1e-9)
}
