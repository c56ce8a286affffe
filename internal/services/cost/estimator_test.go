package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTierOrdering(t *testing.T) {
	e := NewEstimator()
	const in, out = 1000, 500

	small := e.Estimate("openai:gpt-4o-mini", in, out)
	medium := e.Estimate("openai:gpt-4o", in, out)
	large := e.Estimate("anthropic:claude-opus-4.1", in, out)

	assert.Greater(t, small, 0.0)
	assert.Greater(t, medium, small)
	assert.Greater(t, large, medium)
}

func TestEstimateUnknownModelUsesDefaultPricing(t *testing.T) {
	e := NewEstimator()
	cost := e.Estimate("acme:frontier-1", 1000, 500)
	assert.Greater(t, cost, 0.0, "unknown models must not look free")
}

func TestEstimateBareModelDefaultsToOpenAI(t *testing.T) {
	e := NewEstimator()
	assert.Equal(t, e.Estimate("openai:gpt-4o", 100, 100), e.Estimate("gpt-4o", 100, 100))
}

func TestEstimateForText(t *testing.T) {
	e := NewEstimator()
	short := e.EstimateForText("openai:gpt-4o", "hi", "ok")
	long := e.EstimateForText("openai:gpt-4o", "a much longer query with many more tokens in it than the short one", "and a correspondingly longer answer with plenty of words")
	assert.Greater(t, long, short)
}

func TestProjectCost(t *testing.T) {
	e := NewEstimator()
	projected := e.ProjectCost("openai:gpt-4o", "What is 2+2?", 500)
	assert.Greater(t, projected, 0.0)
	assert.Greater(t, e.ProjectCost("openai:gpt-4o", "What is 2+2?", 1000), projected)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("ab"), "non-empty text is at least one token")
	assert.Equal(t, 3, EstimateTokens("twelve chars"))
}
