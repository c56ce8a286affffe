package evaluator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cannedTransport struct {
	verdict string
	err     error
}

func (c cannedTransport) Invoke(context.Context, string, string) (string, error) {
	return c.verdict, c.err
}

func TestParseScore(t *testing.T) {
	cases := []struct {
		verdict string
		want    float64
	}{
		{"0.85", 0.85},
		{"Score: 0.7.", 0.7},
		{"I'd rate this 0.45 overall", 0.45},
		{"1.5", 1.0},
		{"-0.3", 0.0},
	}
	for _, tc := range cases {
		got, err := parseScore(tc.verdict)
		require.NoError(t, err, "verdict %q", tc.verdict)
		assert.InDelta(t, tc.want, got, 1e-9, "verdict %q", tc.verdict)
	}

	_, err := parseScore("no numbers here")
	assert.Error(t, err)
}

func TestLLMJudgeScore(t *testing.T) {
	judge := NewLLMJudge(cannedTransport{verdict: "0.9"}, "openai:gpt-4o-mini")
	score, err := judge.Score(context.Background(), "q", "a")
	require.NoError(t, err)
	assert.InDelta(t, 0.9, score, 1e-9)
}

func TestLLMJudgeTransportError(t *testing.T) {
	judge := NewLLMJudge(cannedTransport{err: errors.New("down")}, "openai:gpt-4o-mini")
	_, err := judge.Score(context.Background(), "q", "a")
	assert.Error(t, err)
}

func TestHeuristicScore(t *testing.T) {
	h := NewHeuristic()

	empty, err := h.Score(context.Background(), "anything", "   ")
	require.NoError(t, err)
	assert.Zero(t, empty)

	refusal, err := h.Score(context.Background(), "anything", "I can't help with that request")
	require.NoError(t, err)
	assert.InDelta(t, 0.2, refusal, 1e-9)

	engaged, err := h.Score(context.Background(), "explain the water cycle", "The water cycle moves water through evaporation and condensation")
	require.NoError(t, err)
	generic, err := h.Score(context.Background(), "explain the water cycle", "Many things happen in nature every single day somewhere")
	require.NoError(t, err)
	assert.Greater(t, engaged, generic, "term overlap raises the score")
}
