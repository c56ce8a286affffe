package cascade

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Egham-7/cascade-engine/internal/models"
	"github.com/Egham-7/cascade-engine/internal/services/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTransport struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
}

func (s *stubTransport) Invoke(_ context.Context, modelID, _ string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, modelID)
	s.mu.Unlock()
	if err, ok := s.errs[modelID]; ok {
		return "", err
	}
	return "answer from " + modelID, nil
}

func (s *stubTransport) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fixedEvaluator struct{ score float64 }

func (f fixedEvaluator) Score(context.Context, string, string) (float64, error) {
	return f.score, nil
}

type recordingBreaker struct {
	mu        sync.Mutex
	successes int
	failures  int
}

func (b *recordingBreaker) CanExecute() bool { return true }
func (b *recordingBreaker) RecordSuccess() {
	b.mu.Lock()
	b.successes++
	b.mu.Unlock()
}
func (b *recordingBreaker) RecordFailure() {
	b.mu.Lock()
	b.failures++
	b.mu.Unlock()
}

func newTestService(t *testing.T, transport models.ModelTransport, score float64) *Service {
	t.Helper()
	store, err := cache.NewMemoryStore(64)
	require.NoError(t, err)
	return NewService(Dependencies{
		Cache:     cache.NewResponseCache(store),
		Transport: transport,
		Evaluator: fixedEvaluator{score: score},
	})
}

func TestExecuteRejectsEmptyQuery(t *testing.T) {
	s := newTestService(t, &stubTransport{}, 0.9)
	_, err := s.Execute(context.Background(), models.ExecuteRequest{Query: "   "})
	require.Error(t, err)
	assert.True(t, models.IsErrorType(err, models.ErrorTypeValidation))
}

func TestExecuteCacheWriteThroughAndHit(t *testing.T) {
	transport := &stubTransport{}
	s := newTestService(t, transport, 0.9)
	ctx := context.Background()

	first, err := s.Execute(ctx, models.ExecuteRequest{Query: "What is 2+2?"})
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Greater(t, first.TotalCost, 0.0)
	callsAfterFirst := transport.callCount()

	second, err := s.Execute(ctx, models.ExecuteRequest{Query: "what is  2+2?"})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Zero(t, second.TotalCost, "a cache hit never incurs cost")
	assert.Equal(t, first.Response, second.Response)
	assert.Equal(t, first.ModelSelected, second.ModelSelected)
	assert.Equal(t, callsAfterFirst, transport.callCount(), "a cache hit never invokes a model")
}

func TestExecuteHonorsCacheDisabledPolicy(t *testing.T) {
	transport := &stubTransport{}
	s := newTestService(t, transport, 0.9)
	require.NoError(t, s.SetPolicies(map[string]any{"cache_enabled": false}))
	ctx := context.Background()

	_, err := s.Execute(ctx, models.ExecuteRequest{Query: "What is 2+2?"})
	require.NoError(t, err)
	calls := transport.callCount()

	result, err := s.Execute(ctx, models.ExecuteRequest{Query: "What is 2+2?"})
	require.NoError(t, err)
	assert.False(t, result.CacheHit)
	assert.Greater(t, transport.callCount(), calls)
}

func TestExecuteDirectMode(t *testing.T) {
	transport := &stubTransport{}
	s := newTestService(t, transport, 0.1) // below threshold on purpose
	result, err := s.Execute(context.Background(), models.ExecuteRequest{
		Query:    "What is 2+2?",
		Metadata: map[string]any{"mode": "direct"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, transport.callCount(), "direct mode never escalates")
	assert.Contains(t, result.SelectionReasoning, "mode=direct")
}

func TestExecuteEscalationMode(t *testing.T) {
	transport := &stubTransport{}
	s := newTestService(t, transport, 0.1)
	require.NoError(t, s.SetPolicies(map[string]any{"cache_enabled": false}))

	result, err := s.Execute(context.Background(), models.ExecuteRequest{Query: "What is 2+2?"})
	require.NoError(t, err)
	// 0.1 never meets the threshold: one attempt per tier.
	assert.Equal(t, 3, transport.callCount())
	assert.Contains(t, result.SelectionReasoning, "status=exhausted")
}

func TestExecuteNeverCachesBelowThresholdAnswer(t *testing.T) {
	transport := &stubTransport{}
	s := newTestService(t, transport, 0.1) // exhausts every tier
	ctx := context.Background()

	first, err := s.Execute(ctx, models.ExecuteRequest{Query: "What is 2+2?"})
	require.NoError(t, err)
	assert.Contains(t, first.SelectionReasoning, "status=exhausted")
	calls := transport.callCount()

	second, err := s.Execute(ctx, models.ExecuteRequest{Query: "What is 2+2?"})
	require.NoError(t, err)
	assert.False(t, second.CacheHit, "an exhausted answer must not be pinned for the TTL")
	assert.Greater(t, transport.callCount(), calls)
}

func TestExecuteDeadlineExceeded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newTestService(t, &stubTransport{}, 0.9)
	require.NoError(t, s.SetPolicies(map[string]any{"cache_enabled": false}))

	_, err := s.Execute(ctx, models.ExecuteRequest{Query: "What is 2+2?"})
	require.Error(t, err)
	assert.True(t, models.IsErrorType(err, models.ErrorTypeDeadlineExceeded))
}

func TestExecuteWithEscalationTrackingReportsHistory(t *testing.T) {
	transport := &stubTransport{}
	s := newTestService(t, transport, 0.5)

	report, err := s.ExecuteWithEscalationTracking(context.Background(), "What is 2+2?", 0.95)
	require.NoError(t, err)
	assert.Equal(t, models.EscalationExhausted, report.Status)
	assert.Equal(t, 3, report.TotalAttempts)
	assert.Equal(t, "small", report.EscalationHistory[0].TierName)
	assert.Equal(t, "large", report.EscalationHistory[2].TierName)
}

func TestExecuteWithConsensus(t *testing.T) {
	transport := &stubTransport{}
	s := newTestService(t, transport, 0.8)

	result, err := s.ExecuteWithConsensus(context.Background(), "What is 2+2?",
		[]string{"openai:gpt-4o", "anthropic:claude-3-5-sonnet-20241022"}, 0.6, models.AggregationMajorityVote)
	require.NoError(t, err)
	assert.Len(t, result.IndividualResponses, 2)
	assert.Equal(t, models.AggregationMajorityVote, result.AggregationMethod)
}

func TestExecuteAdaptiveUpdatesRoutingHistory(t *testing.T) {
	transport := &stubTransport{}
	s := newTestService(t, transport, 0.9)
	require.NoError(t, s.SetPolicies(map[string]any{"cache_enabled": false}))

	result, err := s.ExecuteAdaptive(context.Background(), "What is 2+2?", "simple", 0.7)
	require.NoError(t, err)
	assert.NotEmpty(t, result.ModelSelected)
	assert.Contains(t, []string{"exploration", "exploitation"}, result.RoutingReason)
	assert.InDelta(t, 0.9, result.ActualPerformance.Quality, 1e-9)

	summary := s.router.Predict("simple", result.ModelSelected)
	require.NotNil(t, summary, "the observation must land in the rolling window")
	assert.Equal(t, 1, summary.SampleCount)

	recs := s.GetRoutingRecommendations()
	assert.Equal(t, result.ModelSelected, recs.CategoryModelMapping["simple"])
}

func TestExecuteAdaptiveServesCacheHit(t *testing.T) {
	transport := &stubTransport{}
	s := newTestService(t, transport, 0.9)
	ctx := context.Background()

	_, err := s.ExecuteAdaptive(ctx, "What is 2+2?", "simple", 0.7)
	require.NoError(t, err)

	result, err := s.ExecuteAdaptive(ctx, "What is 2+2?", "simple", 0.7)
	require.NoError(t, err)
	assert.True(t, result.CacheHit)
	assert.Equal(t, "cache_hit", result.RoutingReason)
}

func TestBreakerTransportRecordsOutcomes(t *testing.T) {
	breaker := &recordingBreaker{}
	inner := &stubTransport{errs: map[string]error{"openai:bad": errors.New("boom")}}
	bt := &breakerTransport{inner: inner, breakers: map[string]ProviderBreaker{"openai": breaker}}

	_, err := bt.Invoke(context.Background(), "openai:gpt-4o", "q")
	require.NoError(t, err)
	_, err = bt.Invoke(context.Background(), "openai:bad", "q")
	require.Error(t, err)

	assert.Equal(t, 1, breaker.successes)
	assert.Equal(t, 1, breaker.failures)
}

func TestSetPoliciesRejectsInvalid(t *testing.T) {
	s := newTestService(t, &stubTransport{}, 0.9)
	err := s.SetPolicies(map[string]any{"exploration_rate": 2.0})
	require.Error(t, err)
	assert.True(t, models.IsErrorType(err, models.ErrorTypeValidation))
}
