package models

import "context"

// ModelTransport issues a single model invocation. Implementations are
// expected to apply their own retry/backoff; the cascade treats any returned
// error as one failed attempt.
type ModelTransport interface {
	Invoke(ctx context.Context, modelID, query string) (string, error)
}

// QualityEvaluator scores a response against its query in [0,1].
type QualityEvaluator interface {
	Score(ctx context.Context, query, response string) (float64, error)
}

// CostLedger is a fire-and-forget sink for per-invocation spend. Failures
// must never abort a user-facing request.
type CostLedger interface {
	Record(ctx context.Context, model string, tokensIn, tokensOut int, cost float64) error
}

// MetricsExporter is a sink for engine counters and timers. Implementations
// must be safe for concurrent use and must never fail the request path.
type MetricsExporter interface {
	RecordCacheLookup(hit bool)
	RecordEscalationDepth(attempts int)
	RecordConsensusRun(models, disagreements int)
	RecordRequestLatency(mode string, latencyMs int64)
}
