package models

import "time"

// ExecutionMode selects how the facade chooses a model for a request.
type ExecutionMode string

const (
	ModeDirect     ExecutionMode = "direct"
	ModeAdaptive   ExecutionMode = "adaptive"
	ModeEscalation ExecutionMode = "escalation"
)

// ExecuteRequest is the caller-facing request for a single cascade execution.
type ExecuteRequest struct {
	Query              string         `json:"query"`
	QualityRequirement float64        `json:"quality_requirement,omitempty"`
	MaxCost            float64        `json:"max_cost,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

// ExecutionResult is the public result of a cascade execution.
// TotalCost is always 0 when CacheHit is true: a cache hit never invokes a
// model.
type ExecutionResult struct {
	Response           string  `json:"response"`
	ModelSelected      string  `json:"model_selected"`
	QualityScore       float64 `json:"quality_score"`
	TotalCost          float64 `json:"total_cost"`
	LatencyMs          int64   `json:"latency_ms"`
	CacheHit           bool    `json:"cache_hit"`
	DeadlineExceeded   bool    `json:"deadline_exceeded,omitempty"`
	SelectionReasoning string  `json:"selection_reasoning"`
}

// EscalationRecord captures one attempt of the escalation state machine.
// Records are strictly ordered by AttemptNumber within a request and are
// discarded once the request completes.
type EscalationRecord struct {
	AttemptNumber int       `json:"attempt_number"`
	Tier          ModelTier `json:"-"`
	TierName      string    `json:"tier"`
	Model         string    `json:"model"`
	QualityScore  float64   `json:"quality_score"`
	Cost          float64   `json:"cost"`
	LatencyMs     int64     `json:"latency_ms"`
}

// EscalationStatus is the terminal state of an escalation run.
type EscalationStatus string

const (
	// EscalationSatisfied means the final attempt met the quality threshold.
	EscalationSatisfied EscalationStatus = "satisfied"
	// EscalationExhausted means the run stopped (attempt ceiling, top tier,
	// or escalation disabled) without meeting the threshold.
	EscalationExhausted EscalationStatus = "exhausted"
)

// EscalationReport is returned by ExecuteWithEscalationTracking. The final
// response is always the last attempt's, never the best-scoring one.
type EscalationReport struct {
	FinalResponse     string             `json:"final_response"`
	FinalModel        string             `json:"final_model"`
	EscalationHistory []EscalationRecord `json:"escalation_history"`
	TotalAttempts     int                `json:"total_attempts"`
	FinalQualityScore float64            `json:"final_quality_score"`
	CumulativeCost    float64            `json:"cumulative_cost"`
	Status            EscalationStatus   `json:"status"`
	DeadlineExceeded  bool               `json:"deadline_exceeded,omitempty"`
}

// AggregationMethod selects how consensus responses are combined.
type AggregationMethod string

const (
	AggregationWeightedAverage AggregationMethod = "weighted_average"
	AggregationMajorityVote    AggregationMethod = "majority_vote"
	AggregationBestQuality     AggregationMethod = "best_quality"
)

// IndividualResponse is one model's outcome inside a consensus run. Error is
// empty on success; on failure the response is excluded from aggregation but
// still reported here.
type IndividualResponse struct {
	Model        string  `json:"model"`
	Response     string  `json:"response,omitempty"`
	QualityScore float64 `json:"quality_score,omitempty"`
	Cost         float64 `json:"cost,omitempty"`
	LatencyMs    int64   `json:"latency_ms"`
	Error        string  `json:"error,omitempty"`
}

// DisagreementPoint records one divergence between consensus responses:
// the topic, the variant answers, and the answer chosen as the resolution.
type DisagreementPoint struct {
	Topic      string   `json:"topic"`
	Variants   []string `json:"variants"`
	Resolution string   `json:"resolution"`
	Models     []string `json:"models,omitempty"`
}

// ConsensusResult aggregates a concurrent multi-model run.
type ConsensusResult struct {
	ConsensusResponse   string               `json:"consensus_response"`
	IndividualResponses []IndividualResponse `json:"individual_responses"`
	ConsensusScore      float64              `json:"consensus_score"`
	DisagreementPoints  []DisagreementPoint  `json:"disagreement_points"`
	TotalCost           float64              `json:"total_cost"`
	TotalLatencyMs      int64                `json:"total_latency_ms"`
	AggregationMethod   AggregationMethod    `json:"aggregation_method"`
}

// PerformanceSample is one recorded (quality, latency, cost) observation for
// a (category, model) pair.
type PerformanceSample struct {
	Quality   float64 `json:"quality"`
	LatencyMs int64   `json:"latency_ms"`
	Cost      float64 `json:"cost"`
}

// PerformanceSummary holds the rolling statistics derived from the bounded
// observation window of a (category, model) pair.
type PerformanceSummary struct {
	Category     string  `json:"category"`
	Model        string  `json:"model"`
	SampleCount  int     `json:"sample_count"`
	AvgQuality   float64 `json:"avg_quality"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	AvgCost      float64 `json:"avg_cost"`
}

// RoutingRecommendation is the per-category output of
// GetRoutingRecommendations.
type RoutingRecommendation struct {
	Category   string               `json:"category"`
	BestModel  string               `json:"best_model"`
	Fallbacks  []string             `json:"fallbacks"`
	Confidence float64              `json:"confidence"`
	Summary    []PerformanceSummary `json:"summary"`
}

// RoutingRecommendations is the full recommendation report.
type RoutingRecommendations struct {
	CategoryModelMapping map[string]string                `json:"category_model_mapping"`
	ConfidenceScores     map[string]float64               `json:"confidence_scores"`
	Recommendations      map[string]RoutingRecommendation `json:"performance_summary"`
	GeneratedAt          time.Time                        `json:"generated_at"`
}

// AdaptiveResult extends ExecutionResult with routing introspection for
// ExecuteAdaptive.
type AdaptiveResult struct {
	ExecutionResult
	RoutingReason         string              `json:"routing_reason"`
	PerformancePrediction *PerformanceSummary `json:"performance_prediction,omitempty"`
	ActualPerformance     PerformanceSample   `json:"actual_performance"`
}
