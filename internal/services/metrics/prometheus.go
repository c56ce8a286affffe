package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusExporter implements models.MetricsExporter on a Prometheus
// registry. All methods are cheap counter/histogram updates and never fail
// the request path.
type PrometheusExporter struct {
	cacheLookups     *prometheus.CounterVec
	escalationDepth  prometheus.Histogram
	consensusRuns    prometheus.Counter
	disagreements    prometheus.Counter
	consensusModels  prometheus.Histogram
	requestLatencyMs *prometheus.HistogramVec
}

// NewPrometheusExporter registers the engine's metrics on the given
// registerer (use prometheus.DefaultRegisterer in the server).
func NewPrometheusExporter(reg prometheus.Registerer) *PrometheusExporter {
	factory := promauto.With(reg)
	return &PrometheusExporter{
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cascade_cache_lookups_total",
			Help: "Response cache lookups by result.",
		}, []string{"result"}),
		escalationDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cascade_escalation_attempts",
			Help:    "Attempts per escalation run.",
			Buckets: []float64{1, 2, 3, 4, 5},
		}),
		consensusRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "cascade_consensus_runs_total",
			Help: "Completed consensus runs.",
		}),
		disagreements: factory.NewCounter(prometheus.CounterOpts{
			Name: "cascade_consensus_disagreements_total",
			Help: "Disagreement points across consensus runs.",
		}),
		consensusModels: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cascade_consensus_models",
			Help:    "Models fanned out per consensus run.",
			Buckets: []float64{2, 3, 4, 5, 8},
		}),
		requestLatencyMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cascade_request_latency_ms",
			Help:    "End-to-end request latency by execution mode.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12),
		}, []string{"mode"}),
	}
}

func (p *PrometheusExporter) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cacheLookups.WithLabelValues(result).Inc()
}

func (p *PrometheusExporter) RecordEscalationDepth(attempts int) {
	p.escalationDepth.Observe(float64(attempts))
}

func (p *PrometheusExporter) RecordConsensusRun(models, disagreements int) {
	p.consensusRuns.Inc()
	p.consensusModels.Observe(float64(models))
	p.disagreements.Add(float64(disagreements))
}

func (p *PrometheusExporter) RecordRequestLatency(mode string, latencyMs int64) {
	p.requestLatencyMs.WithLabelValues(mode).Observe(float64(latencyMs))
}
