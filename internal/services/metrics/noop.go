package metrics

// NoopExporter discards all metrics. Used in tests and when no registry is
// wired.
type NoopExporter struct{}

func NewNoopExporter() *NoopExporter { return &NoopExporter{} }

func (NoopExporter) RecordCacheLookup(bool)           {}
func (NoopExporter) RecordEscalationDepth(int)        {}
func (NoopExporter) RecordConsensusRun(int, int)      {}
func (NoopExporter) RecordRequestLatency(string, int64) {}
