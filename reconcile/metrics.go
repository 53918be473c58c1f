package reconcile

// MetricsCollector receives counters from the engine. Implementations must be
// safe for concurrent use.
type MetricsCollector interface {
	// RecordConflicts records how many conflicts one detection produced
	RecordConflicts(detected int)

	// RecordResolution records one automatically resolved conflict
	RecordResolution(strategy StrategyKind, source Source)

	// RecordManualReview records one conflict deferred to a human
	RecordManualReview(field string)

	// RecordValidationError records a snapshot rejected before detection
	RecordValidationError()
}

// NoOpMetricsCollector is a default implementation that does nothing
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) RecordConflicts(detected int)                          {}
func (n *NoOpMetricsCollector) RecordResolution(strategy StrategyKind, source Source) {}
func (n *NoOpMetricsCollector) RecordManualReview(field string)                       {}
func (n *NoOpMetricsCollector) RecordValidationError()                                {}

// Hooks provides optional callbacks around detection and resolution.
// All hooks are optional; nil functions are safe no-ops. Hooks run on the
// caller's goroutine and must not block.
type Hooks struct {
	OnConflict func(entityID string, conflict FieldConflict)
	OnResolved func(entityID string, conflict FieldConflict, outcome ResolutionOutcome)
	OnPending  func(entityID string, conflict FieldConflict, outcome ResolutionOutcome)
	OnRecorded func(record HistoryRecord)
}
