package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncNotifications counts a received record by event class.
	IncNotifications(class string)

	// IncMalformed counts a message body that did not decode.
	IncMalformed()

	// IncOutcome counts a handled record by outcome.
	IncOutcome(outcome string)

	// SetCatalogItems sets the number of items in the catalog.
	SetCatalogItems(count int)

	// ObservePersistDuration records the duration of a save cycle.
	ObservePersistDuration(success bool, duration time.Duration)

	// ObserveExtractionDuration records the duration of a geometry extraction.
	ObserveExtractionDuration(success bool, duration time.Duration)

	// IncStorageOperations increments storage operation counter.
	IncStorageOperations(scheme, operation string, success bool)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncNotifications implements MetricsCollector.
func (n *NoOpMetrics) IncNotifications(_ string) {}

// IncMalformed implements MetricsCollector.
func (n *NoOpMetrics) IncMalformed() {}

// IncOutcome implements MetricsCollector.
func (n *NoOpMetrics) IncOutcome(_ string) {}

// SetCatalogItems implements MetricsCollector.
func (n *NoOpMetrics) SetCatalogItems(_ int) {}

// ObservePersistDuration implements MetricsCollector.
func (n *NoOpMetrics) ObservePersistDuration(_ bool, _ time.Duration) {}

// ObserveExtractionDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveExtractionDuration(_ bool, _ time.Duration) {}

// IncStorageOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStorageOperations(_, _ string, _ bool) {}
