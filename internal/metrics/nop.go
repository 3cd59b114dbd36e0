// Package metrics provides MetricsCollector implementations for the
// rebalance library.
package metrics

import "github.com/apmflow/rebalance/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A new no-op metrics collector instance
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// AssignmentMetrics implementation

// RecordAssignmentDuration discards the assignment duration metric.
func (n *NopMetrics) RecordAssignmentDuration(_ /* duration */ float64) {
	// No-op
}

// RecordAssignmentRound discards the assignment round metric.
func (n *NopMetrics) RecordAssignmentRound(_ /* members */ int, _ /* success */ bool) {
	// No-op
}

// RecordConfigMismatch discards the config mismatch metric.
func (n *NopMetrics) RecordConfigMismatch() {
	// No-op
}

// RecordAllocationChange discards the allocation change metric.
func (n *NopMetrics) RecordAllocationChange(_ /* started */, _ /* revoked */ int) {
	// No-op
}

// DelayMetrics implementation

// RecordRebalanceDelay discards the rebalance delay metric.
func (n *NopMetrics) RecordRebalanceDelay(_ /* delay */ float64) {
	// No-op
}

// RecordMissingWorkers discards the missing workers metric.
func (n *NopMetrics) RecordMissingWorkers(_ /* count */ int) {
	// No-op
}

// RecordGenerationReset discards the generation reset metric.
func (n *NopMetrics) RecordGenerationReset() {
	// No-op
}
