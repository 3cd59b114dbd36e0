// Package types contains the core data model and interfaces shared across
// the rebalance library: task identities, connector/task sets, per-member
// assignments, and the external collaborator interfaces (Coordinator,
// ConfigSnapshot, Clock, Logger, MetricsCollector).
//
// Keeping these in a leaf package lets internal packages depend on them
// without importing the root rebalance package.
package types
