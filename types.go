package rebalance

import "github.com/apmflow/rebalance/types"

// Re-export types from the internal types package.
//
// This file provides a stable public API for the library's core types and
// interfaces. It uses type aliases to re-export definitions from the
// `types` subpackage, which contains the actual implementations.
//
// This pattern lets internal packages depend on `types` without depending
// on the root `rebalance` package, while still providing a convenient
// `rebalance.Assignment`, `rebalance.Logger`, etc. for users.
type (
	TaskID             = types.TaskID
	Assignment         = types.Assignment
	AssignmentError    = types.AssignmentError
	WorkerState        = types.WorkerState
	ConnectorsAndTasks = types.ConnectorsAndTasks
	LeaderState        = types.LeaderState
)

// Re-export interfaces from the internal types package for convenience.
type (
	Coordinator      = types.Coordinator
	ConfigSnapshot   = types.ConfigSnapshot
	SnapshotSource   = types.SnapshotSource
	Clock            = types.Clock
	Logger           = types.Logger
	MetricsCollector = types.MetricsCollector
)

// Re-export assignment error codes.
const (
	NoError        = types.NoError
	ConfigMismatch = types.ConfigMismatch
)
