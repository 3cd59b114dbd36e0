package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from the leader's assignment path and must be
// thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	AssignmentMetrics
	DelayMetrics
}

// AssignmentMetrics defines metrics for assignment rounds.
type AssignmentMetrics interface {
	// RecordAssignmentDuration records the time taken for one assignment round.
	//
	// Parameters:
	//   - duration: Time taken in seconds
	RecordAssignmentDuration(duration float64)

	// RecordAssignmentRound records one assignment round attempt.
	//
	// Parameters:
	//   - members: Number of members in the round
	//   - success: false when the round ended with ConfigMismatch
	RecordAssignmentRound(members int, success bool)

	// RecordConfigMismatch records a round rejected because the leader's
	// config snapshot was behind the group.
	RecordConfigMismatch()

	// RecordAllocationChange records how many units moved this round.
	//
	// Parameters:
	//   - started: Total connectors plus tasks newly started across members
	//   - revoked: Total connectors plus tasks revoked across members
	RecordAllocationChange(started, revoked int)
}

// DelayMetrics defines metrics for the scheduled-rebalance grace window.
type DelayMetrics interface {
	// RecordRebalanceDelay records the delay attached to the current round.
	//
	// Parameters:
	//   - delay: Delay in seconds (0 when no grace window is active)
	RecordRebalanceDelay(delay float64)

	// RecordMissingWorkers sets the number of workers held for during the
	// current grace window (gauge metric).
	RecordMissingWorkers(count int)

	// RecordGenerationReset records carried state being discarded after a
	// generation mismatch.
	RecordGenerationReset()
}
