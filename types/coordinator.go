package types

import "context"

// ConfigSnapshot is a read-only view of the configured connectors and their
// tasks at a single config offset.
//
// Snapshots are immutable once handed out; the assignor reads one snapshot
// per round and never mutates it.
type ConfigSnapshot interface {
	// Offset returns the monotonic config offset this snapshot represents.
	Offset() int64

	// Connectors returns the configured connector IDs. Order is not
	// specified; callers that need determinism must sort.
	Connectors() []string

	// Tasks returns the configured task IDs for the given connector.
	// Returns an empty slice for unknown connectors.
	Tasks(connector string) []TaskID
}

// Coordinator is the group-coordination collaborator the assignor runs
// against. It provides generation bookkeeping, config snapshots, and a sink
// for the leader's post-assignment view of the group.
//
// Implementations own the group-membership protocol; the assignor never
// joins or leaves groups itself.
type Coordinator interface {
	// GenerationID returns the generation of the rebalance round in progress.
	GenerationID() int32

	// LastCompletedGenerationID returns the generation of the last round
	// that completed successfully, or -1 if none has.
	LastCompletedGenerationID() int32

	// MemberID returns this process's own member ID within the group.
	MemberID() string

	// ConfigSnapshot returns the cached config snapshot.
	ConfigSnapshot() ConfigSnapshot

	// FreshConfigSnapshot reads a fresh snapshot from the backing store,
	// bypassing the cache. The cached snapshot is not replaced; use
	// SetConfigSnapshot to install the fresh one.
	//
	// Parameters:
	//   - ctx: Context for the read operation
	//
	// Returns:
	//   - ConfigSnapshot: The freshly read snapshot
	//   - error: Read failure (aborts the assignment round)
	FreshConfigSnapshot(ctx context.Context) (ConfigSnapshot, error)

	// SetConfigSnapshot replaces the cached snapshot.
	SetConfigSnapshot(snapshot ConfigSnapshot)

	// SetLeaderState publishes the leader's view of member allocations.
	// Consumed by external status endpoints; ignored on followers.
	SetLeaderState(state *LeaderState)
}

// SnapshotSource provides config snapshots to a coordinator.
//
// A source is the authority on what is configured; the coordinator layers
// caching and distribution on top of it.
type SnapshotSource interface {
	// Snapshot reads the current configuration state.
	//
	// Parameters:
	//   - ctx: Context for the read operation
	//
	// Returns:
	//   - ConfigSnapshot: Current configuration
	//   - error: Read failure
	Snapshot(ctx context.Context) (ConfigSnapshot, error)
}
