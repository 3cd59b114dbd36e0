package rebalance

import "github.com/apmflow/rebalance/types"

// Sentinel errors returned by the Assignor.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrCoordinatorRequired is returned when the coordinator is nil.
	ErrCoordinatorRequired = types.ErrCoordinatorRequired

	// ErrNoMembers is returned when a round is invoked with no members.
	ErrNoMembers = types.ErrNoMembers

	// ErrMemberMetadata is returned when member metadata cannot be parsed.
	ErrMemberMetadata = types.ErrMemberMetadata

	// ErrSnapshotUnavailable is returned when a fresh config snapshot
	// cannot be read.
	ErrSnapshotUnavailable = types.ErrSnapshotUnavailable
)
