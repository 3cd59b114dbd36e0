package types

import "errors"

// Sentinel errors for the rebalance library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components should use these sentinel errors for known error conditions
// and wrap external errors with context using fmt.Errorf("%s: %w", msg, err).

// Assignor errors - Public API errors returned by the Assignor.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCoordinatorRequired is returned when the coordinator is nil.
	ErrCoordinatorRequired = errors.New("coordinator is required")

	// ErrNoMembers is returned when an assignment round is invoked with an
	// empty member list.
	ErrNoMembers = errors.New("no members in rebalance round")

	// ErrMemberMetadata is returned when a member's metadata cannot be
	// deserialized. The round is aborted; the caller does not recover.
	ErrMemberMetadata = errors.New("malformed member metadata")

	// ErrSnapshotUnavailable is returned when the coordinator cannot
	// produce a config snapshot.
	ErrSnapshotUnavailable = errors.New("config snapshot unavailable")
)

// Coordinator errors - returned by coordinator implementations.
var (
	// ErrSnapshotSourceRequired is returned when the snapshot source is nil.
	ErrSnapshotSourceRequired = errors.New("snapshot source is required")

	// ErrLeaderStateUnavailable is returned when leader state is requested
	// before any assignment round has published one.
	ErrLeaderStateUnavailable = errors.New("leader state not published yet")
)
