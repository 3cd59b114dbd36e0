// Package coordinator provides a NATS JetStream backed implementation of
// types.Coordinator.
//
// The coordinator caches config snapshots from a SnapshotSource, persists
// the latest snapshot and the leader's post-assignment view of the group to
// a KV bucket, and tracks rebalance generations on behalf of the
// group-membership layer.
package coordinator
