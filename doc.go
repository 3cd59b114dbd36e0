// Package rebalance implements an incremental cooperative assignor for
// worker groups that collectively run data-pipeline connectors and their
// tasks.
//
// The group leader invokes the Assignor once per rebalance round with every
// member's metadata (endpoint, observed config offset, prior assignment).
// The assignor decides which connectors and tasks each worker starts,
// keeps, or stops, following the incremental cooperative discipline: stops
// and starts for the same unit never land in the same round, so no unit is
// ever owned by two workers at once.
//
// # Quick Start
//
//	assignor, err := rebalance.New(
//	    &rebalance.Config{MaxRebalanceDelay: 5 * time.Minute},
//	    rebalance.WithLogger(logging.NewSlogDefault()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	serialized, err := assignor.PerformAssignment(ctx, leaderID, members, coord)
//
// # Key Features
//
//   - Work continuity: a worker keeps every unit it already owns if that
//     unit still lands in its share of the deal.
//   - Class-aware balance: each connector's tasks are split into up to four
//     task classes (log, metric, trace, control) and the classes are dealt
//     round-robin across workers, so every worker carries a similar mix.
//   - Bounded grace window: when a worker disappears, its load is held
//     unassigned for a configurable delay before being redistributed,
//     tolerating restarts and transient network loss.
//
// # Architecture
//
// The root package holds the Assignor and the dealing pipeline. The types
// package carries the shared data model and collaborator interfaces. The
// protocol package encodes member metadata and assignments for the wire.
// The coordinator package provides a NATS JetStream backed Coordinator,
// and the snapshot package immutable in-memory config snapshots plus a
// static snapshot source for tests and tooling.
package rebalance
