package rebalance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apmflow/rebalance/protocol"
	"github.com/apmflow/rebalance/types"
)

// Member is one group member as delivered by the group-membership layer:
// its member ID and the metadata bytes it submitted when joining.
type Member struct {
	// ID is the member's worker ID for this rebalance round.
	ID string

	// Metadata is the member's serialized WorkerState.
	Metadata []byte
}

// Assignor computes incremental cooperative assignments of connectors and
// tasks for a worker group. It runs on the group leader and is invoked once
// per rebalance round with the full member list.
//
// The assignor carries a small amount of state across rounds within one
// process: the scheduled-rebalance timestamp and delay for the grace
// window, the previous member set, and the generation of the last round it
// computed. The state is reset whenever the coordinator reports a last
// completed generation the assignor did not produce.
//
// PerformAssignment is serialized with an internal mutex; the rest of the
// design assumes the group-coordination layer invokes it one round at a
// time.
type Assignor struct {
	mu sync.Mutex

	maxDelay int64 // milliseconds
	clock    types.Clock
	logger   types.Logger
	metrics  types.MetricsCollector

	// Cross-round state.
	scheduledRebalance   int64 // absolute ms timestamp, 0 when inactive
	delay                int64 // ms, 0 when inactive
	previousGenerationID int32
	previousMembers      map[string]struct{}
}

// New creates an assignor from the given configuration.
//
// Parameters:
//   - cfg: Assignor configuration (nil uses defaults)
//   - opts: Optional dependencies (logger, metrics, clock)
//
// Returns:
//   - *Assignor: New assignor with clean cross-round state
//   - error: Validation error when the configuration is invalid
//
// Example:
//
//	assignor, err := rebalance.New(
//	    &rebalance.Config{MaxRebalanceDelay: 5 * time.Minute},
//	    rebalance.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
func New(cfg *Config, opts ...Option) (*Assignor, error) {
	if cfg == nil {
		defaults := DefaultConfig()
		cfg = &defaults
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidConfig, err)
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Assignor{
		maxDelay:             cfg.MaxRebalanceDelay.Milliseconds(),
		clock:                options.clock,
		logger:               options.logger,
		metrics:              options.metrics,
		previousGenerationID: -1,
		previousMembers:      map[string]struct{}{},
	}, nil
}

// PerformAssignment computes one rebalance round and returns the serialized
// assignment for every member.
//
// The round:
//  1. Deserializes each member's metadata and picks the subprotocol version
//     (V4 only when every member's prior assignment is already V4).
//  2. Verifies the leader's config snapshot is at least as fresh as the
//     highest offset any member reported, refreshing once if needed. A
//     leader that stays behind emits ConfigMismatch assignments and leaves
//     carried state untouched.
//  3. Computes the target allocation, the per-member revocations, and the
//     per-member incremental starts, withholding from the starts anything
//     revoked from anyone this round.
//  4. Publishes the leader's view of the group to the coordinator.
//
// Parameters:
//   - ctx: Context for the at-most-one fresh snapshot read
//   - leaderID: Member ID of the leader (must be present in members)
//   - members: All members of this rebalance round with their metadata
//   - coordinator: Group coordination collaborator
//
// Returns:
//   - map[string][]byte: Serialized Assignment per member ID
//   - error: Malformed metadata, snapshot read failure, or empty membership;
//     the round is aborted and carried state is untouched
func (a *Assignor) PerformAssignment(
	ctx context.Context,
	leaderID string,
	members []Member,
	coordinator types.Coordinator,
) (map[string][]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if coordinator == nil {
		return nil, types.ErrCoordinatorRequired
	}
	if len(members) == 0 {
		return nil, types.ErrNoMembers
	}

	a.logger.Debug("performing task assignment")

	memberStates := make(map[string]*types.WorkerState, len(members))
	for _, member := range members {
		state, err := protocol.DeserializeWorkerState(member.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: member %s: %w", types.ErrMemberMetadata, member.ID, err)
		}
		memberStates[member.ID] = state
	}

	leader, ok := memberStates[leaderID]
	if !ok {
		return nil, fmt.Errorf("%w: leader %s not in member list", types.ErrNoMembers, leaderID)
	}

	maxOffset := int64(0)
	for _, state := range memberStates {
		maxOffset = max(maxOffset, state.Offset)
	}

	version := protocol.V4
	for _, state := range memberStates {
		if state.Assignment.Version != protocol.V4 {
			version = protocol.V3

			break
		}
	}

	a.logger.Debug("member configs gathered",
		"members", len(memberStates),
		"max_offset", maxOffset,
		"snapshot_offset", coordinator.ConfigSnapshot().Offset(),
		"protocol_version", version)

	start := time.Now()

	leaderOffset, ok, err := a.ensureLeaderConfig(ctx, maxOffset, coordinator)
	if err != nil {
		return nil, err
	}
	if !ok {
		a.logger.Info("selected to perform assignment but config snapshot is stale, " +
			"returning empty assignments to trigger re-sync")
		a.metrics.RecordConfigMismatch()
		a.metrics.RecordAssignmentRound(len(memberStates), false)

		assignments := fillAssignments(
			sortedKeys(memberStates), types.ConfigMismatch, leaderID, leader.URL,
			maxOffset, nil, nil, nil, 0, version)

		return serializeAssignments(assignments)
	}

	assignments := a.assignConnectorsAndTasks(leaderID, leader.URL, leaderOffset, memberStates, coordinator, version)

	a.metrics.RecordAssignmentDuration(time.Since(start).Seconds())
	a.metrics.RecordAssignmentRound(len(memberStates), true)

	return serializeAssignments(assignments)
}

// ensureLeaderConfig verifies the leader's snapshot covers maxOffset.
//
// When the cached snapshot is behind, one fresh snapshot is read; if it
// caught up, it is installed on the coordinator and its offset becomes the
// assignment offset. Otherwise the round must end in ConfigMismatch.
//
// Returns:
//   - int64: Offset to assign against (valid when ok)
//   - bool: false when the leader is still behind after refreshing
//   - error: Fresh snapshot read failure
func (a *Assignor) ensureLeaderConfig(
	ctx context.Context,
	maxOffset int64,
	coordinator types.Coordinator,
) (int64, bool, error) {
	if coordinator.ConfigSnapshot().Offset() >= maxOffset {
		return maxOffset, true, nil
	}

	// A fresh snapshot may let us catch up immediately and avoid another
	// round of syncing. If this node has passed the maximum reported by any
	// member it is also safe to use the newer state.
	updated, err := coordinator.FreshConfigSnapshot(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %w", types.ErrSnapshotUnavailable, err)
	}
	if updated.Offset() < maxOffset {
		return 0, false, nil
	}

	coordinator.SetConfigSnapshot(updated)

	return updated.Offset(), true, nil
}

// assignConnectorsAndTasks performs the incremental cooperative computation
// for one round against a fresh-enough snapshot.
func (a *Assignor) assignConnectorsAndTasks(
	leaderID string,
	leaderURL string,
	maxOffset int64,
	memberStates map[string]*types.WorkerState,
	coordinator types.Coordinator,
	version int16,
) map[string]*types.Assignment {
	a.logger.Debug("performing task assignment",
		"generation", coordinator.GenerationID(),
		"member_id", coordinator.MemberID())

	lastCompleted := coordinator.LastCompletedGenerationID()
	if a.previousGenerationID != lastCompleted {
		// The previous leader failed to sync its round or another worker led
		// in between; the carried view of delays and members is stale.
		a.logger.Debug("clearing carried state due to generation mismatch",
			"previous_generation", a.previousGenerationID,
			"last_completed_generation", lastCompleted,
			"stale_scheduled_rebalance", a.scheduledRebalance,
			"stale_delay_ms", a.delay,
			"stale_previous_members", sortedKeys(a.previousMembers))
		a.scheduledRebalance = 0
		a.delay = 0
		a.previousMembers = map[string]struct{}{}
		a.metrics.RecordGenerationReset()
	}

	snapshot := coordinator.ConfigSnapshot()
	configuredConnectors := snapshot.Connectors()
	configured := configuredSet(snapshot, configuredConnectors)
	sortedConnectors := configured.SortedConnectors()
	configuredTasks := configured.SortedTasks()
	a.logger.Debug("configured assignments", "configured", configured)

	currentAllocation := make(map[string]types.ConnectorsAndTasks, len(memberStates))
	for member, state := range memberStates {
		currentAllocation[member] = types.NewConnectorsAndTasks(
			state.Assignment.Connectors, state.Assignment.Tasks)
	}
	a.logger.Debug("current allocation", "allocation", currentAllocation)

	// Read the clock exactly once per round.
	now := a.clock.NowMillis()

	newAllocation := a.newAllocation(now, sortedConnectors, configuredTasks, currentAllocation)
	a.logger.Debug("new allocation", "allocation", newAllocation)

	toRevoke := make(map[string]types.ConnectorsAndTasks, len(currentAllocation))
	for worker, current := range currentAllocation {
		toRevoke[worker] = current.Diff(newAllocation[worker])
	}
	a.logger.Debug("allocation to revoke", "allocation", toRevoke)

	newConnectors := make(map[string][]string, len(newAllocation))
	newTasks := make(map[string][]types.TaskID, len(newAllocation))
	currentConnectors := make(map[string][]string, len(currentAllocation))
	currentTasks := make(map[string][]types.TaskID, len(currentAllocation))
	for worker, alloc := range newAllocation {
		newConnectors[worker] = alloc.SortedConnectors()
		newTasks[worker] = alloc.SortedTasks()
	}
	for worker, alloc := range currentAllocation {
		currentConnectors[worker] = alloc.SortedConnectors()
		currentTasks[worker] = alloc.SortedTasks()
	}

	// Anything revoked from anyone this round is withheld from every start
	// set: stops complete in this round, the matching starts follow in a
	// later one.
	connectorStarts := diffAssigned(newConnectors, currentConnectors)
	taskStarts := diffAssigned(newTasks, currentTasks)
	withholdRevoked(connectorStarts, taskStarts, toRevoke)

	a.logger.Debug("incremental connector assignments", "assignments", connectorStarts)
	a.logger.Debug("incremental task assignments", "assignments", taskStarts)

	a.publishLeaderState(coordinator, memberStates, configured)

	started, revoked := allocationChangeCounts(connectorStarts, taskStarts, toRevoke)
	a.metrics.RecordAllocationChange(started, revoked)
	a.metrics.RecordRebalanceDelay(float64(a.delay) / 1000)

	assignments := fillAssignments(
		sortedKeys(memberStates), types.NoError, leaderID, leaderURL, maxOffset,
		connectorStarts, taskStarts, toRevoke, a.delay, version)

	a.previousGenerationID = coordinator.GenerationID()

	for member, assignment := range assignments {
		a.logger.Debug("filled assignment", "member", member, "assignment", assignment)
	}

	return assignments
}

// publishLeaderState hands the coordinator the leader's view of the group:
// each member's reported connectors and tasks filtered to the configured
// set, plus the raw member states.
func (a *Assignor) publishLeaderState(
	coordinator types.Coordinator,
	memberStates map[string]*types.WorkerState,
	configured types.ConnectorsAndTasks,
) {
	connectorAllocation := make(map[string][]string, len(memberStates))
	taskAllocation := make(map[string][]types.TaskID, len(memberStates))

	for member, state := range memberStates {
		connectors := make([]string, 0, len(state.Assignment.Connectors))
		for _, c := range state.Assignment.Connectors {
			if _, ok := configured.Connectors[c]; ok {
				connectors = append(connectors, c)
			}
		}
		connectorAllocation[member] = connectors

		tasks := make([]types.TaskID, 0, len(state.Assignment.Tasks))
		for _, t := range state.Assignment.Tasks {
			if _, ok := configured.Tasks[t]; ok {
				tasks = append(tasks, t)
			}
		}
		taskAllocation[member] = tasks
	}

	coordinator.SetLeaderState(&types.LeaderState{
		Members:             memberStates,
		ConnectorAllocation: connectorAllocation,
		TaskAllocation:      taskAllocation,
	})
}

// configuredSet gathers the snapshot's connectors and all of their tasks.
func configuredSet(snapshot types.ConfigSnapshot, connectors []string) types.ConnectorsAndTasks {
	var tasks []types.TaskID
	for _, connector := range connectors {
		tasks = append(tasks, snapshot.Tasks(connector)...)
	}

	return types.NewConnectorsAndTasks(connectors, tasks)
}

// withholdRevoked deletes from every member's start sets any connector or
// task present in any member's revocation set.
func withholdRevoked(
	connectorStarts map[string][]string,
	taskStarts map[string][]types.TaskID,
	toRevoke map[string]types.ConnectorsAndTasks,
) {
	for worker, connectors := range connectorStarts {
		kept := connectors[:0]
		for _, connector := range connectors {
			revoked := false
			for _, revocation := range toRevoke {
				if _, ok := revocation.Connectors[connector]; ok {
					revoked = true

					break
				}
			}
			if !revoked {
				kept = append(kept, connector)
			}
		}
		connectorStarts[worker] = kept
	}

	for worker, tasks := range taskStarts {
		kept := tasks[:0]
		for _, task := range tasks {
			revoked := false
			for _, revocation := range toRevoke {
				if _, ok := revocation.Tasks[task]; ok {
					revoked = true

					break
				}
			}
			if !revoked {
				kept = append(kept, task)
			}
		}
		taskStarts[worker] = kept
	}
}

// allocationChangeCounts totals the units started and revoked this round.
func allocationChangeCounts(
	connectorStarts map[string][]string,
	taskStarts map[string][]types.TaskID,
	toRevoke map[string]types.ConnectorsAndTasks,
) (started, revoked int) {
	for _, connectors := range connectorStarts {
		started += len(connectors)
	}
	for _, tasks := range taskStarts {
		started += len(tasks)
	}
	for _, revocation := range toRevoke {
		revoked += len(revocation.Connectors) + len(revocation.Tasks)
	}

	return started, revoked
}

// fillAssignments builds one Assignment per member from the computed start
// and revocation sets.
func fillAssignments(
	members []string,
	errorCode types.AssignmentError,
	leaderID string,
	leaderURL string,
	maxOffset int64,
	connectorStarts map[string][]string,
	taskStarts map[string][]types.TaskID,
	toRevoke map[string]types.ConnectorsAndTasks,
	delayMillis int64,
	version int16,
) map[string]*types.Assignment {
	assignments := make(map[string]*types.Assignment, len(members))
	for _, member := range members {
		revocation := toRevoke[member]
		assignments[member] = &types.Assignment{
			Version:           version,
			Error:             errorCode,
			LeaderID:          leaderID,
			LeaderURL:         leaderURL,
			ConfigOffset:      maxOffset,
			Connectors:        emptyIfNil(connectorStarts[member]),
			Tasks:             emptyIfNil(taskStarts[member]),
			RevokedConnectors: revocation.SortedConnectors(),
			RevokedTasks:      revocation.SortedTasks(),
			Delay:             time.Duration(delayMillis) * time.Millisecond,
		}
	}

	return assignments
}

// serializeAssignments encodes every member's assignment for the wire.
func serializeAssignments(assignments map[string]*types.Assignment) (map[string][]byte, error) {
	serialized := make(map[string][]byte, len(assignments))
	for member, assignment := range assignments {
		data, err := protocol.SerializeAssignment(assignment)
		if err != nil {
			return nil, fmt.Errorf("serializing assignment for %s: %w", member, err)
		}
		serialized[member] = data
	}

	return serialized, nil
}

func emptyIfNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}

	return values
}
