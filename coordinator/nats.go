package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/apmflow/rebalance/internal/logger"
	"github.com/apmflow/rebalance/snapshot"
	"github.com/apmflow/rebalance/types"
)

// publishTimeout bounds the best-effort KV writes made from interface
// methods that carry no context.
const publishTimeout = 5 * time.Second

// Config holds NATS coordinator configuration.
//
// Required fields must be set before calling NewNATS. Optional fields fall
// back to sensible defaults.
type Config struct {
	// Required dependencies
	KV     jetstream.KeyValue   // KV bucket for snapshots and leader state
	Source types.SnapshotSource // Authority for fresh config snapshots

	// Required configuration
	MemberID string // This process's member ID within the group

	// Optional configuration (with defaults)
	SnapshotKey    string // KV key for the persisted snapshot (default: "config.snapshot")
	LeaderStateKey string // KV key for the leader state (default: "leader.state")

	// Optional dependencies
	Logger types.Logger // Logger (default: no-op)
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.KV == nil {
		return errors.New("the KV bucket is required")
	}
	if c.Source == nil {
		return types.ErrSnapshotSourceRequired
	}
	if c.MemberID == "" {
		return errors.New("the MemberID is required")
	}

	return nil
}

// SetDefaults applies default values for optional fields.
func (c *Config) SetDefaults() {
	if c.SnapshotKey == "" {
		c.SnapshotKey = "config.snapshot"
	}
	if c.LeaderStateKey == "" {
		c.LeaderStateKey = "leader.state"
	}
	if c.Logger == nil {
		c.Logger = logger.NewNop()
	}
}

// storedSnapshot is the compact KV form of a config snapshot.
type storedSnapshot struct {
	Offset     int64          `json:"offset"`
	TaskCounts map[string]int `json:"taskCounts"`
}

// storedLeaderState is the KV form of the leader's group view.
type storedLeaderState struct {
	ConnectorAllocation map[string][]string       `json:"connectorAllocation"`
	TaskAllocation      map[string][]types.TaskID `json:"taskAllocation"`
}

// NATS implements types.Coordinator over a JetStream KV bucket.
//
// Generation bookkeeping is driven by the group-membership layer through
// BeginGeneration and CompleteGeneration; the assignor only reads it.
type NATS struct {
	kv             jetstream.KeyValue
	source         types.SnapshotSource
	memberID       string
	snapshotKey    string
	leaderStateKey string
	logger         types.Logger

	mu     sync.RWMutex
	cached types.ConfigSnapshot

	generationID     atomic.Int32
	lastCompletedGen atomic.Int32

	// memberStates holds the member metadata from the last published leader
	// state. Read concurrently by status endpoints while the assignor
	// publishes the next round.
	memberStates *xsync.Map[string, *types.WorkerState]
	leaderState  atomic.Pointer[types.LeaderState]
}

// Compile-time assertion that NATS implements Coordinator.
var _ types.Coordinator = (*NATS)(nil)

// NewNATS creates a NATS-backed coordinator with validated configuration.
//
// Parameters:
//   - cfg: Coordinator configuration (required fields must be set)
//
// Returns:
//   - *NATS: New coordinator, not yet loaded (call Load)
//   - error: Validation error if required fields are missing
//
// Example:
//
//	kv, _ := kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{Bucket: "rebalance"})
//	coord, err := coordinator.NewNATS(&coordinator.Config{
//	    KV:       kv,
//	    Source:   src,
//	    MemberID: "worker-3",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := coord.Load(ctx); err != nil {
//	    log.Fatal(err)
//	}
func NewNATS(cfg *Config) (*NATS, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.SetDefaults()

	n := &NATS{
		kv:             cfg.KV,
		source:         cfg.Source,
		memberID:       cfg.MemberID,
		snapshotKey:    cfg.SnapshotKey,
		leaderStateKey: cfg.LeaderStateKey,
		logger:         cfg.Logger,
		memberStates:   xsync.NewMap[string, *types.WorkerState](),
	}
	n.generationID.Store(0)
	n.lastCompletedGen.Store(-1)

	return n, nil
}

// Load primes the snapshot cache, preferring the persisted KV copy and
// falling back to the source when the bucket holds none.
//
// Parameters:
//   - ctx: Context for KV and source reads
//
// Returns:
//   - error: Bucket read failure other than a missing key, or source read
//     failure when the bucket holds no snapshot
func (n *NATS) Load(ctx context.Context) error {
	view, err := n.readStoredSnapshot(ctx)
	if err != nil {
		if !errors.Is(err, jetstream.ErrKeyNotFound) {
			return fmt.Errorf("failed to read stored snapshot: %w", err)
		}

		fresh, err := n.source.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("failed to read snapshot from source: %w", err)
		}
		view = fresh

		if err := n.persistSnapshot(ctx, fresh); err != nil {
			n.logger.Warn("failed to persist initial snapshot", "error", err)
		}
	}

	n.mu.Lock()
	n.cached = view
	n.mu.Unlock()

	n.logger.Info("coordinator loaded", "snapshot_offset", view.Offset())

	return nil
}

// GenerationID returns the generation of the round in progress.
func (n *NATS) GenerationID() int32 {
	return n.generationID.Load()
}

// LastCompletedGenerationID returns the generation of the last successfully
// completed round, or -1 if none has completed.
func (n *NATS) LastCompletedGenerationID() int32 {
	return n.lastCompletedGen.Load()
}

// MemberID returns this process's member ID.
func (n *NATS) MemberID() string {
	return n.memberID
}

// BeginGeneration records the generation of a newly started rebalance
// round. Called by the group-membership layer when a round begins.
func (n *NATS) BeginGeneration(generation int32) {
	n.generationID.Store(generation)
	n.logger.Debug("generation started", "generation", generation)
}

// CompleteGeneration records that the round for the given generation
// synced successfully. Called by the group-membership layer.
func (n *NATS) CompleteGeneration(generation int32) {
	n.lastCompletedGen.Store(generation)
	n.logger.Debug("generation completed", "generation", generation)
}

// ConfigSnapshot returns the cached config snapshot. Before Load it returns
// an empty snapshot at offset 0.
func (n *NATS) ConfigSnapshot() types.ConfigSnapshot {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.cached == nil {
		return snapshot.NewView(0, nil)
	}

	return n.cached
}

// FreshConfigSnapshot reads a fresh snapshot from the source, bypassing the
// cache. The cache is not replaced; callers install the fresh snapshot via
// SetConfigSnapshot once they decide to use it.
func (n *NATS) FreshConfigSnapshot(ctx context.Context) (types.ConfigSnapshot, error) {
	fresh, err := n.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read fresh snapshot: %w", err)
	}

	n.logger.Debug("fresh snapshot read", "offset", fresh.Offset())

	return fresh, nil
}

// SetConfigSnapshot replaces the cached snapshot and persists it to the KV
// bucket. Persistence is best-effort; the cache is authoritative within
// this process.
func (n *NATS) SetConfigSnapshot(snap types.ConfigSnapshot) {
	n.mu.Lock()
	n.cached = snap
	n.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := n.persistSnapshot(ctx, snap); err != nil {
		n.logger.Warn("failed to persist snapshot", "offset", snap.Offset(), "error", err)
	}
}

// SetLeaderState publishes the leader's post-assignment view of the group.
//
// The view is cached for LeaderState readers and persisted to the KV bucket
// for external status endpoints. Persistence is best-effort.
func (n *NATS) SetLeaderState(state *types.LeaderState) {
	n.leaderState.Store(state)

	n.memberStates.Clear()
	for member, ws := range state.Members {
		n.memberStates.Store(member, ws)
	}

	stored := storedLeaderState{
		ConnectorAllocation: state.ConnectorAllocation,
		TaskAllocation:      state.TaskAllocation,
	}
	data, err := json.Marshal(stored)
	if err != nil {
		n.logger.Error("failed to marshal leader state", "error", err)

		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if _, err := n.kv.Put(ctx, n.leaderStateKey, data); err != nil {
		n.logger.Warn("failed to persist leader state", "error", err)
	}
}

// LeaderState returns the last published leader view.
//
// Returns:
//   - *types.LeaderState: The view from the most recent assignment round
//   - error: ErrLeaderStateUnavailable before the first round
func (n *NATS) LeaderState() (*types.LeaderState, error) {
	state := n.leaderState.Load()
	if state == nil {
		return nil, types.ErrLeaderStateUnavailable
	}

	return state, nil
}

// MemberState returns the metadata a member reported in the last round.
//
// Returns:
//   - *types.WorkerState: The member's reported state
//   - bool: false when the member is unknown
func (n *NATS) MemberState(member string) (*types.WorkerState, bool) {
	return n.memberStates.Load(member)
}

func (n *NATS) readStoredSnapshot(ctx context.Context) (types.ConfigSnapshot, error) {
	entry, err := n.kv.Get(ctx, n.snapshotKey)
	if err != nil {
		return nil, err
	}

	var stored storedSnapshot
	if err := json.Unmarshal(entry.Value(), &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored snapshot: %w", err)
	}

	return snapshot.NewViewWithCounts(stored.Offset, stored.TaskCounts), nil
}

func (n *NATS) persistSnapshot(ctx context.Context, snap types.ConfigSnapshot) error {
	counts := make(map[string]int)
	for _, connector := range snap.Connectors() {
		counts[connector] = len(snap.Tasks(connector))
	}

	data, err := json.Marshal(storedSnapshot{Offset: snap.Offset(), TaskCounts: counts})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if _, err := n.kv.Put(ctx, n.snapshotKey, data); err != nil {
		return fmt.Errorf("failed to put snapshot: %w", err)
	}

	return nil
}
