package coordinator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/apmflow/rebalance/snapshot"
	natstest "github.com/apmflow/rebalance/testing"
	"github.com/apmflow/rebalance/types"
)

func newTestCoordinator(t *testing.T, src types.SnapshotSource) *NATS {
	t.Helper()

	_, nc := natstest.StartEmbeddedNATS(t)
	kv := natstest.CreateJetStreamKV(t, nc, "rebalance-test")

	coord, err := NewNATS(&Config{
		KV:       kv,
		Source:   src,
		MemberID: "worker-test",
	})
	require.NoError(t, err)

	return coord
}

func TestNewNATS_Validation(t *testing.T) {
	t.Run("requires KV bucket", func(t *testing.T) {
		_, err := NewNATS(&Config{Source: snapshot.NewStatic(1, nil), MemberID: "w"})
		require.Error(t, err)
	})

	t.Run("requires snapshot source", func(t *testing.T) {
		_, nc := natstest.StartEmbeddedNATS(t)
		kv := natstest.CreateJetStreamKV(t, nc, "rebalance-test")

		_, err := NewNATS(&Config{KV: kv, MemberID: "w"})
		require.ErrorIs(t, err, types.ErrSnapshotSourceRequired)
	})

	t.Run("requires member ID", func(t *testing.T) {
		_, nc := natstest.StartEmbeddedNATS(t)
		kv := natstest.CreateJetStreamKV(t, nc, "rebalance-test")

		_, err := NewNATS(&Config{KV: kv, Source: snapshot.NewStatic(1, nil)})
		require.Error(t, err)
	})
}

func TestNATS_LoadFallsBackToSource(t *testing.T) {
	src := snapshot.NewStatic(3, map[string]int{"es-app": 8})
	coord := newTestCoordinator(t, src)

	require.NoError(t, coord.Load(t.Context()))

	snap := coord.ConfigSnapshot()
	require.Equal(t, int64(3), snap.Offset())
	require.Equal(t, []string{"es-app"}, snap.Connectors())
	require.Len(t, snap.Tasks("es-app"), 8)
}

func TestNATS_SnapshotPersistsAcrossCoordinators(t *testing.T) {
	_, nc := natstest.StartEmbeddedNATS(t)
	kv := natstest.CreateJetStreamKV(t, nc, "rebalance-test")

	src := snapshot.NewStatic(3, map[string]int{"c": 2})
	first, err := NewNATS(&Config{KV: kv, Source: src, MemberID: "w1"})
	require.NoError(t, err)
	require.NoError(t, first.Load(t.Context()))

	// Install a newer snapshot; a second coordinator on the same bucket
	// must see the persisted copy, not re-read its own source.
	first.SetConfigSnapshot(snapshot.NewViewWithCounts(9, map[string]int{"c": 4}))

	second, err := NewNATS(&Config{
		KV:       kv,
		Source:   snapshot.NewStatic(1, map[string]int{"stale": 1}),
		MemberID: "w2",
	})
	require.NoError(t, err)
	require.NoError(t, second.Load(t.Context()))

	snap := second.ConfigSnapshot()
	require.Equal(t, int64(9), snap.Offset())
	require.Equal(t, []string{"c"}, snap.Connectors())
	require.Len(t, snap.Tasks("c"), 4)
}

func TestNATS_FreshConfigSnapshot(t *testing.T) {
	src := snapshot.NewStatic(3, map[string]int{"c": 2})
	coord := newTestCoordinator(t, src)
	require.NoError(t, coord.Load(t.Context()))

	src.Update(5, map[string]int{"c": 2, "d": 1})

	// The cache still serves the old view; a fresh read sees the update.
	require.Equal(t, int64(3), coord.ConfigSnapshot().Offset())

	fresh, err := coord.FreshConfigSnapshot(t.Context())
	require.NoError(t, err)
	require.Equal(t, int64(5), fresh.Offset())
	require.Equal(t, int64(3), coord.ConfigSnapshot().Offset())

	coord.SetConfigSnapshot(fresh)
	require.Equal(t, int64(5), coord.ConfigSnapshot().Offset())
}

func TestNATS_GenerationBookkeeping(t *testing.T) {
	coord := newTestCoordinator(t, snapshot.NewStatic(1, nil))

	require.Equal(t, int32(0), coord.GenerationID())
	require.Equal(t, int32(-1), coord.LastCompletedGenerationID())
	require.Equal(t, "worker-test", coord.MemberID())

	coord.BeginGeneration(4)
	require.Equal(t, int32(4), coord.GenerationID())
	require.Equal(t, int32(-1), coord.LastCompletedGenerationID())

	coord.CompleteGeneration(4)
	require.Equal(t, int32(4), coord.LastCompletedGenerationID())
}

func TestNATS_LeaderState(t *testing.T) {
	coord := newTestCoordinator(t, snapshot.NewStatic(1, map[string]int{"c": 2}))
	require.NoError(t, coord.Load(t.Context()))

	_, err := coord.LeaderState()
	require.ErrorIs(t, err, types.ErrLeaderStateUnavailable)

	state := &types.LeaderState{
		Members: map[string]*types.WorkerState{
			"w1": {URL: "http://w1", Offset: 1},
		},
		ConnectorAllocation: map[string][]string{"w1": {"c"}},
		TaskAllocation: map[string][]types.TaskID{
			"w1": {types.NewTaskID("c", 0), types.NewTaskID("c", 1)},
		},
	}
	coord.SetLeaderState(state)

	got, err := coord.LeaderState()
	require.NoError(t, err)
	require.Equal(t, state, got)

	member, ok := coord.MemberState("w1")
	require.True(t, ok)
	require.Equal(t, "http://w1", member.URL)

	_, ok = coord.MemberState("unknown")
	require.False(t, ok)

	// The published view is persisted for external status readers.
	entry, err := coord.kv.Get(t.Context(), coord.leaderStateKey)
	require.NoError(t, err)
	require.Contains(t, string(entry.Value()), "connectorAllocation")
}
