package snapshot

import (
	"context"
	"slices"
	"sync"

	"github.com/apmflow/rebalance/types"
)

// View is an immutable config snapshot at a single offset.
type View struct {
	offset int64
	tasks  map[string][]types.TaskID
}

var _ types.ConfigSnapshot = (*View)(nil)

// NewView builds an immutable snapshot from explicit task lists.
//
// Parameters:
//   - offset: Config offset the view represents
//   - tasks: Per-connector task lists (copied; connectors with nil lists
//     are kept as task-less connectors)
//
// Returns:
//   - *View: The immutable snapshot
func NewView(offset int64, tasks map[string][]types.TaskID) *View {
	copied := make(map[string][]types.TaskID, len(tasks))
	for connector, list := range tasks {
		copied[connector] = slices.Clone(list)
	}

	return &View{offset: offset, tasks: copied}
}

// NewViewWithCounts builds an immutable snapshot where each connector has
// the given number of tasks, indexed contiguously from 0.
//
// Parameters:
//   - offset: Config offset the view represents
//   - taskCounts: Per-connector task counts
//
// Returns:
//   - *View: The immutable snapshot
//
// Example:
//
//	view := snapshot.NewViewWithCounts(7, map[string]int{
//	    "es-profile": 8,
//	    "s3-archive": 4,
//	})
func NewViewWithCounts(offset int64, taskCounts map[string]int) *View {
	tasks := make(map[string][]types.TaskID, len(taskCounts))
	for connector, count := range taskCounts {
		list := make([]types.TaskID, 0, count)
		for i := range count {
			list = append(list, types.NewTaskID(connector, i))
		}
		tasks[connector] = list
	}

	return &View{offset: offset, tasks: tasks}
}

// Offset returns the config offset of this view.
func (v *View) Offset() int64 {
	return v.offset
}

// Connectors returns the configured connector IDs in ascending order.
func (v *View) Connectors() []string {
	connectors := make([]string, 0, len(v.tasks))
	for connector := range v.tasks {
		connectors = append(connectors, connector)
	}
	slices.Sort(connectors)

	return connectors
}

// Tasks returns a copy of the configured tasks for the given connector.
func (v *View) Tasks(connector string) []types.TaskID {
	return slices.Clone(v.tasks[connector])
}

// TaskCounts returns the per-connector task counts.
func (v *View) TaskCounts() map[string]int {
	counts := make(map[string]int, len(v.tasks))
	for connector, list := range v.tasks {
		counts[connector] = len(list)
	}

	return counts
}

// Static implements a snapshot source over a mutable in-memory
// configuration.
//
// Useful for tests and for deployments where the connector inventory is
// known at startup. Update simulates config changes by bumping the offset.
type Static struct {
	mu   sync.RWMutex
	view *View
}

var _ types.SnapshotSource = (*Static)(nil)

// NewStatic creates a static snapshot source.
//
// Parameters:
//   - offset: Initial config offset
//   - taskCounts: Per-connector task counts, tasks indexed from 0
//
// Returns:
//   - *Static: Initialized static source
//
// Example:
//
//	src := snapshot.NewStatic(1, map[string]int{"es-app": 8})
//	coord, err := coordinator.NewNATS(&coordinator.Config{
//	    KV:       kv,
//	    Source:   src,
//	    MemberID: "worker-1",
//	})
func NewStatic(offset int64, taskCounts map[string]int) *Static {
	return &Static{view: NewViewWithCounts(offset, taskCounts)}
}

// Snapshot returns the current configuration view.
//
// Returns:
//   - types.ConfigSnapshot: The current immutable view
//   - error: Always nil (never fails)
func (s *Static) Snapshot(_ context.Context) (types.ConfigSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.view, nil
}

// Update replaces the configuration.
//
// This allows the static source to simulate dynamic config changes, which
// is useful for testing leader-freshness scenarios.
//
// Parameters:
//   - offset: New config offset (should be higher than the current one)
//   - taskCounts: New per-connector task counts
func (s *Static) Update(offset int64, taskCounts map[string]int) {
	view := NewViewWithCounts(offset, taskCounts)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = view
}
