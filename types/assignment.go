package types

import (
	"fmt"
	"slices"
	"sort"
	"time"
)

// AssignmentError is the error code carried inside an assignment envelope.
type AssignmentError int16

const (
	// NoError indicates a successful assignment.
	NoError AssignmentError = 0

	// ConfigMismatch indicates the leader's config snapshot was behind the
	// group and the round must be retried after the leader catches up.
	ConfigMismatch AssignmentError = 1
)

// String returns the string representation of the assignment error code.
func (e AssignmentError) String() string {
	switch e {
	case NoError:
		return "NoError"
	case ConfigMismatch:
		return "ConfigMismatch"
	default:
		return "Unknown"
	}
}

// Assignment is the per-member output of one rebalance round.
//
// Connectors and Tasks are incremental: they hold only the units the member
// should newly start. RevokedConnectors and RevokedTasks hold the units the
// member must stop before the next round. A unit never appears on both
// sides in the same round, for any member.
type Assignment struct {
	// Version is the connect subprotocol version (V3 or V4).
	Version int16 `json:"version"`

	// Error is NoError or ConfigMismatch.
	Error AssignmentError `json:"error"`

	// LeaderID is the member ID of the group leader that computed this round.
	LeaderID string `json:"leaderId"`

	// LeaderURL is the leader's externally reachable endpoint.
	LeaderURL string `json:"leaderUrl"`

	// ConfigOffset is the config snapshot offset the assignment was computed
	// against. Members behind this offset must not apply the assignment
	// until they have caught up.
	ConfigOffset int64 `json:"configOffset"`

	// Connectors lists connectors this member should start.
	Connectors []string `json:"connectors"`

	// Tasks lists tasks this member should start.
	Tasks []TaskID `json:"tasks"`

	// RevokedConnectors lists connectors this member must stop.
	RevokedConnectors []string `json:"revokedConnectors"`

	// RevokedTasks lists tasks this member must stop.
	RevokedTasks []TaskID `json:"revokedTasks"`

	// Delay is the scheduled-rebalance delay the group should observe
	// before the next round redistributes work held for missing members.
	Delay time.Duration `json:"delay"`
}

// String renders a compact single-line summary suitable for debug logs.
func (a *Assignment) String() string {
	return fmt.Sprintf(
		"Assignment{version=%d, error=%s, leader=%s, offset=%d, connectors=%v, tasks=%v, revokedConnectors=%v, revokedTasks=%v, delay=%s}",
		a.Version, a.Error, a.LeaderID, a.ConfigOffset,
		a.Connectors, a.Tasks, a.RevokedConnectors, a.RevokedTasks, a.Delay,
	)
}

// WorkerState is the metadata one member submits to the leader during a
// rebalance round: its endpoint, the highest config offset it has observed,
// and the assignment it last received.
type WorkerState struct {
	// URL is the member's externally reachable endpoint. The leader only
	// propagates it; it is never dereferenced here.
	URL string `json:"url"`

	// Offset is the highest config-snapshot offset this member has observed.
	Offset int64 `json:"offset"`

	// Assignment is the assignment last delivered to this member. Its
	// Connectors and Tasks fields describe everything the member currently
	// runs, not an increment.
	Assignment Assignment `json:"assignment"`
}

// ConnectorsAndTasks is an unordered pair of connector and task sets.
//
// The zero value is an empty pair and is safe to read; use
// NewConnectorsAndTasks to build a populated one.
type ConnectorsAndTasks struct {
	Connectors map[string]struct{}
	Tasks      map[TaskID]struct{}
}

// NewConnectorsAndTasks builds a pair from connector and task slices.
//
// Parameters:
//   - connectors: Connector IDs (duplicates collapse)
//   - tasks: Task IDs (duplicates collapse)
//
// Returns:
//   - ConnectorsAndTasks: The populated pair
func NewConnectorsAndTasks(connectors []string, tasks []TaskID) ConnectorsAndTasks {
	ct := ConnectorsAndTasks{
		Connectors: make(map[string]struct{}, len(connectors)),
		Tasks:      make(map[TaskID]struct{}, len(tasks)),
	}
	for _, c := range connectors {
		ct.Connectors[c] = struct{}{}
	}
	for _, t := range tasks {
		ct.Tasks[t] = struct{}{}
	}

	return ct
}

// EmptyConnectorsAndTasks returns the distinguished empty pair.
func EmptyConnectorsAndTasks() ConnectorsAndTasks {
	return NewConnectorsAndTasks(nil, nil)
}

// IsEmpty reports whether the pair holds no connectors and no tasks.
func (ct ConnectorsAndTasks) IsEmpty() bool {
	return len(ct.Connectors) == 0 && len(ct.Tasks) == 0
}

// Diff returns a new pair holding ct's connectors and tasks minus every
// element present in any of the subtracted pairs. ct is not modified.
//
// Parameters:
//   - subtract: Pairs whose elements are removed from the result
//
// Returns:
//   - ConnectorsAndTasks: The set difference
func (ct ConnectorsAndTasks) Diff(subtract ...ConnectorsAndTasks) ConnectorsAndTasks {
	result := ConnectorsAndTasks{
		Connectors: make(map[string]struct{}, len(ct.Connectors)),
		Tasks:      make(map[TaskID]struct{}, len(ct.Tasks)),
	}
	for c := range ct.Connectors {
		result.Connectors[c] = struct{}{}
	}
	for t := range ct.Tasks {
		result.Tasks[t] = struct{}{}
	}

	for _, sub := range subtract {
		for c := range sub.Connectors {
			delete(result.Connectors, c)
		}
		for t := range sub.Tasks {
			delete(result.Tasks, t)
		}
	}

	return result
}

// SortedConnectors materializes the connector set as an ascending-sorted slice.
func (ct ConnectorsAndTasks) SortedConnectors() []string {
	connectors := make([]string, 0, len(ct.Connectors))
	for c := range ct.Connectors {
		connectors = append(connectors, c)
	}
	slices.Sort(connectors)

	return connectors
}

// SortedTasks materializes the task set as a sorted slice, ordered by
// connector then task index.
func (ct ConnectorsAndTasks) SortedTasks() []TaskID {
	tasks := make([]TaskID, 0, len(ct.Tasks))
	for t := range ct.Tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Compare(tasks[j]) < 0 })

	return tasks
}

// String renders the pair with sorted members for stable debug output.
func (ct ConnectorsAndTasks) String() string {
	return fmt.Sprintf("{connectors=%v, tasks=%v}", ct.SortedConnectors(), ct.SortedTasks())
}

// LeaderState is the leader's post-assignment view of the group, published
// to the coordinator for external status endpoints.
type LeaderState struct {
	// Members maps member ID to the metadata it reported this round.
	Members map[string]*WorkerState

	// ConnectorAllocation maps member ID to the connectors it reported
	// running, filtered to the configured set.
	ConnectorAllocation map[string][]string

	// TaskAllocation maps member ID to the tasks it reported running,
	// filtered to the configured set.
	TaskAllocation map[string][]TaskID
}
