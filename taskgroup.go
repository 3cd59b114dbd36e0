package rebalance

import (
	"slices"
	"strings"

	"github.com/apmflow/rebalance/types"
)

// Task class numbers. Each class covers one slice of a connector's tasks:
// class 1 handles log data, class 2 metrics, class 3 traces, class 4 control.
const (
	classLog     = 1
	classMetric  = 2
	classTrace   = 3
	classControl = 4
)

// taskGroup is an ordered run of task indices for a single connector,
// belonging to one task class. Groups are mutable during dealing: the same
// group handle appears once per task in the deal list, so removing a task
// through one appearance is visible through all of them.
type taskGroup struct {
	connector string
	tasks     []int
}

// contains reports whether the group still holds the given task.
func (g *taskGroup) contains(task types.TaskID) bool {
	return task.Connector == g.connector && slices.Contains(g.tasks, task.Task)
}

// remove drops the given task from the group if present.
func (g *taskGroup) remove(task types.TaskID) {
	if task.Connector != g.connector {
		return
	}
	if i := slices.Index(g.tasks, task.Task); i >= 0 {
		g.tasks = slices.Delete(g.tasks, i, i+1)
	}
}

// popFront removes and returns the group's first remaining task.
//
// Returns:
//   - types.TaskID: The popped task (zero value when the group is empty)
//   - bool: false when the group is empty
func (g *taskGroup) popFront() (types.TaskID, bool) {
	if len(g.tasks) == 0 {
		return types.TaskID{}, false
	}
	task := types.NewTaskID(g.connector, g.tasks[0])
	g.tasks = g.tasks[1:]

	return task, true
}

// size returns the number of tasks remaining in the group.
func (g *taskGroup) size() int {
	return len(g.tasks)
}

// taskGroupForClass splits one connector's configured tasks into the group
// for the given class number, or returns nil when the connector has no
// group for that class.
//
// The connector-ID prefix decides the split:
//   - "s3" connectors sink to object storage and only carry log and metric
//     data: classes {1,2}.
//   - "es" connectors index all four data kinds: classes {1,2,3,4}.
//   - any other connector has a single class holding all of its tasks.
//
// The group length is len(tasks) / numClasses with the remainder dropped;
// group N covers the contiguous index run starting at groupLength*(N-1).
// Callers must not round up or redistribute the remainder.
//
// Parameters:
//   - connector: Connector ID whose tasks are split
//   - configuredTasks: All configured tasks across connectors
//   - class: Class number in 1..4
//
// Returns:
//   - *taskGroup: The class group, or nil when the class does not apply or
//     the connector has too few tasks to fill one
func taskGroupForClass(connector string, configuredTasks []types.TaskID, class int) *taskGroup {
	indices := make([]int, 0, len(configuredTasks))
	for _, task := range configuredTasks {
		if task.Connector == connector {
			indices = append(indices, task.Task)
		}
	}
	slices.Sort(indices)
	length := len(indices)

	var numClasses int
	switch {
	case strings.HasPrefix(connector, "s3"):
		if class < classLog || class > classMetric {
			return nil
		}
		numClasses = 2
	case strings.HasPrefix(connector, "es"):
		if class < classLog || class > classControl {
			return nil
		}
		numClasses = 4
	default:
		if class != classLog {
			return nil
		}
		numClasses = 1
	}

	groupLength := length / numClasses
	if groupLength == 0 {
		return nil
	}
	skip := groupLength * (class - 1)

	tasks := make([]int, groupLength)
	copy(tasks, indices[skip:skip+groupLength])

	return &taskGroup{connector: connector, tasks: tasks}
}
