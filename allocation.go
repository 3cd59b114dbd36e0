package rebalance

import (
	"slices"

	"github.com/apmflow/rebalance/types"
)

// newAllocation computes the target allocation of connectors and tasks for
// this round. It first resolves the dealing workforce through the
// scheduled-rebalance delay logic (missing workers may be kept in the
// workforce so their load is held for them), then deals connectors and
// tasks across the sorted workforce.
//
// Missing workers never appear in the returned map: their share of work is
// dealt to them and then dropped, so no present worker picks it up this
// round.
//
// Parameters:
//   - now: Millisecond timestamp read once for this round
//   - configuredConnectors: Ascending-sorted configured connector IDs
//   - configuredTasks: All configured tasks
//   - currentAllocation: Per-member view of what each worker runs now
//
// Returns:
//   - map[string]types.ConnectorsAndTasks: Target allocation per present worker
func (a *Assignor) newAllocation(
	now int64,
	configuredConnectors []string,
	configuredTasks []types.TaskID,
	currentAllocation map[string]types.ConnectorsAndTasks,
) map[string]types.ConnectorsAndTasks {
	workers := make([]string, 0, len(currentAllocation))
	for w := range currentAllocation {
		workers = append(workers, w)
	}

	missing := missingMembers(a.previousMembers, workers)

	if len(missing) > 0 {
		if a.scheduledRebalance > 0 && now >= a.scheduledRebalance {
			// The grace window expired. Stop holding work for workers that
			// never came back.
			a.logger.Debug("scheduled rebalance expired, evicting missing workers",
				"missing", missing, "scheduled_rebalance", a.scheduledRebalance, "now", now)
			a.resetDelay()
			a.previousMembers = memberSet(workers)
			missing = nil
		} else {
			if now < a.scheduledRebalance {
				a.delay = a.calculateDelay(now)
				a.logger.Debug("delayed rebalance in progress, task reassignment postponed",
					"delay_ms", a.delay)
			} else {
				// scheduledRebalance == 0: first observation of this missing set.
				a.delay = a.maxDelay
				a.logger.Debug("starting rebalance delay at the max", "delay_ms", a.delay)
			}
			a.scheduledRebalance = now + a.delay
			workers = append(workers, missing...)
		}
	} else {
		a.previousMembers = memberSet(workers)
		a.resetDelay()
	}

	a.metrics.RecordMissingWorkers(len(missing))
	slices.Sort(workers)

	taskAllocation := dealTasks(configuredConnectors, configuredTasks, currentAllocation, workers)
	connectorAllocation := dealConnectors(configuredConnectors, workers)

	allocation := make(map[string]types.ConnectorsAndTasks, len(workers))
	for _, worker := range workers {
		if slices.Contains(missing, worker) {
			continue
		}
		allocation[worker] = types.NewConnectorsAndTasks(
			connectorAllocation[worker], taskAllocation[worker])
	}

	return allocation
}

// dealConnectors distributes connectors round-robin over the sorted workforce.
func dealConnectors(configuredConnectors []string, workers []string) map[string][]string {
	allocation := make(map[string][]string, len(workers))
	for _, worker := range workers {
		allocation[worker] = []string{}
	}

	for i, connector := range configuredConnectors {
		worker := workers[i%len(workers)]
		allocation[worker] = append(allocation[worker], connector)
	}

	return allocation
}

// dealTasks distributes task IDs across the sorted workforce using the
// class-aware round-robin with a continuity pass.
//
// Phase 1 builds the deal list: for each class 1..4 (outer) and each
// connector in sorted order (inner), the class group is appended once per
// task it holds. The appearances share one group handle, so draining the
// group through one appearance empties the others.
//
// Phase 2 deals group appearances round-robin to workers.
//
// Phase 3 is the continuity pass: each worker keeps any task it currently
// owns that a group dealt to it still contains. First matching group wins;
// its appearance is consumed and the walk moves to the worker's next
// current task.
//
// Phase 4 fills the remaining appearances by popping the front of each
// group, skipping appearances whose group has already been drained.
func dealTasks(
	configuredConnectors []string,
	configuredTasks []types.TaskID,
	currentAllocation map[string]types.ConnectorsAndTasks,
	workers []string,
) map[string][]types.TaskID {
	allocation := make(map[string][]types.TaskID, len(workers))
	intermediate := make(map[string][]*taskGroup, len(workers))
	for _, worker := range workers {
		allocation[worker] = []types.TaskID{}
		intermediate[worker] = []*taskGroup{}
	}

	var allGroups []*taskGroup
	for class := classLog; class <= classControl; class++ {
		for _, connector := range configuredConnectors {
			group := taskGroupForClass(connector, configuredTasks, class)
			if group == nil {
				continue
			}
			for range group.size() {
				allGroups = append(allGroups, group)
			}
		}
	}

	for i, group := range allGroups {
		worker := workers[i%len(workers)]
		intermediate[worker] = append(intermediate[worker], group)
	}

	for _, worker := range sortedKeys(currentAllocation) {
		for _, task := range currentAllocation[worker].SortedTasks() {
			groups := intermediate[worker]
			for index, group := range groups {
				if group.contains(task) {
					group.remove(task)
					intermediate[worker] = slices.Delete(groups, index, index+1)
					allocation[worker] = append(allocation[worker], task)

					break
				}
			}
		}
	}

	for _, worker := range sortedKeys(intermediate) {
		for _, group := range intermediate[worker] {
			if task, ok := group.popFront(); ok {
				allocation[worker] = append(allocation[worker], task)
			}
		}
	}

	return allocation
}

// resetDelay deactivates the scheduled-rebalance grace window.
func (a *Assignor) resetDelay() {
	a.scheduledRebalance = 0
	if a.delay != 0 {
		a.logger.Debug("resetting rebalance delay", "previous_delay_ms", a.delay)
	}
	a.delay = 0
}

// calculateDelay returns the remaining grace-window time clamped to
// [0, maxDelay] milliseconds.
func (a *Assignor) calculateDelay(now int64) int64 {
	remaining := a.scheduledRebalance - now
	if remaining <= 0 {
		return 0
	}

	return min(remaining, a.maxDelay)
}

// missingMembers returns the previous members that are absent from the
// current round, in sorted order.
func missingMembers(previous map[string]struct{}, workers []string) []string {
	current := memberSet(workers)

	var missing []string
	for member := range previous {
		if _, ok := current[member]; !ok {
			missing = append(missing, member)
		}
	}
	slices.Sort(missing)

	return missing
}

// memberSet materializes a worker list as a set.
func memberSet(workers []string) map[string]struct{} {
	set := make(map[string]struct{}, len(workers))
	for _, w := range workers {
		set[w] = struct{}{}
	}

	return set
}

// sortedKeys returns the map's keys in ascending order. Dealing and
// continuity iterate workers through this so output is deterministic.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	return keys
}

// diffAssigned subtracts, per worker, the subtrahend's values from the
// base's values, preserving the base's value order.
func diffAssigned[T comparable](base map[string][]T, subtract map[string][]T) map[string][]T {
	incremental := make(map[string][]T, len(base))
	for worker, values := range base {
		remove := make(map[T]struct{}, len(subtract[worker]))
		for _, v := range subtract[worker] {
			remove[v] = struct{}{}
		}

		kept := make([]T, 0, len(values))
		for _, v := range values {
			if _, ok := remove[v]; !ok {
				kept = append(kept, v)
			}
		}
		incremental[worker] = kept
	}

	return incremental
}
