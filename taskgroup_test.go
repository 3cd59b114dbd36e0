package rebalance

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/apmflow/rebalance/types"
)

func configuredTasksFor(counts map[string]int) []types.TaskID {
	var tasks []types.TaskID
	for connector, count := range counts {
		for i := range count {
			tasks = append(tasks, types.NewTaskID(connector, i))
		}
	}

	return tasks
}

func TestTaskGroupForClass(t *testing.T) {
	t.Run("es connector splits into four equal classes", func(t *testing.T) {
		tasks := configuredTasksFor(map[string]int{"es-app": 8})

		for class, want := range map[int][]int{
			1: {0, 1},
			2: {2, 3},
			3: {4, 5},
			4: {6, 7},
		} {
			group := taskGroupForClass("es-app", tasks, class)
			require.NotNil(t, group, "class %d", class)
			require.Equal(t, want, group.tasks, "class %d", class)
		}
	})

	t.Run("s3 connector splits into two classes only", func(t *testing.T) {
		tasks := configuredTasksFor(map[string]int{"s3-archive": 4})

		group := taskGroupForClass("s3-archive", tasks, 1)
		require.NotNil(t, group)
		require.Equal(t, []int{0, 1}, group.tasks)

		group = taskGroupForClass("s3-archive", tasks, 2)
		require.NotNil(t, group)
		require.Equal(t, []int{2, 3}, group.tasks)

		require.Nil(t, taskGroupForClass("s3-archive", tasks, 3))
		require.Nil(t, taskGroupForClass("s3-archive", tasks, 4))
	})

	t.Run("other connector has one class holding every task", func(t *testing.T) {
		tasks := configuredTasksFor(map[string]int{"jdbc-orders": 5})

		group := taskGroupForClass("jdbc-orders", tasks, 1)
		require.NotNil(t, group)
		require.Equal(t, []int{0, 1, 2, 3, 4}, group.tasks)

		for class := 2; class <= 4; class++ {
			require.Nil(t, taskGroupForClass("jdbc-orders", tasks, class))
		}
	})

	t.Run("remainder tasks are dropped by integer division", func(t *testing.T) {
		tasks := configuredTasksFor(map[string]int{"es-app": 10})

		// 10 / 4 = 2 per class; tasks 8 and 9 land in no class.
		seen := map[int]bool{}
		for class := 1; class <= 4; class++ {
			group := taskGroupForClass("es-app", tasks, class)
			require.NotNil(t, group)
			require.Len(t, group.tasks, 2)
			for _, idx := range group.tasks {
				seen[idx] = true
			}
		}
		require.False(t, seen[8])
		require.False(t, seen[9])
	})

	t.Run("connector with no tasks yields no groups", func(t *testing.T) {
		tasks := configuredTasksFor(map[string]int{"es-other": 8})

		for class := 1; class <= 4; class++ {
			require.Nil(t, taskGroupForClass("es-empty", tasks, class))
		}
	})

	t.Run("s3 connector with a single task yields no groups", func(t *testing.T) {
		tasks := configuredTasksFor(map[string]int{"s3-tiny": 1})

		require.Nil(t, taskGroupForClass("s3-tiny", tasks, 1))
		require.Nil(t, taskGroupForClass("s3-tiny", tasks, 2))
	})

	t.Run("only tasks of the requested connector are considered", func(t *testing.T) {
		tasks := configuredTasksFor(map[string]int{"es-a": 4, "es-b": 8})

		group := taskGroupForClass("es-a", tasks, 1)
		require.NotNil(t, group)
		require.Equal(t, []int{0}, group.tasks)
	})
}

func TestTaskGroupOperations(t *testing.T) {
	t.Run("contains and remove match connector and index", func(t *testing.T) {
		group := &taskGroup{connector: "c", tasks: []int{0, 1, 2}}

		require.True(t, group.contains(types.NewTaskID("c", 1)))
		require.False(t, group.contains(types.NewTaskID("other", 1)))
		require.False(t, group.contains(types.NewTaskID("c", 9)))

		group.remove(types.NewTaskID("other", 1))
		require.Equal(t, 3, group.size())

		group.remove(types.NewTaskID("c", 1))
		require.Equal(t, []int{0, 2}, group.tasks)
	})

	t.Run("popFront drains in order", func(t *testing.T) {
		group := &taskGroup{connector: "c", tasks: []int{3, 5}}

		task, ok := group.popFront()
		require.True(t, ok)
		require.Equal(t, types.NewTaskID("c", 3), task)

		task, ok = group.popFront()
		require.True(t, ok)
		require.Equal(t, types.NewTaskID("c", 5), task)

		_, ok = group.popFront()
		require.False(t, ok)
	})

	t.Run("mutation through one handle is visible through another", func(t *testing.T) {
		group := &taskGroup{connector: "c", tasks: []int{0, 1}}
		appearances := []*taskGroup{group, group}

		appearances[0].remove(types.NewTaskID("c", 0))
		require.Equal(t, 1, appearances[1].size())

		_, ok := appearances[1].popFront()
		require.True(t, ok)
		require.Equal(t, 0, appearances[0].size())
	})
}
