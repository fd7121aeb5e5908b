package sched

import "fmt"

func isAllowedTransition(from, to TaskState) bool {
	switch from {
	case TaskPending:
		return to == TaskBlocked || to == TaskReady
	case TaskBlocked:
		return to == TaskReady
	case TaskReady:
		return to == TaskRunning
	case TaskRunning:
		return to == TaskCompleted || to == TaskFailed
	default:
		return false
	}
}

// transition performs an atomic validated transition.
//
// The caller supplies the expected prior state so that races are observable:
// if the task is not in `from`, or the edge is not part of the lifecycle, the
// transition is refused and no state changes.
func (t *TaskContext) transition(from, to TaskState) error {
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition for task %d: %s -> %s", t.ID, from, to)
	}
	if !t.state.CompareAndSwap(int32(from), int32(to)) {
		return fmt.Errorf("invalid transition for task %d: expected %s, got %s (target %s)",
			t.ID, from, t.State(), to)
	}
	return nil
}
