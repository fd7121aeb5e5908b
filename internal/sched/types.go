package sched

import (
	"sync/atomic"
	"time"
)

// TaskID uniquely identifies a task within a kernel instance.
//
// IDs are assigned monotonically by the kernel facade; zero is never a valid
// id.
type TaskID uint64

// Priority selects the scheduler band a task is queued in.
//
// Lower band index means higher priority.
type Priority uint8

const (
	PriorityRealtime Priority = iota // band 0
	PriorityHigh                     // band 1
	PriorityNormal                   // band 2
	PriorityLow                      // band 3
)

// NumBands is the number of scheduler priority bands.
const NumBands = 4

// Band returns the queue index for the priority. Unknown values map to the
// lowest band.
func (p Priority) Band() int {
	if p > PriorityLow {
		return int(PriorityLow)
	}
	return int(p)
}

func (p Priority) String() string {
	switch p {
	case PriorityRealtime:
		return "REALTIME"
	case PriorityHigh:
		return "HIGH"
	case PriorityNormal:
		return "NORMAL"
	case PriorityLow:
		return "LOW"
	default:
		return "UNKNOWN"
	}
}

// Outcome is the tagged result of running a task's work.
type Outcome uint8

const (
	OutcomeCompleted Outcome = iota
	OutcomeFailed
)

func (o Outcome) String() string {
	if o == OutcomeFailed {
		return "FAILED"
	}
	return "COMPLETED"
}

// Work is a task's unit of execution. A non-nil error marks the task FAILED;
// panics are caught at the worker boundary and treated the same way.
type Work func() error

// TaskContext is the shared task record.
//
// It is held concurrently by the graph (authoritative registry), by at most
// one scheduler queue while READY, and by the worker that runs it. The
// dependency and dependent lists are mutated only under the graph's write
// lock. A task's dependency list grows only before it is submitted; its
// dependent list also grows after submission, whenever a later task names it
// as a parent. State and the unsatisfied counter are atomics so the final
// releasing decrement is unambiguous under concurrent completions.
type TaskContext struct {
	ID        TaskID
	Priority  Priority
	Work      Work
	CreatedAt time.Time

	state       atomic.Int32
	unsatisfied atomic.Uint32
	cpuTimeNS   atomic.Int64

	// Edges, guarded by the owning Graph's lock.
	deps       []TaskID
	dependents []TaskID
}

// NewTask creates a PENDING task.
func NewTask(id TaskID, p Priority, work Work) *TaskContext {
	t := &TaskContext{
		ID:        id,
		Priority:  p,
		Work:      work,
		CreatedAt: time.Now(),
	}
	t.state.Store(int32(TaskPending))
	return t
}

// State returns the task's current state.
func (t *TaskContext) State() TaskState {
	return TaskState(t.state.Load())
}

// Unsatisfied returns the number of dependencies not yet terminal.
func (t *TaskContext) Unsatisfied() uint32 {
	return t.unsatisfied.Load()
}

// CPUTime returns the cumulative time spent executing the task's work.
func (t *TaskContext) CPUTime() time.Duration {
	return time.Duration(t.cpuTimeNS.Load())
}

func (t *TaskContext) addCPUTime(d time.Duration) {
	t.cpuTimeNS.Add(int64(d))
}

// TaskInfo is an inspection snapshot of one task, as reported by
// Graph.Snapshot.
type TaskInfo struct {
	ID         TaskID
	Priority   Priority
	State      TaskState
	CPUTime    time.Duration
	Deps       int
	Dependents int
	CreatedAt  time.Time
}
