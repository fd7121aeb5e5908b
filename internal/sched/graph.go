package sched

import (
	"container/heap"
	"sort"
	"sync"
)

// Graph is the authoritative task registry.
//
// It owns the dependency and dependent edge lists and is the only component
// allowed to mutate them. All structural mutation happens under the write
// lock; task state words and unsatisfied counters are atomics so readers can
// observe them without the lock.
//
// Safety:
//   - Add and AddDependency reject contract violations with typed errors.
//   - Complete panics on an unknown id. A completion for a task the graph
//     never registered means the caller's bookkeeping is corrupt, and there
//     is no sane way to continue.
type Graph struct {
	mu    sync.RWMutex
	tasks map[TaskID]*TaskContext
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{tasks: make(map[TaskID]*TaskContext)}
}

// Add registers a task. The id must be non-zero and unused.
func (g *Graph) Add(t *TaskContext) error {
	if t == nil || t.ID == 0 {
		return graphErrf(ErrUnknownTask, "nil task or zero id")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.tasks[t.ID]; ok {
		return graphErrf(ErrDuplicateID, "task %d", t.ID)
	}
	g.tasks[t.ID] = t
	return nil
}

// AddDependency records that child cannot run until parent is terminal.
//
// The child's unsatisfied counter is bumped and the child moves to BLOCKED
// unless the parent already finished. Edges may only be added before the
// child has been dispatched; adding an edge to a READY or later child is a
// contract violation and is refused.
func (g *Graph) AddDependency(child, parent TaskID) error {
	if child == parent {
		return graphErrf(ErrSelfDependency, "task %d", child)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.tasks[child]
	if !ok {
		return graphErrf(ErrUnknownTask, "child %d", child)
	}
	p, ok := g.tasks[parent]
	if !ok {
		return graphErrf(ErrUnknownTask, "parent %d", parent)
	}
	switch c.State() {
	case TaskPending, TaskBlocked:
	default:
		return graphErrf(ErrTaskDispatched, "child %d is %s", child, c.State())
	}
	if IsTerminal(p.State()) {
		// Nothing to wait for; the edge is recorded for inspection only.
		c.deps = append(c.deps, parent)
		p.dependents = append(p.dependents, child)
		return nil
	}
	c.deps = append(c.deps, parent)
	p.dependents = append(p.dependents, child)
	c.unsatisfied.Add(1)
	if c.State() == TaskPending {
		if err := c.transition(TaskPending, TaskBlocked); err != nil {
			return err
		}
	}
	return nil
}

// MarkReadyIfUnblocked promotes the task to READY when every dependency is
// satisfied. It reports whether the promotion happened; callers enqueue the
// task exactly when it returns true.
func (g *Graph) MarkReadyIfUnblocked(id TaskID) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.tasks[id]
	if !ok {
		return false, graphErrf(ErrUnknownTask, "task %d", id)
	}
	if t.Unsatisfied() != 0 {
		return false, nil
	}
	switch t.State() {
	case TaskPending:
		return true, t.transition(TaskPending, TaskReady)
	case TaskBlocked:
		return true, t.transition(TaskBlocked, TaskReady)
	default:
		return false, nil
	}
}

// Complete moves a RUNNING task to its terminal state and releases its
// dependents.
//
// For each dependent the unsatisfied counter is decremented once; the
// goroutine whose decrement drives the counter to zero transitions the
// dependent BLOCKED -> READY and collects it. The returned slice is the set
// of tasks the caller must hand to the scheduler. Dependents are released on
// failure too, so a diamond does not deadlock when one arm fails.
func (g *Graph) Complete(id TaskID, oc Outcome) []*TaskContext {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.tasks[id]
	if !ok {
		panic(graphErrf(ErrUnknownTask, "complete of unregistered task %d", id))
	}
	target := TaskCompleted
	if oc == OutcomeFailed {
		target = TaskFailed
	}
	if err := t.transition(TaskRunning, target); err != nil {
		panic(err)
	}
	var released []*TaskContext
	for _, did := range t.dependents {
		d, ok := g.tasks[did]
		if !ok {
			continue
		}
		if d.unsatisfied.Add(^uint32(0)) == 0 {
			if d.State() == TaskBlocked {
				if err := d.transition(TaskBlocked, TaskReady); err != nil {
					panic(err)
				}
				released = append(released, d)
			}
		}
	}
	return released
}

// Get returns the task for id, or nil when unknown.
func (g *Graph) Get(id TaskID) *TaskContext {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tasks[id]
}

// Len returns the number of registered tasks.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.tasks)
}

// Snapshot returns an inspection view of every task, sorted by id.
func (g *Graph) Snapshot() []TaskInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]TaskInfo, 0, len(g.tasks))
	for _, t := range g.tasks {
		out = append(out, TaskInfo{
			ID:         t.ID,
			Priority:   t.Priority,
			State:      t.State(),
			CPUTime:    t.CPUTime(),
			Deps:       len(t.deps),
			Dependents: len(t.dependents),
			CreatedAt:  t.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ValidateAcyclic checks the dependency graph for cycles.
//
// Determinism: tasks are peeled in ascending id order via a min-heap, so the
// validation order, and the cycle witness when one exists, are stable for a
// given graph shape.
func (g *Graph) ValidateAcyclic() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	indeg := make(map[TaskID]int, len(g.tasks))
	for id, t := range g.tasks {
		indeg[id] = len(t.deps)
	}

	h := &idMinHeap{}
	for id, d := range indeg {
		if d == 0 {
			heap.Push(h, id)
		}
	}

	seen := 0
	for h.Len() > 0 {
		id := heap.Pop(h).(TaskID)
		seen++
		for _, did := range g.tasks[id].dependents {
			indeg[did]--
			if indeg[did] == 0 {
				heap.Push(h, did)
			}
		}
	}
	if seen == len(g.tasks) {
		return nil
	}
	return cycleError(g.findCycle(indeg))
}

// findCycle returns one concrete cycle among the tasks Kahn's algorithm
// could not peel. indeg holds the residual in-degrees; every task with a
// positive residual sits on or downstream of a cycle.
func (g *Graph) findCycle(indeg map[TaskID]int) []TaskID {
	remaining := make([]TaskID, 0)
	for id, d := range indeg {
		if d > 0 {
			remaining = append(remaining, id)
		}
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i] < remaining[j] })

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[TaskID]int, len(remaining))
	parent := make(map[TaskID]TaskID, len(remaining))

	var cycle []TaskID
	var dfs func(id TaskID) bool
	dfs = func(id TaskID) bool {
		color[id] = gray
		deps := append([]TaskID(nil), g.tasks[id].deps...)
		sort.Slice(deps, func(i, j int) bool { return deps[i] < deps[j] })
		for _, pid := range deps {
			if indeg[pid] <= 0 {
				continue
			}
			switch color[pid] {
			case white:
				parent[pid] = id
				if dfs(pid) {
					return true
				}
			case gray:
				cycle = []TaskID{pid}
				for cur := id; cur != pid; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, pid)
				return true
			}
		}
		color[id] = black
		return false
	}
	for _, id := range remaining {
		if color[id] == white && dfs(id) {
			break
		}
	}
	// Reverse so the path reads in dependency order.
	for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
		cycle[i], cycle[j] = cycle[j], cycle[i]
	}
	return cycle
}

// idMinHeap is a min-heap of task ids used for deterministic peel order.
type idMinHeap []TaskID

func (h idMinHeap) Len() int            { return len(h) }
func (h idMinHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h idMinHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idMinHeap) Push(x interface{}) { *h = append(*h, x.(TaskID)) }
func (h *idMinHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
