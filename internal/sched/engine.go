package sched

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// idleBackoff is how long a worker sleeps after finding every band empty.
const idleBackoff = 50 * time.Microsecond

// Observer receives execution lifecycle events from the engine.
//
// Observers run on worker goroutines; implementations must be cheap and
// concurrency-safe. A panicking observer is contained and never affects
// task outcomes.
type Observer interface {
	TaskStarted(t *TaskContext)
	TaskFinished(t *TaskContext, oc Outcome, d time.Duration)
}

// SafeObserve invokes fn and swallows any panic it raises. Observer faults
// must not take down a worker.
func SafeObserve(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

// EngineStats is a point-in-time counter snapshot.
type EngineStats struct {
	Workers   int
	Started   uint64
	Completed uint64
	Failed    uint64
	Queued    int
}

// Engine drains the scheduler with a fixed pool of workers.
//
// Each worker loops: pop the highest-priority READY task, run its work
// inside a failure boundary, report the terminal outcome to the graph, and
// submit every dependent the completion released. Workers poll; an empty
// scheduler costs one short sleep per probe.
type Engine struct {
	graph *Graph
	sched *Scheduler
	obs   Observer

	cancel context.CancelFunc
	group  *errgroup.Group

	workers   int
	started   atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
}

// NewEngine starts workers goroutines draining sched. The observer may be
// nil. NewEngine does not return until every worker has entered its loop.
func NewEngine(graph *Graph, sched *Scheduler, workers int, obs Observer) *Engine {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	e := &Engine{
		graph:   graph,
		sched:   sched,
		obs:     obs,
		cancel:  cancel,
		group:   group,
		workers: workers,
	}
	var up sync.WaitGroup
	up.Add(workers)
	for i := 0; i < workers; i++ {
		group.Go(func() error {
			up.Done()
			e.run(ctx)
			return nil
		})
	}
	up.Wait()
	return e
}

// Workers returns the pool size.
func (e *Engine) Workers() int { return e.workers }

// Stats returns the engine's execution counters.
func (e *Engine) Stats() EngineStats {
	return EngineStats{
		Workers:   e.workers,
		Started:   e.started.Load(),
		Completed: e.completed.Load(),
		Failed:    e.failed.Load(),
		Queued:    e.sched.Len(),
	}
}

// Drain blocks until the scheduler is empty and every dispatched task has
// reached a terminal state, or ctx expires.
//
// Quiescence is detected from three reads bracketed by the pop counter: if
// no pop happened across the window, every popped task has finished (and so
// has queued its dependents), and the queue is empty, nothing is in flight.
func (e *Engine) Drain(ctx context.Context) error {
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
	for {
		p1 := e.sched.Popped()
		fin := e.completed.Load() + e.failed.Load()
		queued := e.sched.Len()
		p2 := e.sched.Popped()
		if queued == 0 && fin == p1 && p1 == p2 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("drain: %w", ctx.Err())
		case <-tick.C:
		}
	}
}

// Shutdown stops the workers and waits for them to exit. Queued tasks are
// left in place; in-flight work runs to completion before the owning worker
// notices the cancellation.
func (e *Engine) Shutdown() {
	e.cancel()
	_ = e.group.Wait()
}

func (e *Engine) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		t := e.sched.Next()
		if t == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleBackoff):
			}
			continue
		}
		e.execute(t)
	}
}

func (e *Engine) execute(t *TaskContext) {
	if err := t.transition(TaskReady, TaskRunning); err != nil {
		panic(err)
	}
	e.started.Add(1)
	if e.obs != nil {
		SafeObserve(func() { e.obs.TaskStarted(t) })
	}

	begin := time.Now()
	oc := runWork(t.Work)
	elapsed := time.Since(begin)
	t.addCPUTime(elapsed)

	for _, d := range e.graph.Complete(t.ID, oc) {
		e.sched.Submit(d)
	}
	// The finish counters advance only after every released dependent is
	// queued; Drain relies on that ordering.
	if oc == OutcomeFailed {
		e.failed.Add(1)
	} else {
		e.completed.Add(1)
	}
	if e.obs != nil {
		SafeObserve(func() { e.obs.TaskFinished(t, oc, elapsed) })
	}
}

// runWork executes the task body inside the failure boundary. A nil work
// function completes trivially; an error or a panic marks the task FAILED.
func runWork(w Work) (oc Outcome) {
	oc = OutcomeCompleted
	if w == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			oc = OutcomeFailed
		}
	}()
	if err := w(); err != nil {
		oc = OutcomeFailed
	}
	return
}
