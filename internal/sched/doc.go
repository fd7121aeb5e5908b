// Package sched implements the kernel's execution substrate: the dependency
// task graph, the four-band strict-priority scheduler, and the worker-pool
// execution engine that drains it.
//
// It is intentionally split into:
//   - Task model (TaskContext): identity, priority, validated state machine,
//     atomic unsatisfied-dependency counter
//   - Graph: the authoritative task registry with dependency/dependent edges
//   - Scheduler: four FIFO queues, strict priority across bands
//   - Engine: N workers pulling from the scheduler, running work inside a
//     failure boundary, and releasing dependents through the graph
//
// Lock ordering: graph write lock -> scheduler queue lock -> log buffer.
// Per-task atomics are leaves and never nest.
package sched
