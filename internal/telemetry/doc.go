// Package telemetry exports kernel execution and host metrics through a
// private Prometheus registry.
//
// Metrics implements the engine's Observer interface for per-task counters
// and durations, and runs a sampler goroutine that periodically reads host
// CPU and memory plus a kernel-supplied snapshot of queue, slab, ring, and
// log-buffer state. A promhttp listener is started only when an address is
// configured.
package telemetry
