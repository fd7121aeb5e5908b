// Package kernel is the facade that assembles and owns every subsystem.
//
// Boot wires the pieces in dependency order: log buffer, telemetry, memory,
// file tree, receive ring, then the task graph, scheduler, and engine.
// Shutdown stops the engine and then telemetry. Task submission flows through the
// facade so that id assignment, scratch-buffer accounting, and dependency
// wiring stay in one place.
package kernel
