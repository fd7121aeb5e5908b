package sched

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateID reports registration of an id already in the graph.
	ErrDuplicateID = errors.New("duplicate task id")
	// ErrUnknownTask reports an operation naming an id the graph never saw.
	ErrUnknownTask = errors.New("unknown task")
	// ErrSelfDependency reports an edge from a task to itself.
	ErrSelfDependency = errors.New("self dependency")
	// ErrCycleFound reports a dependency cycle detected by ValidateAcyclic.
	ErrCycleFound = errors.New("cycle detected")
	// ErrTaskDispatched reports an edge added to a task that already left the
	// pre-dispatch states.
	ErrTaskDispatched = errors.New("task already dispatched")
)

// GraphError wraps graph contract violations with a caller-facing message.
type GraphError struct {
	Kind error
	Msg  string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func graphErrf(kind error, format string, args ...any) error {
	return &GraphError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func cycleError(path []TaskID) error {
	if len(path) == 0 {
		return &GraphError{Kind: ErrCycleFound}
	}
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return &GraphError{Kind: ErrCycleFound, Msg: strings.Join(parts, " -> ")}
}
