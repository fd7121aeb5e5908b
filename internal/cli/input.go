package cli

import (
	"flag"
	"fmt"
	"io"
)

// Semantic exit codes for the kernsim binary.
const (
	ExitSuccess           = 0
	ExitKernelFailure     = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// Invocation is the fully canonicalized description of a run. All flag
// parsing happens here, before any kernel logic is invoked.
type Invocation struct {
	// ConfigPath is the YAML config file; empty means built-in defaults.
	ConfigPath string
	// Workers overrides the configured pool size when positive.
	Workers int
	// MetricsAddr overrides the configured metrics listener address.
	MetricsAddr string
	// NoShell skips the interactive shell after the demo workload.
	NoShell bool
	// NoDemo skips the boot-time demo workload.
	NoDemo bool
}

// InvocationError carries the message and exit code for a rejected command
// line.
type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

// ParseInvocation parses CLI flags into a canonical Invocation. Parsing
// errors are returned, not printed.
func ParseInvocation(args []string) (Invocation, error) {
	fs := flag.NewFlagSet("kernsim", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var inv Invocation
	fs.StringVar(&inv.ConfigPath, "config", "", "Path to YAML config file (optional).")
	fs.IntVar(&inv.Workers, "workers", 0, "Override configured worker count.")
	fs.StringVar(&inv.MetricsAddr, "metrics", "", "Override metrics listen address.")
	fs.BoolVar(&inv.NoShell, "no-shell", false, "Exit after the demo workload.")
	fs.BoolVar(&inv.NoDemo, "no-demo", false, "Skip the demo workload.")

	if err := fs.Parse(args); err != nil {
		return Invocation{}, invalidInvocationf("kernsim: %v", err)
	}
	if rest := fs.Args(); len(rest) != 0 {
		return Invocation{}, invalidInvocationf("kernsim: unexpected argument %q", rest[0])
	}
	if inv.Workers < 0 {
		return Invocation{}, invalidInvocationf("kernsim: -workers must not be negative, got %d", inv.Workers)
	}
	return inv, nil
}
