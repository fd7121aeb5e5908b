package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"kernsim/internal/config"
	"kernsim/internal/kernel"
	"kernsim/internal/shell"
)

// Result is what Execute hands back to main for exit-code mapping.
type Result struct {
	ExitCode int
}

// Run is the high-level entrypoint suitable for black-box tests. It accepts
// the argument slice (excluding argv[0]) and the session streams, and
// returns the semantic exit code plus any error.
func Run(ctx context.Context, args []string, in io.Reader, out io.Writer) (Result, error) {
	inv, err := ParseInvocation(args)
	if err != nil {
		return Result{ExitCode: ExitCode(err)}, err
	}
	return Execute(ctx, inv, in, out)
}

// ExitCode extracts a semantic exit code from an invocation error. Unknown
// errors map to ExitInternalError.
func ExitCode(err error) int {
	var invErr *InvocationError
	if errors.As(err, &invErr) {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	if err == nil {
		return ExitSuccess
	}
	return ExitInternalError
}

// Execute boots a kernel from the invocation, runs the demo workload, and
// (unless suppressed) the interactive shell on the given streams.
//
// Responsibilities:
//   - Resolve configuration: file, then defaults, then flag overrides.
//   - Translate boot, workload, and shutdown outcomes to semantic exit
//     codes.
//   - Contain kernel panics so main can exit with a code instead of a
//     goroutine dump.
func Execute(ctx context.Context, inv Invocation, in io.Reader, out io.Writer) (res Result, execErr error) {
	res.ExitCode = ExitInternalError
	defer func() {
		if r := recover(); r != nil {
			res.ExitCode = ExitKernelFailure
			execErr = fmt.Errorf("kernel panic: %v", r)
		}
	}()

	cfg, err := resolveConfig(inv)
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, err
	}

	k, err := kernel.Boot(cfg, out)
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, err
	}
	defer func() {
		if r := recover(); r != nil {
			res.ExitCode = ExitKernelFailure
			execErr = fmt.Errorf("kernel panic: %v", r)
			return
		}
		if err := k.Shutdown(ctx); err != nil && execErr == nil {
			res.ExitCode = ExitInternalError
			execErr = err
		}
	}()

	if !inv.NoDemo {
		if err := RunDemo(ctx, k); err != nil {
			res.ExitCode = ExitKernelFailure
			return res, err
		}
	}
	if !inv.NoShell {
		if err := shell.New(k, in, out).Run(); err != nil {
			res.ExitCode = ExitInternalError
			return res, err
		}
	}
	res.ExitCode = ExitSuccess
	return res, nil
}

func resolveConfig(inv Invocation) (config.Config, error) {
	cfg := config.Default()
	if inv.ConfigPath != "" {
		loaded, err := config.Load(inv.ConfigPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if inv.Workers > 0 {
		cfg.Workers = inv.Workers
	}
	if inv.MetricsAddr != "" {
		cfg.MetricsAddr = inv.MetricsAddr
	}
	return cfg, cfg.Validate()
}
