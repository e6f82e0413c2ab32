package skylift

import (
	"context"
	"time"

	"github.com/jpalmerr/skylift/internal/runner"
)

// Command describes one external tool invocation.
//
// Every cloud interaction skylift performs is a Command executed through a
// [Runner]: the exact request/response shapes of the underlying operations
// are owned by the external CLIs, not by this package.
type Command struct {
	// Name identifies the logical operation (e.g. "create-cluster").
	Name string

	// Tool is the binary to execute (e.g. "gcloud").
	Tool string

	// Args are the arguments passed to the tool.
	Args []string

	// Dir, when non-empty, is the working directory for the invocation.
	Dir string

	// Timeout bounds this invocation. Zero applies the runner default.
	Timeout time.Duration
}

// CommandResult holds the captured outcome of one [Command].
//
// A nonzero exit is never surfaced as a Go error by [Runner.Run]; callers
// inspect ExitCode and decide whether to treat it as fatal or best-effort.
type CommandResult struct {
	// Stdout is the captured standard output, limited to 1MB.
	Stdout []byte

	// Stderr is the captured standard error, limited to 1MB.
	Stderr []byte

	// ExitCode is the process exit code. Zero on success, -1 if the
	// process could not be started or was killed by its timeout.
	ExitCode int

	// Latency is the total time taken by the invocation.
	Latency time.Duration

	// Err is non-nil when the process could not be started, timed out,
	// or exited nonzero.
	Err error
}

// Ok reports whether the command exited zero.
func (r CommandResult) Ok() bool {
	return r.ExitCode == 0 && r.Err == nil
}

// Runner executes external commands on behalf of a [Skylift].
//
// The default implementation shells out via os/exec. Substitute a fake
// with [WithRunner] to test orchestration flows without touching any
// cloud project.
type Runner interface {
	// Run executes cmd and returns its captured result. Implementations
	// must never return an error through the result for an ordinary
	// nonzero exit without also setting ExitCode, and must bound each
	// invocation with a per-call timeout.
	Run(ctx context.Context, cmd Command) CommandResult
}

// execRunner adapts the internal os/exec runner to the public [Runner]
// interface.
type execRunner struct {
	inner *runner.ExecRunner
}

// NewExecRunner returns the default [Runner], which executes commands
// with os/exec, a bounded per-call timeout, and 1MB output caps.
func NewExecRunner() Runner {
	return &execRunner{inner: runner.NewExecRunner()}
}

func (e *execRunner) Run(ctx context.Context, cmd Command) CommandResult {
	res := e.inner.Run(ctx, runner.Command{
		Name:    cmd.Name,
		Tool:    cmd.Tool,
		Args:    cmd.Args,
		Dir:     cmd.Dir,
		Timeout: cmd.Timeout,
	})
	return CommandResult{
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		ExitCode: res.ExitCode,
		Latency:  res.Latency,
		Err:      res.Error,
	}
}
