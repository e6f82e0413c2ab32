package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// maxOutputSize caps captured stdout/stderr per invocation. gcloud can be
// chatty; anything past this is discarded rather than buffered.
const maxOutputSize = 1 << 20 // 1MB

// defaultTimeout bounds a command that did not specify its own budget, so
// a single hung CLI call cannot stall the caller's timeout arithmetic.
const defaultTimeout = 2 * time.Minute

// Command describes one external tool invocation.
//
// Command is a plain value: construct it literally or via the plan
// builders in the skylift package.
type Command struct {
	// Name identifies the logical operation (e.g. "create-cluster") in
	// logs and journal entries.
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

// String renders the invocation for logs, e.g. "gcloud container clusters list".
func (c Command) String() string {
	return strings.TrimSpace(c.Tool + " " + strings.Join(c.Args, " "))
}

// Result holds the captured outcome of one [Command].
//
// Run always returns a Result; failures to even start the process are
// captured in the Error field with ExitCode -1 rather than returned
// separately. This keeps policy decisions (abort vs continue) with the
// caller.
type Result struct {
	// Stdout is the captured standard output, limited to 1MB.
	Stdout []byte

	// Stderr is the captured standard error, limited to 1MB.
	Stderr []byte

	// ExitCode is the process exit code. Zero on success, -1 if the
	// process could not be started or was killed by the timeout.
	ExitCode int

	// Latency is the total time taken by the invocation.
	Latency time.Duration

	// Error is non-nil when the process could not be started, timed out,
	// or exited nonzero. A nonzero exit is reflected here for convenience
	// but is not a reason for Run itself to fail.
	Error error
}

// Ok reports whether the command exited zero.
func (r Result) Ok() bool {
	return r.ExitCode == 0 && r.Error == nil
}

// Runner executes external commands.
//
// Implementations must never return a Go error for an ordinary nonzero
// exit; callers inspect [Result.ExitCode] and decide whether to treat it
// as fatal or best-effort.
type Runner interface {
	Run(ctx context.Context, cmd Command) Result
}

// ExecRunner is the os/exec-backed [Runner] implementation.
//
// Every invocation gets a bounded per-call timeout (the command's own, or
// the runner default) applied via context cancellation, and its output is
// capped at 1MB per stream.
type ExecRunner struct {
	// Env, when non-empty, is appended to the inherited process
	// environment for every invocation.
	Env []string
}

// NewExecRunner creates an [ExecRunner] with no extra environment.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes cmd and returns its captured [Result].
func (e *ExecRunner) Run(ctx context.Context, cmd Command) Result {
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	proc := exec.CommandContext(ctx, cmd.Tool, cmd.Args...)
	if cmd.Dir != "" {
		proc.Dir = cmd.Dir
	}
	if len(e.Env) > 0 {
		proc.Env = append(proc.Environ(), e.Env...)
	}

	var stdout, stderr cappedBuffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	err := proc.Run()
	result := Result{
		Stdout:  stdout.Bytes(),
		Stderr:  stderr.Bytes(),
		Latency: time.Since(start),
	}

	switch {
	case err == nil:
		result.ExitCode = 0
	case ctx.Err() != nil:
		result.ExitCode = -1
		result.Error = fmt.Errorf("%s timed out after %s: %w", cmd.Tool, timeout, ctx.Err())
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			result.Error = fmt.Errorf("%s exited with code %d", cmd.Tool, result.ExitCode)
		} else {
			result.ExitCode = -1
			result.Error = fmt.Errorf("failed to run %s: %w", cmd.Tool, err)
		}
	}
	return result
}

// ErrMissingTool is wrapped by [CheckTools] errors so callers can detect
// the missing-prerequisite class and abort before any cloud mutation.
var ErrMissingTool = errors.New("required tool not found")

// CheckTools verifies that every named binary is resolvable on PATH.
//
// The first missing tool produces an error wrapping [ErrMissingTool] that
// names the binary. A nil return means all prerequisites are present.
func CheckTools(names ...string) error {
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			return fmt.Errorf("%w: %s", ErrMissingTool, name)
		}
	}
	return nil
}

// cappedBuffer is a bytes.Buffer that silently discards writes past
// maxOutputSize.
type cappedBuffer struct {
	buf bytes.Buffer
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	remaining := maxOutputSize - c.buf.Len()
	if remaining <= 0 {
		return len(p), nil // pretend success, drop the bytes
	}
	if len(p) > remaining {
		if _, err := c.buf.Write(p[:remaining]); err != nil {
			return 0, err
		}
		return len(p), nil
	}
	return c.buf.Write(p)
}

func (c *cappedBuffer) Bytes() []byte {
	return c.buf.Bytes()
}

var _ io.Writer = (*cappedBuffer)(nil)
