package skylift

import (
	"github.com/jpalmerr/skylift/internal/runner"
)

// ErrMissingTool indicates a required external CLI was not found on PATH.
//
// Prerequisite failures happen before any cloud mutation; callers should
// treat them as configuration errors, not partial-bootstrap failures.
// Test with errors.Is.
var ErrMissingTool = runner.ErrMissingTool

// BootstrapError is returned by [Skylift.Bootstrap] when a fatal step
// fails after cloud mutations may already have happened.
//
// It carries a rendering of the most recent journal entries so the
// operator can see what ran before the failure without re-running
// anything. Distinguish it from prerequisite errors with errors.As.
type BootstrapError struct {
	// Step is the logical operation that failed (e.g. "build-images").
	Step string

	// Diagnostics is an indented block of recent journal entries.
	// May be empty.
	Diagnostics string

	err error
}

// Error implements the error interface.
func (e *BootstrapError) Error() string {
	return "bootstrap failed at " + e.Step + ": " + e.err.Error()
}

// Unwrap returns the underlying step error.
func (e *BootstrapError) Unwrap() error {
	return e.err
}
