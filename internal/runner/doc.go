// Package runner executes external command-line tools for skylift.
//
// This package is internal to skylift and is the single boundary through
// which cloud resources are touched: every gcloud/kubectl/gsutil/skaffold/
// git invocation goes through a [Runner]. Results capture stdout, stderr
// and the exit code; a nonzero exit is never surfaced as a Go error, so
// each call site can apply its own fatal-vs-best-effort policy.
//
// The main components are:
//
//   - [Command]: one external invocation (tool, argv, timing)
//   - [Result]: captured output, exit code and latency
//   - [ExecRunner]: os/exec-backed implementation with per-call timeouts
//   - [CheckTools]: PATH probe for required binaries
//
// Users of the skylift library should not need to interact with this
// package directly, except to substitute a fake [Runner] in tests.
package runner
