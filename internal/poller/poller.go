package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// StatusUnknown is the status observed when a describe call fails
// transiently or returns nothing usable. It matches no sensible predicate,
// so the loop simply continues.
const StatusUnknown = "UNKNOWN"

// Spec describes one polling job.
//
// A Spec is immutable once constructed and owned exclusively by the caller
// invoking [Poller.Poll]. The describe function performs the external
// status fetch; it should enforce its own bounded per-call timeout so a
// single hung network call cannot stall the overall timeout arithmetic.
type Spec struct {
	// Name identifies the watched resource in logs and results.
	Name string

	// Describe produces the latest raw status string. A returned error is
	// treated as [StatusUnknown] and retried, unless wrapped with
	// [Permanent], which resolves the poll as failed immediately.
	Describe func(ctx context.Context) (string, error)

	// Success resolves the poll as succeeded on first match.
	Success func(status string) bool

	// Failure, when non-nil, resolves the poll as failed on first match.
	Failure func(status string) bool

	// Interval is the sleep between describe calls. Must be positive.
	Interval time.Duration

	// Timeout bounds the whole loop. Must be >= 0; zero means poll at
	// most once.
	Timeout time.Duration

	// OnPoll, when non-nil, is invoked synchronously after every describe
	// call with the observation for that iteration. It replaces the
	// cosmetic background-spinner progress reporting of shell tooling.
	OnPoll func(Observation)
}

// Observation is one iteration's view of the watched resource, delivered
// to [Spec.OnPoll].
type Observation struct {
	// Name is the spec name.
	Name string

	// Status is the observed status for this iteration.
	Status string

	// Attempt is the 1-based describe call count.
	Attempt int

	// Elapsed is the time since the poll started.
	Elapsed time.Duration

	// Err is the describe error for this iteration, if any.
	Err error
}

// Outcome is the variant tag of a [Result].
type Outcome int

const (
	// Succeeded means the success predicate matched.
	Succeeded Outcome = iota

	// Failed means the failure predicate matched or describe reported a
	// permanent error.
	Failed

	// TimedOut means the timeout elapsed (or the context was cancelled)
	// before either predicate matched.
	TimedOut
)

// Result is the outcome of one [Poller.Poll] invocation.
//
// Exactly one Result is produced per poll. Ordinary non-success status is
// never surfaced as a Go error; the caller inspects the Outcome and
// decides the subsequent action.
type Result struct {
	// Name is the spec name.
	Name string

	// Outcome is the variant tag.
	Outcome Outcome

	// LastStatus is the most recently observed status string.
	LastStatus string

	// Reason describes a failed outcome. Empty otherwise.
	Reason string

	// Elapsed is the total time spent polling.
	Elapsed time.Duration

	// Attempts is the number of describe calls made.
	Attempts int
}

// permanentError marks a describe failure that must not be retried.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so that [Poller.Poll] resolves the loop as [Failed]
// immediately instead of retrying.
//
// Use this for non-transient configuration errors, e.g. a structurally
// invalid resource name that no amount of retrying will fix. Returns nil
// if err is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err (or anything it wraps) was marked with
// [Permanent].
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Poller executes polling [Spec]s.
//
// Poller performs no internal concurrency: [Poller.Poll] blocks the
// calling goroutine for up to the spec's timeout. The only state a Poller
// carries is its logger, so a single instance may be shared freely.
type Poller struct {
	logger *slog.Logger
}

// New creates a [Poller]. A nil logger falls back to [slog.Default].
func New(logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{logger: logger}
}

// Poll drives the bounded polling loop described by spec.
//
// Each iteration calls Describe, then tests Success and Failure in that
// order; the first match resolves the result immediately, with no
// further waiting even if the timeout has not elapsed. A transient
// describe error is observed as [StatusUnknown] and the loop continues;
// an error wrapped with [Permanent] resolves as [Failed] at once.
//
// The loop sleeps spec.Interval between iterations (never past the
// timeout) and resolves as [TimedOut] once spec.Timeout has elapsed
// without a match. A zero timeout polls exactly once. Context
// cancellation also resolves as [TimedOut] with the elapsed time.
//
// A spec with a nil Describe or Success resolves as [Failed] without any
// external call.
func (p *Poller) Poll(ctx context.Context, spec Spec) Result {
	if spec.Describe == nil || spec.Success == nil {
		return Result{
			Name:       spec.Name,
			Outcome:    Failed,
			LastStatus: StatusUnknown,
			Reason:     "invalid spec: describe and success are required",
		}
	}

	start := time.Now()
	last := StatusUnknown
	attempts := 0

	for {
		attempts++
		status, err := p.describeSafe(ctx, spec)
		if err != nil && IsPermanent(err) {
			return Result{
				Name:       spec.Name,
				Outcome:    Failed,
				LastStatus: last,
				Reason:     err.Error(),
				Elapsed:    time.Since(start),
				Attempts:   attempts,
			}
		}
		if err != nil || status == "" {
			status = StatusUnknown
		}
		last = status

		if spec.OnPoll != nil {
			spec.OnPoll(Observation{
				Name:    spec.Name,
				Status:  status,
				Attempt: attempts,
				Elapsed: time.Since(start),
				Err:     err,
			})
		}

		if p.matchSafe(spec.Name, "success", spec.Success, status) {
			return Result{
				Name:       spec.Name,
				Outcome:    Succeeded,
				LastStatus: status,
				Elapsed:    time.Since(start),
				Attempts:   attempts,
			}
		}
		if spec.Failure != nil && p.matchSafe(spec.Name, "failure", spec.Failure, status) {
			return Result{
				Name:       spec.Name,
				Outcome:    Failed,
				LastStatus: status,
				Reason:     fmt.Sprintf("status %q matched failure condition", status),
				Elapsed:    time.Since(start),
				Attempts:   attempts,
			}
		}

		remaining := spec.Timeout - time.Since(start)
		if remaining <= 0 {
			return Result{
				Name:       spec.Name,
				Outcome:    TimedOut,
				LastStatus: status,
				Elapsed:    time.Since(start),
				Attempts:   attempts,
			}
		}

		// never sleep past the timeout
		pause := spec.Interval
		if pause > remaining {
			pause = remaining
		}
		if !sleep(ctx, pause) {
			return Result{
				Name:       spec.Name,
				Outcome:    TimedOut,
				LastStatus: status,
				Elapsed:    time.Since(start),
				Attempts:   attempts,
			}
		}
	}
}

// sleep blocks for d or until ctx is cancelled. It reports whether the
// full duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// describeSafe calls spec.Describe with panic recovery.
// A panicking describe is logged with a correlation ID and observed as a
// transient failure, so one bad closure cannot crash the bootstrap flow.
func (p *Poller) describeSafe(ctx context.Context, spec Spec) (status string, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			p.logger.Error("describe panic",
				"watch", spec.Name,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			status = StatusUnknown
			err = fmt.Errorf("describe panic (correlation_id: %s)", correlationID)
		}
	}()
	return spec.Describe(ctx)
}

// matchSafe calls a predicate with panic recovery. A panicking predicate
// is logged and treated as a non-match.
func (p *Poller) matchSafe(name, kind string, predicate func(string) bool, status string) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			p.logger.Error("predicate panic",
				"watch", name,
				"predicate", kind,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			matched = false
		}
	}()
	return predicate(status)
}
