package skylift

import "time"

// Status represents the reported state of a watched cloud resource.
//
// Status is a string type holding whatever the external system reports,
// normalised to upper case by the extractors. Well-known values for the
// three watched domains (GKE clusters and Cloud Deploy rollouts) are
// provided as constants, but any string is a valid Status; predicates
// decide what matters.
type Status string

const (
	// StatusUnknown indicates the status could not be determined.
	// This is the value a watch observes when a describe call fails
	// transiently or an extractor cannot parse the output.
	StatusUnknown Status = "UNKNOWN"

	// StatusProvisioning indicates a cluster is still being created.
	StatusProvisioning Status = "PROVISIONING"

	// StatusRunning indicates a cluster is ready for workloads.
	StatusRunning Status = "RUNNING"

	// StatusInProgress indicates a rollout is still deploying.
	StatusInProgress Status = "IN_PROGRESS"

	// StatusPendingApproval indicates a rollout is blocked on a manual
	// or automated approval before it may proceed.
	StatusPendingApproval Status = "PENDING_APPROVAL"

	// StatusSucceeded indicates a rollout completed successfully.
	StatusSucceeded Status = "SUCCEEDED"

	// StatusFailed indicates a rollout failed permanently.
	StatusFailed Status = "FAILED"
)

// String returns the string representation of the status.
// This implements the fmt.Stringer interface.
func (s Status) String() string {
	return string(s)
}

// Predicate decides whether an observed [Status] matches a condition.
//
// Predicates are pure functions: the same status always produces the same
// answer. A [Watch] carries a success predicate and an optional failure
// predicate; the first one to match resolves the poll.
type Predicate func(Status) bool

// StatusIs returns a [Predicate] that matches exactly one status value.
//
// Example:
//
//	w, err := skylift.NewWatch("cluster", describe,
//	    skylift.WithSuccess(skylift.StatusIs(skylift.StatusRunning)),
//	)
func StatusIs(want Status) Predicate {
	return func(s Status) bool {
		return s == want
	}
}

// StatusIn returns a [Predicate] that matches any of the given values.
//
// Example:
//
//	skylift.WithFailure(skylift.StatusIn(skylift.StatusFailed, "CANCELLED"))
func StatusIn(want ...Status) Predicate {
	return func(s Status) bool {
		for _, w := range want {
			if s == w {
				return true
			}
		}
		return false
	}
}

// Outcome is the variant tag of a [PollResult].
type Outcome int

const (
	// OutcomeSucceeded means the success predicate matched.
	OutcomeSucceeded Outcome = iota

	// OutcomeFailed means the failure predicate matched, or the describe
	// call reported a permanent error.
	OutcomeFailed

	// OutcomeTimedOut means the timeout elapsed (or the context was
	// cancelled) before either predicate matched.
	OutcomeTimedOut
)

// String returns a short name for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// PollResult holds the outcome of a single poll invocation.
//
// PollResult is immutable after creation. Exactly one is produced per poll;
// the caller consumes it to decide the subsequent action (proceed, abort,
// retry). Polling ordinary non-success states never produces a Go error;
// the variant tag carries the decision.
type PollResult struct {
	// Watch is the name of the watch that produced this result.
	Watch string

	// Outcome is the variant tag: succeeded, failed, or timed out.
	Outcome Outcome

	// LastStatus is the most recently observed status.
	LastStatus Status

	// Reason describes why a failed poll failed. Empty otherwise.
	Reason string

	// Elapsed is the total time spent polling.
	Elapsed time.Duration

	// Attempts is the number of describe calls made.
	Attempts int
}

// Succeeded reports whether the success predicate matched.
func (r PollResult) Succeeded() bool {
	return r.Outcome == OutcomeSucceeded
}

// Failed reports whether the failure predicate matched or the describe
// call reported a permanent error.
func (r PollResult) Failed() bool {
	return r.Outcome == OutcomeFailed
}

// TimedOut reports whether the poll exhausted its timeout without a match.
func (r PollResult) TimedOut() bool {
	return r.Outcome == OutcomeTimedOut
}
