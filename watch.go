package skylift

import (
	"errors"
	"time"
)

const (
	defaultWatchInterval        = 10 * time.Second
	defaultWatchTimeout         = 10 * time.Minute
	defaultWatchDescribeTimeout = 30 * time.Second
)

// Probe is the declarative describe operation of a [Watch]: the command
// whose output carries the current status of the watched resource.
type Probe struct {
	// Tool is the binary to execute (e.g. "gcloud").
	Tool string

	// Args are the arguments passed to the tool.
	Args []string
}

// Watch represents one wait-for-desired-state polling job.
//
// Watch is immutable after creation via [NewWatch]. All fields are private
// with getter methods, ensuring the watch cannot be modified after
// construction. It is owned exclusively by the caller that polls it.
//
// A Watch pairs a [Probe] (how to fetch status) and a [StatusExtractor]
// (how to read status out of the probe's output) with a success predicate,
// an optional failure predicate, and timing bounds. The same shape serves
// every status domain: cluster readiness, rollout completion, and
// pending-approval detection differ only in their probe and predicates.
//
// Watches are configured using the functional options pattern with
// [WatchOption] functions such as [WithSuccess], [WithFailure],
// [WithInterval], [WithTimeout], and [WithOnPoll].
type Watch struct {
	name            string
	probe           Probe
	extractor       StatusExtractor
	success         Predicate
	failure         Predicate
	interval        time.Duration
	timeout         time.Duration
	describeTimeout time.Duration
	onPoll          func(Observation)
}

// Name returns the watch's display name, used in logs and results.
func (w Watch) Name() string {
	return w.name
}

// Probe returns the watch's describe command. The returned value contains
// a copy of the argument slice; modifying it does not affect the watch.
func (w Watch) Probe() Probe {
	return Probe{Tool: w.probe.Tool, Args: copySlice(w.probe.Args)}
}

// Extractor returns the watch's [StatusExtractor] function.
// Returns nil if no custom extractor was specified. When nil, the polling
// layer applies [DefaultExtractor].
func (w Watch) Extractor() StatusExtractor {
	return w.extractor
}

// Success returns the watch's success predicate.
func (w Watch) Success() Predicate {
	return w.success
}

// Failure returns the watch's failure predicate.
// Returns nil if no failure condition was specified.
func (w Watch) Failure() Predicate {
	return w.failure
}

// Interval returns the sleep between status checks.
// Defaults to 10 seconds if not explicitly set via [WithInterval].
func (w Watch) Interval() time.Duration {
	return w.interval
}

// Timeout returns the total polling budget. Zero means poll at most once.
// Defaults to 10 minutes if not explicitly set via [WithTimeout].
func (w Watch) Timeout() time.Duration {
	return w.timeout
}

// DescribeTimeout returns the per-probe-invocation budget.
// Defaults to 30 seconds if not explicitly set via [WithDescribeTimeout].
func (w Watch) DescribeTimeout() time.Duration {
	return w.describeTimeout
}

// OnPoll returns the per-iteration progress callback, or nil.
func (w Watch) OnPoll() func(Observation) {
	return w.onPoll
}

// Observation is one polling iteration's view of a watched resource,
// delivered to the [WithOnPoll] callback after every status check.
//
// This synchronous callback is the progress-reporting mechanism: there is
// no background spinner, and the polling loop carries no concurrency.
type Observation struct {
	// Watch is the name of the watch being polled.
	Watch string

	// Status is the status observed in this iteration.
	Status Status

	// Attempt is the 1-based describe call count.
	Attempt int

	// Elapsed is the time since the poll started.
	Elapsed time.Duration

	// Err is the describe error for this iteration, if any. A non-nil
	// transient error does not stop the poll.
	Err error
}

// NewWatch creates a [Watch] with the given name, probe, and options.
//
// The name parameter is a human-readable identifier used in logs and
// results. The probe is the command whose output carries the status.
// A success predicate is required; see [WithSuccess].
//
// Options are applied in order using the functional options pattern.
//
// Returns an error if the name is empty, the probe has no tool, or no
// success predicate is configured.
//
// Example:
//
//	w, err := skylift.NewWatch("staging cluster",
//	    skylift.Probe{Tool: "gcloud", Args: []string{
//	        "container", "clusters", "describe", "staging",
//	        "--zone", "us-central1-a", "--format", "value(status)",
//	    }},
//	    skylift.WithSuccess(skylift.StatusIs(skylift.StatusRunning)),
//	    skylift.WithTimeout(15*time.Minute),
//	)
func NewWatch(name string, probe Probe, opts ...WatchOption) (Watch, error) {
	if name == "" {
		return Watch{}, errors.New("watch name cannot be empty")
	}
	if probe.Tool == "" {
		return Watch{}, errors.New("watch probe must name a tool")
	}

	cfg := &watchConfig{
		interval:        defaultWatchInterval,
		timeout:         defaultWatchTimeout,
		describeTimeout: defaultWatchDescribeTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Watch{}, err
		}
	}

	if cfg.success == nil {
		return Watch{}, errors.New("watch requires a success predicate (WithSuccess)")
	}

	return Watch{
		name:            name,
		probe:           Probe{Tool: probe.Tool, Args: copySlice(probe.Args)},
		extractor:       cfg.extractor,
		success:         cfg.success,
		failure:         cfg.failure,
		interval:        cfg.interval,
		timeout:         cfg.timeout,
		describeTimeout: cfg.describeTimeout,
		onPoll:          cfg.onPoll,
	}, nil
}

// copySlice returns a shallow copy of the slice, or nil for nil input.
func copySlice(s []string) []string {
	if s == nil {
		return nil
	}
	cp := make([]string, len(s))
	copy(cp, s)
	return cp
}
