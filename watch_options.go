package skylift

import (
	"errors"
	"time"
)

// watchConfig holds mutable state during watch construction.
type watchConfig struct {
	extractor       StatusExtractor
	success         Predicate
	failure         Predicate
	interval        time.Duration
	timeout         time.Duration
	describeTimeout time.Duration
	onPoll          func(Observation)
}

// WatchOption is a function that configures a [Watch] during construction.
//
// WatchOption implements the functional options pattern, allowing optional
// configuration to be passed to [NewWatch] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithSuccess], [WithFailure], [WithWatchExtractor],
// [WithInterval], [WithTimeout], [WithDescribeTimeout], [WithOnPoll].
type WatchOption func(*watchConfig) error

// WithSuccess sets the predicate that resolves the poll as succeeded.
//
// Required: [NewWatch] fails without it. The first observed status that
// matches resolves the poll immediately; no further waiting happens even
// if the timeout has not elapsed.
//
// Example:
//
//	skylift.WithSuccess(skylift.StatusIs(skylift.StatusSucceeded))
//
// Returns an error if the predicate is nil.
func WithSuccess(p Predicate) WatchOption {
	return func(cfg *watchConfig) error {
		if p == nil {
			return errors.New("success predicate cannot be nil")
		}
		cfg.success = p
		return nil
	}
}

// WithFailure sets an optional predicate that resolves the poll as failed.
//
// When the observed status matches, polling stops immediately with a
// failed result. Without a failure predicate, only the timeout ends an
// unsuccessful poll.
//
// Example:
//
//	skylift.WithFailure(skylift.StatusIn(skylift.StatusFailed, "CANCELLED"))
//
// Returns an error if the predicate is nil.
func WithFailure(p Predicate) WatchOption {
	return func(cfg *watchConfig) error {
		if p == nil {
			return errors.New("failure predicate cannot be nil")
		}
		cfg.failure = p
		return nil
	}
}

// WithWatchExtractor sets a custom [StatusExtractor] for this watch.
//
// The extractor determines how the probe's output is interpreted as a
// [Status]. If not specified, [DefaultExtractor] is used, which tries a
// JSON "state" field, then "status", then the raw value line.
func WithWatchExtractor(e StatusExtractor) WatchOption {
	return func(cfg *watchConfig) error {
		cfg.extractor = e
		return nil
	}
}

// WithInterval sets the sleep between status checks.
//
// Defaults to 10 seconds if not specified.
//
// Returns an error if the duration is zero or negative.
func WithInterval(d time.Duration) WatchOption {
	return func(cfg *watchConfig) error {
		if d <= 0 {
			return errors.New("interval must be positive")
		}
		cfg.interval = d
		return nil
	}
}

// WithTimeout sets the total polling budget for the watch.
//
// A zero timeout polls at most once, which models one-shot detection
// checks such as "is this rollout already pending approval". Defaults to
// 10 minutes if not specified.
//
// Returns an error if the duration is negative.
func WithTimeout(d time.Duration) WatchOption {
	return func(cfg *watchConfig) error {
		if d < 0 {
			return errors.New("timeout cannot be negative")
		}
		cfg.timeout = d
		return nil
	}
}

// WithDescribeTimeout bounds each individual probe invocation.
//
// The polling loop has no way to cancel a describe call mid-flight, so
// every call carries its own budget; this prevents a single hung CLI
// invocation from stalling the overall timeout arithmetic. Defaults to
// 30 seconds if not specified.
//
// Returns an error if the duration is zero or negative.
func WithDescribeTimeout(d time.Duration) WatchOption {
	return func(cfg *watchConfig) error {
		if d <= 0 {
			return errors.New("describe timeout must be positive")
		}
		cfg.describeTimeout = d
		return nil
	}
}

// WithOnPoll registers a callback invoked synchronously after every
// status check with that iteration's [Observation].
//
// This is the progress-reporting hook: use it to print a ticker line or
// update a UI. The callback runs on the polling goroutine, so it must be
// fast; there is no background delivery.
//
// Nil callbacks are silently ignored.
func WithOnPoll(cb func(Observation)) WatchOption {
	return func(cfg *watchConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.onPoll = cb
		return nil
	}
}
