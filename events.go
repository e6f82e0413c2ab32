package skylift

import "time"

// EventKind distinguishes the two things a [Skylift] reports progress for.
type EventKind int

const (
	// EventStep is emitted after each bootstrap or teardown step runs.
	EventStep EventKind = iota

	// EventPoll is emitted after each polling iteration of a watch.
	EventPoll
)

// Event is one progress notification from a [Skylift] flow.
//
// Events are delivered synchronously on the calling goroutine to every
// callback registered with [WithEventCallback]. There is no background
// delivery, so callbacks must be fast. A panicking callback is recovered
// and logged; it cannot abort the flow.
//
// This is the progress surface: a CLI prints ticker lines from it instead
// of running a cosmetic spinner.
type Event struct {
	// Kind says whether this event describes a step or a poll iteration.
	Kind EventKind

	// Step is the step name (for [EventStep]) or watch name (for
	// [EventPoll]).
	Step string

	// Policy is the step's failure policy. Meaningful for [EventStep].
	Policy Policy

	// Status is the observed status. Meaningful for [EventPoll].
	Status Status

	// Attempt is the 1-based poll attempt. Meaningful for [EventPoll].
	Attempt int

	// Elapsed is the time since the poll started. Meaningful for
	// [EventPoll].
	Elapsed time.Duration

	// Duration is how long the step took. Meaningful for [EventStep].
	Duration time.Duration

	// Err is the step or describe error for this event, if any.
	Err error
}
