// Package poller implements the wait-for-desired-state polling loop that
// skylift uses against external cloud resources.
//
// This package is internal to skylift. It drives a bounded-time, fully
// synchronous loop: call a describe function, test the observed status
// against a success predicate and an optional failure predicate, sleep,
// repeat. The same primitive serves every status domain (cluster
// readiness, rollout completion, pending-approval detection) by varying
// only the closures.
//
// The main components are:
//
//   - [Spec]: one polling job (describe function, predicates, timing)
//   - [Result]: the tagged outcome of one [Poller.Poll] call
//   - [Poller]: executes specs with panic recovery around user closures
//   - [Permanent]: marks a describe error as non-retryable
//
// Users of the skylift library should not need to interact with this
// package directly. Configuration is done through the main skylift package.
package poller
