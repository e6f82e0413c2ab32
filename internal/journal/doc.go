// Package journal records the outcome of every bootstrap step and poll.
//
// This package is internal to skylift. It keeps a bounded, append-only
// in-memory log of what the orchestrator has done so far; when a fatal
// step fails mid-flow, the most recent entries are attached to the error
// as diagnostic context instead of making the operator scroll back
// through terminal output.
//
// The main components are:
//
//   - [Entry]: one recorded operation outcome
//   - [Journal]: bounded append-only log, safe for concurrent use
//
// Users of the skylift library should not need to interact with this
// package directly. Recording is managed internally by Skylift.
package journal
