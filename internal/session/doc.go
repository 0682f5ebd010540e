// ABOUTME: Package documentation for the session package
// ABOUTME: Describes the state machine, persistence ordering, and cancel semantics

// Package session drives the per-chat conversation state machine.
//
// # Lifecycle
//
// A session is Idle until Submit records the user turn and opens a
// completion stream (Sending). The first fragment creates an empty
// assistant placeholder and moves the session to Streaming; every further
// fragment appends to that placeholder. A cleanly exhausted stream commits
// the assistant turn to storage exactly once and returns to Idle.
//
// # Persistence ordering
//
// The user turn is persisted asynchronously as soon as it is accepted, with
// a detached timeout context, so history survives even if the exchange
// fails. The assistant turn is persisted only on clean exhaustion; a
// cancelled or failed exchange leaves its partial text visible in memory
// but never written.
//
// # Cancel and failure
//
// Cancel flips the session to Idle immediately and tears down the transport
// context. Transport failures, including the per-fragment idle timeout,
// surface on the Errors channel and also resolve to Idle; they are never
// retried.
package session
