// ABOUTME: Package documentation for the completion package
// ABOUTME: Describes the transport boundary between sessions and the model API

// Package completion is the transport boundary to an OpenAI-compatible chat
// completions endpoint.
//
// StreamChat returns a pull-based Stream: callers Recv fragments one at a
// time until io.EOF, which keeps cancellation simple because dropping the
// request context aborts the HTTP stream. Non-200 responses surface as
// *TransportError with the status code and error body, so callers can
// distinguish endpoint failures from local ones.
//
// Complete is the one-shot variant used for short utility prompts such as
// title synthesis.
package completion
