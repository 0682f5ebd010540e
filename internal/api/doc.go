// ABOUTME: Package documentation for the api package
// ABOUTME: Describes the router layout, auth model, and streaming endpoint

// Package api exposes parley's HTTP surface on a chi router.
//
// All /api routes except login sit behind the bearer-token auth middleware;
// admin routes additionally require per-permission gates and append audit
// entries on mutation. User-facing resources are owner-scoped at the store
// layer, so a foreign chat, folder, or agent is indistinguishable from a
// missing one.
//
// The streaming endpoint (POST /api/chats/{chatID}/messages/stream) submits
// text to the chat's session and writes assistant fragments as chunked
// text/plain, flushing per fragment. Dropping the connection cancels the
// exchange; POST .../cancel does the same from another tab.
package api
