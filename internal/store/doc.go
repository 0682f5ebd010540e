// ABOUTME: Package documentation for the store package
// ABOUTME: Describes entities, ownership scoping, and the SQLite/mock implementations

// Package store provides persistence for parley's chat data.
//
// # Overview
//
// The store owns the relational schema: users, roles, permissions, chats,
// messages, folders, agents, the audit log, and system settings. Two
// implementations exist:
//
//   - SQLiteStore: production storage backed by modernc.org/sqlite with WAL
//     mode and foreign keys enabled. The schema is created automatically and
//     default roles are seeded on first open.
//   - MockStore: an in-memory implementation for tests.
//
// # Ownership scoping
//
// Every chat, message, folder, and agent operation takes the requesting
// user's ID and filters by it. A lookup for a row owned by someone else
// returns ErrNotFound, identical to a missing row, so existence never leaks
// across accounts.
//
// # Messages
//
// Messages are immutable once created. The streaming pipeline accumulates
// assistant text in memory and calls CreateMessage exactly once per
// completed exchange; partial output from a cancelled stream is never
// persisted. Creating a message bumps the owning chat's updated_at so the
// sidebar sorts by activity.
package store
