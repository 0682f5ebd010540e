// ABOUTME: Package documentation for the packs package
// ABOUTME: Describes the manifest format and seeding behavior

// Package packs ships built-in prompt packs: named agent templates loaded
// from a TOML manifest (or embedded defaults), seeded into a user's agents
// table and exposed as read-only suggestions over the API.
package packs
