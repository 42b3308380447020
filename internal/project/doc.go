// Package project implements the project document store and its client-side
// cache.
//
// # Purpose
//
// Project artifacts (projects, scenes, macros, device configurations) are
// XML documents keyed by (domain, uuid) with append-only integer revisions.
// The server side is a SQLite-backed Repository fronted by a session-gated
// Store; the client side is a Connection that batches reads and writes,
// resolves cross-references within a batch from memory, and keeps a local
// disk cache with a short-lived negative entry for misses.
//
// # Thread Safety
//
// Repository is safe for concurrent use (the underlying pool serialises
// writers). Store guards its session table with a mutex. Connection guards
// its buffers and waiter maps with a mutex; its callbacks are invoked
// without the lock held.
//
// # Error Handling
//
// Sentinel errors (ErrNotAuthenticated, ErrConflict, ErrNotFound) are
// checked with errors.Is. Save is compound: per-item conflicts are reported
// in the item's result and never fail the call.
package project
