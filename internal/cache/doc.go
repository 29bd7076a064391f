// Package cache implements a single-process, in-memory key–value store
// with per-entry expiration.
//
// Goals for this package:
//   - Make the two halves explicit: a store (map) and an expiry scheduler
//     (at most one pending timer per key)
//   - Resolve every scheduled expiration exactly once — fired, stale-fired,
//     or cancelled — through a future or a callback
//   - Be concurrency-safe (one mutex serializes callers and timer fires)
//   - Own every pending timer and resolve all of them on Clear/Close
//     (no leaks, no orphaned notifications on shutdown)
package cache
