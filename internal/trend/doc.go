// Package trend maintains plot-ready data for one logged property per
// curve. Live samples arrive every few milliseconds, the user pans and
// zooms the visible window, and long historical back-fills land
// asynchronously; Curve reconciles all three against a bounded memory
// footprint.
//
// # Architecture
//
// Each curve owns a cascade of averaging generations: raw points feed
// the finest ring, and whenever a ring fills its oldest points are
// folded into their mean and promoted one level up. The plot buffer is
// a fetched history slab followed by a live section rebuilt from the
// generations, so recent data stays at full resolution while old data
// degrades gracefully instead of being dropped.
//
// History fetches are tagged with a generation counter; a reply for a
// superseded window is discarded, which cancels stale in-flight
// requests without coordination. Curves that are off screen never
// fetch.
//
// Curve is designed for a single-goroutine event loop and performs no
// locking of its own.
package trend
