// Package backpressure gates the telemetry processing loop on the amount
// of unprocessed backlog across the configured source files.
//
// Unprocessed volume per source is the file size past the externally
// owned checkpoint offset, floored at zero. When the total exceeds the
// configured threshold the controller reports paused and the loop skips
// processing until the backlog drains. Pausing is a deliberate, logged,
// self-correcting degraded state, not an error.
package backpressure
