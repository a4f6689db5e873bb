// Package pipeline runs the continuous-learning processing loop: poll
// backpressure, read a batch of telemetry events per source, push them
// through circuit-breaker-guarded dependency calls, and commit checkpoint
// offsets on success.
package pipeline
