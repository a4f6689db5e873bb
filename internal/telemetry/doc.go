// Package telemetry reads the append-only JSON-lines event files written
// by the interaction logger, resuming from checkpoint offsets.
package telemetry
