// Package checkpoint records how far the processing loop has progressed
// in each telemetry source file. It is the durable side of the pipeline:
// offsets survive restarts so events are not reprocessed.
package checkpoint
