// Package metrics provides real-time metrics collection for the
// reliability layer.
//
// It uses a channel-based event pipeline to asynchronously collect:
//   - Admitted and rate-limited request counts, with per-client limiting
//   - Dependency call counts, failures, and breaker rejections
//   - Dependency call latencies with average and P95
//   - Backpressure pause/resume transitions
//
// The collector runs in a dedicated goroutine and processes events without
// blocking the emitters. Emit is non-blocking: when the buffer is full the
// event is dropped rather than stalling a request or the processing loop.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.Event{
//		Type:       metrics.EventCallCompleted,
//		Dependency: "vector_store",
//		Duration:   12 * time.Millisecond,
//	})
//
//	snapshot := collector.Snapshot()
//
// The collector drains pending events on shutdown so late outcomes are
// still counted.
package metrics
