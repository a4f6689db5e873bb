package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/stavrosp/flowguard/internal/circuitbreaker"
	"github.com/stavrosp/flowguard/internal/metrics"
	"github.com/stavrosp/flowguard/internal/telemetry"
)

// Breaker names for the two learning-pipeline dependencies.
const (
	BreakerVectorStore     = "vector_store"
	BreakerRelationalStore = "relational_store"
)

// VectorSink upserts event embeddings into the vector store.
type VectorSink interface {
	Upsert(ctx context.Context, events []telemetry.Event) error
}

// RecordSink inserts event rows into the relational store.
type RecordSink interface {
	Insert(ctx context.Context, events []telemetry.Event) error
}

// Processor pushes a batch of telemetry events into both stores, each
// call guarded by its own circuit breaker. Any failure, including a
// rejection by an open breaker, fails the batch so the caller does not
// advance the checkpoint.
type Processor struct {
	breakers  *circuitbreaker.Registry
	vector    VectorSink
	records   RecordSink
	collector *metrics.Collector
	logger    *slog.Logger
}

func NewProcessor(
	breakers *circuitbreaker.Registry,
	vector VectorSink,
	records RecordSink,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		breakers:  breakers,
		vector:    vector,
		records:   records,
		collector: collector,
		logger:    logger,
	}
}

func (p *Processor) ProcessBatch(ctx context.Context, events []telemetry.Event) error {
	if len(events) == 0 {
		return nil
	}

	vectorErr := p.callSink(BreakerVectorStore, func() error {
		return p.vector.Upsert(ctx, events)
	})
	recordErr := p.callSink(BreakerRelationalStore, func() error {
		return p.records.Insert(ctx, events)
	})

	return errors.Join(vectorErr, recordErr)
}

// callSink runs op through the named breaker. An open breaker rejects
// without invoking the sink; the rejection still fails the batch so the
// checkpoint is held back and the events are retried on a later tick.
// While the dependency stays down the backlog grows and backpressure
// takes over.
func (p *Processor) callSink(name string, op func() error) error {
	cb := p.breakers.Get(name)

	start := time.Now()
	err := cb.Do(op)

	var openErr *circuitbreaker.OpenError
	if errors.As(err, &openErr) {
		p.logger.Warn("Dependency call rejected, breaker open",
			slog.String("dependency", name),
			slog.Duration("retry_after", openErr.RetryAfter))
		p.collector.Emit(metrics.Event{
			Type:       metrics.EventCallRejected,
			Timestamp:  time.Now(),
			Dependency: name,
		})
		return err
	}

	p.collector.Emit(metrics.Event{
		Type:       metrics.EventCallCompleted,
		Timestamp:  time.Now(),
		Dependency: name,
		Duration:   time.Since(start),
		Failed:     err != nil,
	})

	if err != nil {
		p.logger.Error("Dependency call failed",
			slog.String("dependency", name),
			slog.String("error", err.Error()))
	}
	return err
}
