package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/stavrosp/flowguard/internal/backpressure"
	"github.com/stavrosp/flowguard/internal/telemetry"
)

// pausedIntervalFactor stretches the poll interval while backpressure is
// engaged, so the loop rechecks promptly without hot-looping.
const pausedIntervalFactor = 5

// CheckpointStore is the durable record of per-source progress.
type CheckpointStore interface {
	Offset(source string) (int64, error)
	Commit(source string, offset int64) error
}

// BatchReader reads events from a telemetry source starting at an offset.
type BatchReader interface {
	ReadBatch(path string, offset int64, maxEvents int) ([]telemetry.Event, int64, error)
}

// BatchProcessor handles one batch of events.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, events []telemetry.Event) error
}

// Loop drives telemetry processing: every tick it checks backpressure,
// and while not paused reads a batch from each telemetry source,
// processes it, and commits the new offset. It is the sole writer of the
// controller's paused flag.
type Loop struct {
	controller *backpressure.Controller
	checkpoint CheckpointStore
	reader     BatchReader
	processor  BatchProcessor
	sources    []string
	interval   time.Duration
	batchSize  int
	logger     *slog.Logger
}

func NewLoop(
	controller *backpressure.Controller,
	checkpoint CheckpointStore,
	reader BatchReader,
	processor BatchProcessor,
	sources []string,
	interval time.Duration,
	batchSize int,
	logger *slog.Logger,
) *Loop {
	return &Loop{
		controller: controller,
		checkpoint: checkpoint,
		reader:     reader,
		processor:  processor,
		sources:    sources,
		interval:   interval,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// Run ticks until ctx is cancelled. A paused tick skips processing and
// sleeps the stretched interval before rechecking.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Processing loop started",
		slog.Duration("interval", l.interval),
		slog.Int("batch_size", l.batchSize))
	defer l.logger.Info("Processing loop stopped")

	timer := time.NewTimer(l.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		delay := l.interval
		if status := l.controller.Check(); status.Paused {
			delay = l.interval * pausedIntervalFactor
		} else {
			l.processTick(ctx)
		}

		timer.Reset(delay)
	}
}

// processTick runs one batch per source. A failing source is logged and
// skipped; the others still make progress.
func (l *Loop) processTick(ctx context.Context) {
	for _, source := range l.sources {
		if err := l.processSource(ctx, source); err != nil {
			l.logger.Error("Batch processing failed",
				slog.String("source", source),
				slog.String("error", err.Error()))
		}
	}
}

func (l *Loop) processSource(ctx context.Context, source string) error {
	offset, err := l.checkpoint.Offset(source)
	if err != nil {
		return err
	}

	events, newOffset, err := l.reader.ReadBatch(source, offset, l.batchSize)
	if err != nil {
		return err
	}
	if newOffset == offset {
		return nil
	}

	if err := l.processor.ProcessBatch(ctx, events); err != nil {
		return err
	}

	// Offsets advance only after the whole batch landed in both stores.
	return l.checkpoint.Commit(source, newOffset)
}
