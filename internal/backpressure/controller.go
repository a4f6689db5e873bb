package backpressure

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/stavrosp/flowguard/internal/metrics"
)

const bytesPerMB = 1e6

// OffsetStore reports how far processing has progressed in a telemetry
// file. The offsets themselves are owned externally by the checkpoint
// store.
type OffsetStore interface {
	Offset(path string) (int64, error)
}

// Config describes the telemetry sources to watch and the backlog size at
// which processing pauses.
type Config struct {
	ThresholdMB float64
	Sources     []string
}

func (c Config) Validate() error {
	// ThresholdMB deliberately has no Required rule: an explicit 0 means
	// pause on any backlog at all.
	return validation.ValidateStruct(&c,
		validation.Field(&c.ThresholdMB, validation.Min(0.0)),
		validation.Field(&c.Sources, validation.Required, validation.Length(1, 0)),
	)
}

// Status is the result of one backpressure check.
type Status struct {
	UnprocessedMB float64          `json:"unprocessed_mb"`
	Paused        bool             `json:"paused"`
	FileSizes     map[string]int64 `json:"file_sizes"`
}

// Controller computes the unprocessed telemetry volume across sources and
// decides whether the processing loop should pause. It keeps no durable
// state; every Check recomputes from the file sizes and offsets, so
// repeated checks with no intervening growth return identical results.
type Controller struct {
	cfg       Config
	offsets   OffsetStore
	collector *metrics.Collector
	logger    *slog.Logger

	mutex  sync.Mutex
	paused bool
	last   Status
}

func NewController(cfg Config, offsets OffsetStore, collector *metrics.Collector, logger *slog.Logger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Controller{
		cfg:       cfg,
		offsets:   offsets,
		collector: collector,
		logger:    logger,
	}, nil
}

// Check stats every source, sums the unprocessed bytes past each source's
// checkpoint offset, and flips the paused flag when the backlog exceeds
// the threshold. A missing source contributes 0 bytes; a failing stat or
// offset lookup is logged and that source contributes 0 rather than
// aborting the check.
func (c *Controller) Check() Status {
	sizes := make(map[string]int64, len(c.cfg.Sources))

	var unprocessed int64
	for _, source := range c.cfg.Sources {
		size := c.sourceSize(source)
		sizes[source] = size

		offset, err := c.offsets.Offset(source)
		if err != nil {
			c.logger.Warn("Failed to read checkpoint offset",
				slog.String("source", source),
				slog.String("error", err.Error()))
			continue
		}

		// Clamp: a truncated or rotated file can leave the offset past
		// the current size.
		if remaining := size - offset; remaining > 0 {
			unprocessed += remaining
		}
	}

	status := Status{
		UnprocessedMB: float64(unprocessed) / bytesPerMB,
		FileSizes:     sizes,
	}
	status.Paused = status.UnprocessedMB > c.cfg.ThresholdMB

	c.recordTransition(status)
	return status
}

func (c *Controller) sourceSize(path string) int64 {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0
	}
	if err != nil {
		c.logger.Warn("Failed to stat telemetry source",
			slog.String("source", path),
			slog.String("error", err.Error()))
		return 0
	}
	return info.Size()
}

func (c *Controller) recordTransition(status Status) {
	c.mutex.Lock()
	wasPaused := c.paused
	c.paused = status.Paused
	c.last = status
	c.mutex.Unlock()

	if status.Paused && !wasPaused {
		c.logger.Warn("Backpressure engaged, pausing processing",
			slog.Float64("unprocessed_mb", status.UnprocessedMB),
			slog.Float64("threshold_mb", c.cfg.ThresholdMB))
		c.emitTransition(status)
	} else if !status.Paused && wasPaused {
		c.logger.Info("Backlog drained, resuming processing",
			slog.Float64("unprocessed_mb", status.UnprocessedMB))
		c.emitTransition(status)
	}
}

func (c *Controller) emitTransition(status Status) {
	if c.collector == nil {
		return
	}

	c.collector.Emit(metrics.Event{
		Type:      metrics.EventBackpressureChanged,
		Timestamp: time.Now(),
		Paused:    status.Paused,
	})
}

// Paused reports the outcome of the most recent Check.
func (c *Controller) Paused() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.paused
}

// LastStatus returns the most recent Check result without re-statting the
// sources. Before the first Check it is the zero Status.
func (c *Controller) LastStatus() Status {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.last
}
