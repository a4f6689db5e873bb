package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventRequestAllowed      EventType = "request_allowed"
	EventRequestLimited      EventType = "request_limited"
	EventCallCompleted       EventType = "call_completed"
	EventCallRejected        EventType = "call_rejected"
	EventBackpressureChanged EventType = "backpressure_changed"
)

type Event struct {
	Type       EventType
	Timestamp  time.Time
	ClientKey  string
	Dependency string
	Duration   time.Duration
	Failed     bool
	Paused     bool
}

type Collector struct {
	eventCh chan Event
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan Event, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

// Emit sends an event without blocking. When the buffer is full the event
// is dropped; stats are advisory and must never stall the caller.
func (c *Collector) Emit(event Event) {
	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event Event) {
	switch event.Type {
	case EventRequestAllowed:
		c.metrics.RecordRequestAllowed()

	case EventRequestLimited:
		c.metrics.RecordRequestLimited(event.ClientKey)

	case EventCallCompleted:
		c.metrics.RecordCall(event.Dependency, event.Duration, event.Failed)

	case EventCallRejected:
		c.metrics.RecordRejection(event.Dependency)

	case EventBackpressureChanged:
		c.metrics.RecordBackpressureTransition(event.Paused)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
