package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angeloszaimis/subwatch/internal/model"
)

type EventType string

const (
	EventProbeCompleted EventType = "probe_completed"
	EventDecision       EventType = "decision"
	EventDelivery       EventType = "delivery"
	EventStoreError     EventType = "store_error"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Scheme    model.Scheme
	Status    model.Status
	Failure   model.FailureKind
	Duration  time.Duration
	Decision  string
	Delivery  string
	Messages  int
	Op        string
}

type Collector struct {
	eventCh  chan Event
	metrics  *Metrics
	logger   *slog.Logger
	cancel   context.CancelFunc
	finished chan struct{}
	once     sync.Once
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh:  make(chan Event, bufferSize),
		metrics:  NewMetrics(),
		logger:   logger,
		finished: make(chan struct{}),
	}
}

// Emit hands an event to the collector goroutine. It blocks while the
// buffer is full and returns immediately once the collector has stopped.
func (c *Collector) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case c.eventCh <- event:
	case <-c.finished:
	}
}

func (c *Collector) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)
}

// Stop processes any buffered events and waits for the collector to exit.
func (c *Collector) Stop() {
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
			<-c.finished
			return
		}
		close(c.finished)
	})
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Debug("Metrics collector started")
	defer c.logger.Debug("Metrics collector stopped")
	defer close(c.finished)

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
	case EventProbeCompleted:
		c.metrics.RecordProbe(event.Scheme, event.Status, event.Failure, event.Duration)

	case EventDecision:
		c.metrics.RecordDecision(event.Decision)

	case EventDelivery:
		c.metrics.RecordDelivery(event.Delivery, event.Messages)

	case EventStoreError:
		c.metrics.RecordStoreError(event.Op)

	default:
		c.logger.Warn("Unknown metric event", slog.String("type", string(event.Type)))
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

// Summary returns the run summary accumulated so far.
func (c *Collector) Summary() Summary {
	return c.metrics.Snapshot()
}

// Registry exposes the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.metrics.Registry()
}

// WriteTextfile stamps the run as finished and writes every metric to path
// in the Prometheus text format.
func (c *Collector) WriteTextfile(path string) error {
	c.metrics.MarkRunFinished(time.Now())
	return prometheus.WriteToTextfile(path, c.metrics.Registry())
}
