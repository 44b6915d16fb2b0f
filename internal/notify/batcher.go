package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/angeloszaimis/subwatch/internal/circuitbreaker"
	"github.com/angeloszaimis/subwatch/internal/metrics"
)

const DefaultBatchSize = 15

// EventSink receives delivery metrics.
type EventSink interface {
	Emit(event metrics.Event)
}

// Options tunes a Batcher. Zero values select defaults; a nil Limiter or
// Breaker disables pacing or guarding.
type Options struct {
	BatchSize int
	Limiter   *rate.Limiter
	Breaker   *circuitbreaker.CircuitBreaker
	Events    EventSink
}

// Batcher buffers messages and sends them in newline-joined batches.
// It is safe for concurrent use. Batches are sent in the order they were
// filled.
type Batcher struct {
	transport Transport
	size      int
	limiter   *rate.Limiter
	breaker   *circuitbreaker.CircuitBreaker
	events    EventSink
	logger    *slog.Logger

	mutex  sync.Mutex
	buffer []string

	sendMutex sync.Mutex
}

func NewBatcher(transport Transport, opts Options, logger *slog.Logger) *Batcher {
	size := opts.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Batcher{
		transport: transport,
		size:      size,
		limiter:   opts.Limiter,
		breaker:   opts.Breaker,
		events:    opts.Events,
		logger:    logger,
		buffer:    make([]string, 0, size),
	}
}

// Enqueue appends message and sends the buffer once it holds a full batch.
func (b *Batcher) Enqueue(ctx context.Context, message string) {
	b.mutex.Lock()
	b.buffer = append(b.buffer, message)
	if len(b.buffer) < b.size {
		b.mutex.Unlock()
		return
	}
	b.sendLocked(ctx, b.take())
}

// Flush sends any buffered messages regardless of count.
func (b *Batcher) Flush(ctx context.Context) {
	b.mutex.Lock()
	batch := b.take()
	if batch == nil {
		b.mutex.Unlock()
		return
	}
	b.sendLocked(ctx, batch)
}

// sendLocked is called with mutex held and releases it once the send slot is
// taken, so batches leave in the order they were cut.
func (b *Batcher) sendLocked(ctx context.Context, batch []string) {
	b.sendMutex.Lock()
	b.mutex.Unlock()
	defer b.sendMutex.Unlock()
	b.send(ctx, batch)
}

// Pending returns the number of buffered messages.
func (b *Batcher) Pending() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.buffer)
}

// take must be called with mutex held.
func (b *Batcher) take() []string {
	if len(b.buffer) == 0 {
		return nil
	}
	batch := b.buffer
	b.buffer = make([]string, 0, b.size)
	return batch
}

func (b *Batcher) send(ctx context.Context, batch []string) {
	text := strings.Join(batch, "\n")
	log := b.logger.With(
		slog.String("transport", b.transport.Name()),
		slog.Int("messages", len(batch)))

	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			log.Warn("Alert batch dropped while waiting for rate limit", slog.Any("err", err))
			b.record(metrics.DeliveryDropped, len(batch))
			return
		}
	}

	err := b.guard(func() error {
		return b.transport.Send(ctx, text)
	})

	switch {
	case err == nil:
		log.Debug("Alert batch sent")
		b.record(metrics.DeliverySent, len(batch))
	case errors.Is(err, circuitbreaker.ErrOpen):
		log.Warn("Alert batch dropped, transport circuit open")
		b.record(metrics.DeliveryDropped, len(batch))
	default:
		log.Error("Alert batch failed", slog.Any("err", err))
		b.record(metrics.DeliveryFailed, len(batch))
	}
}

func (b *Batcher) guard(fn func() error) error {
	if b.breaker == nil {
		return fn()
	}
	return b.breaker.Execute(fn)
}

func (b *Batcher) record(outcome string, messages int) {
	if b.events == nil {
		return
	}
	b.events.Emit(metrics.Event{
		Type:     metrics.EventDelivery,
		Delivery: outcome,
		Messages: messages,
	})
}
