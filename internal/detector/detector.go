package detector

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/angeloszaimis/subwatch/internal/metrics"
	"github.com/angeloszaimis/subwatch/internal/model"
	"github.com/angeloszaimis/subwatch/internal/state"
)

// Mutator is the write side of the state store.
type Mutator interface {
	AppendHistory(ctx context.Context, key string, status model.Status) error
	SetResult(ctx context.Context, key string, code int) error
}

// Notifier accepts alert lines.
type Notifier interface {
	Enqueue(ctx context.Context, message string)
}

// EventSink receives metric events.
type EventSink interface {
	Emit(event metrics.Event)
}

// Detector applies decisions for a run. It keeps the run's view of history,
// loaded once at start and updated in place, so later outcomes for the same
// key diff against what this run already recorded.
//
// A Detector is driven by a single consumer goroutine.
type Detector struct {
	store    Mutator
	notifier Notifier
	view     state.History
	keyMode  model.KeyMode
	events   EventSink
	logger   *slog.Logger
}

// New creates a Detector over the history loaded at run start. A nil view
// starts empty; events may be nil.
func New(store Mutator, notifier Notifier, view state.History, keyMode model.KeyMode, events EventSink, logger *slog.Logger) *Detector {
	if view == nil {
		view = state.History{}
	}
	if keyMode == "" {
		keyMode = model.KeyByHost
	}
	return &Detector{
		store:    store,
		notifier: notifier,
		view:     view,
		keyMode:  keyMode,
		events:   events,
		logger:   logger,
	}
}

// Process classifies outcome and applies the decision: history append,
// result update and alert messages. Store failures are logged and the
// run continues.
func (d *Detector) Process(ctx context.Context, outcome model.Outcome) Decision {
	// An outcome that reached the detector is applied in full, even once the
	// run is stopping.
	ctx = context.WithoutCancel(ctx)
	if outcome.Cancelled() {
		return Decision{Outcome: outcome}
	}

	key := outcome.Target.Key(d.keyMode)
	decision := Classify(outcome, d.view[key])

	d.emit(metrics.Event{Type: metrics.EventDecision, Decision: decision.Kind()})
	if decision.Noop() {
		return decision
	}

	d.view[key] = append(d.view[key], outcome.Status)
	if err := d.store.AppendHistory(ctx, key, outcome.Status); err != nil {
		d.logger.Error("Failed to append history",
			slog.String("key", key),
			slog.String("status", outcome.Status.String()),
			slog.Any("err", err))
		d.emit(metrics.Event{Type: metrics.EventStoreError, Op: "append_history"})
	}

	if decision.Changed() {
		d.logger.Info("Status changed",
			slog.String("target", outcome.Target.URL()),
			slog.String("from", decision.Previous.String()),
			slog.String("to", outcome.Status.String()))
	}

	if decision.Reachable {
		d.emit(metrics.Event{Type: metrics.EventDecision, Decision: metrics.DecisionReachable})
		if err := d.store.SetResult(ctx, key, http.StatusOK); err != nil {
			d.logger.Error("Failed to record result",
				slog.String("key", key),
				slog.Any("err", err))
			d.emit(metrics.Event{Type: metrics.EventStoreError, Op: "set_result"})
		}
	}

	for _, msg := range decision.Messages {
		d.notifier.Enqueue(ctx, msg)
	}

	return decision
}

// History returns the run's current view of key's history.
func (d *Detector) History(key string) []model.Status {
	return d.view[key]
}

func (d *Detector) emit(event metrics.Event) {
	if d.events == nil {
		return
	}
	d.events.Emit(event)
}
