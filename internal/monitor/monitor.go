package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/angeloszaimis/subwatch/internal/detector"
	"github.com/angeloszaimis/subwatch/internal/hostlist"
	"github.com/angeloszaimis/subwatch/internal/metrics"
	"github.com/angeloszaimis/subwatch/internal/model"
	"github.com/angeloszaimis/subwatch/internal/state"
)

// DefaultSchemes is the order targets are probed in.
var DefaultSchemes = []model.Scheme{model.SchemeHTTP, model.SchemeHTTPS}

// Prober streams one outcome per target.
type Prober interface {
	Probe(ctx context.Context, targets []model.Target) <-chan model.Outcome
}

// Notifier batches alert lines and flushes them on demand.
type Notifier interface {
	detector.Notifier
	Flush(ctx context.Context)
}

// Options configures a run.
type Options struct {
	HostsPath string
	Schemes   []model.Scheme
	KeyMode   model.KeyMode
}

// Monitor wires the run pipeline together.
type Monitor struct {
	prober   Prober
	store    state.Store
	notifier Notifier
	events   detector.EventSink
	opts     Options
	logger   *slog.Logger
}

// New creates a Monitor. events may be nil.
func New(p Prober, store state.Store, notifier Notifier, events detector.EventSink, opts Options, logger *slog.Logger) *Monitor {
	if len(opts.Schemes) == 0 {
		opts.Schemes = DefaultSchemes
	}
	if opts.KeyMode == "" {
		opts.KeyMode = model.KeyByHost
	}
	return &Monitor{
		prober:   p,
		store:    store,
		notifier: notifier,
		events:   events,
		opts:     opts,
		logger:   logger,
	}
}

// Run performs one full pass over every scheme. Only an unusable host list
// is fatal; per-host failures are recorded and the run continues.
func (m *Monitor) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	report := newReport()

	hosts, err := hostlist.Load(m.opts.HostsPath)
	if err != nil {
		return report, fmt.Errorf("load hosts: %w", err)
	}
	report.Hosts = len(hosts)

	history := m.loadHistory(ctx)
	report.KnownReachable = m.countResults(ctx)

	m.logger.Info("Run started",
		slog.Int("hosts", len(hosts)),
		slog.Int("tracked", len(history)),
		slog.Int("known_reachable", report.KnownReachable),
		slog.Any("schemes", m.opts.Schemes))

	d := detector.New(m.store, m.notifier, history, m.opts.KeyMode, m.events, m.logger)

	for _, scheme := range m.opts.Schemes {
		if ctx.Err() != nil {
			m.logger.Warn("Run cancelled before scheme pass", slog.String("scheme", string(scheme)))
			break
		}
		m.pass(ctx, d, scheme, hostlist.Targets(hosts, scheme), &report)
	}

	report.Duration = time.Since(start)
	m.logger.Info("Run finished", report.attrs()...)
	return report, ctx.Err()
}

func (m *Monitor) pass(ctx context.Context, d *detector.Detector, scheme model.Scheme, targets []model.Target, report *Report) {
	passStart := time.Now()
	m.logger.Info("Scheme pass started",
		slog.String("scheme", string(scheme)),
		slog.Int("targets", len(targets)))

	for outcome := range m.prober.Probe(ctx, targets) {
		if outcome.Cancelled() {
			report.Cancelled++
			continue
		}

		m.emit(metrics.Event{
			Type:     metrics.EventProbeCompleted,
			Scheme:   scheme,
			Status:   outcome.Status,
			Failure:  outcome.Failure,
			Duration: outcome.Duration,
		})

		decision := d.Process(ctx, outcome)
		report.record(scheme, outcome, decision)
	}

	// A cancelled run still flushes what it found.
	m.notifier.Flush(context.WithoutCancel(ctx))

	m.logger.Info("Scheme pass finished",
		slog.String("scheme", string(scheme)),
		slog.Int("outcomes", report.Probes[scheme]),
		slog.Int("cancelled", report.Cancelled),
		slog.Duration("duration", time.Since(passStart)))
}

func (m *Monitor) loadHistory(ctx context.Context) state.History {
	history, err := m.store.LoadHistory(ctx)
	if err != nil {
		m.logger.Error("Failed to load history, starting empty", slog.Any("err", err))
		m.emit(metrics.Event{Type: metrics.EventStoreError, Op: "load_history"})
		return state.History{}
	}
	return history
}

func (m *Monitor) countResults(ctx context.Context) int {
	results, err := m.store.LoadResults(ctx)
	if err != nil {
		m.logger.Error("Failed to load results, starting empty", slog.Any("err", err))
		m.emit(metrics.Event{Type: metrics.EventStoreError, Op: "load_results"})
		return 0
	}
	return len(results)
}

func (m *Monitor) emit(event metrics.Event) {
	if m.events == nil {
		return
	}
	m.events.Emit(event)
}
