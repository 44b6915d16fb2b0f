package prober

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/subwatch/internal/model"
)

const (
	DefaultConcurrency = 100
	DefaultTimeout     = 5 * time.Second
)

// Options configures a Prober.
type Options struct {
	Concurrency int
	Timeout     time.Duration
	// Suppressed failure kinds are logged at debug level instead of warn.
	Suppressed []model.FailureKind
}

// Prober runs status probes over a bounded pool of goroutines.
type Prober struct {
	fetcher     Fetcher
	concurrency int
	timeout     time.Duration
	suppressed  map[model.FailureKind]bool
	logger      *slog.Logger
}

// New creates a Prober. Zero options fall back to the defaults.
func New(fetcher Fetcher, opts Options, logger *slog.Logger) *Prober {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	suppressed := make(map[model.FailureKind]bool, len(opts.Suppressed))
	for _, kind := range opts.Suppressed {
		suppressed[kind] = true
	}

	return &Prober{
		fetcher:     fetcher,
		concurrency: concurrency,
		timeout:     timeout,
		suppressed:  suppressed,
		logger:      logger,
	}
}

// Probe checks every target and streams outcomes in completion order.
// The channel is closed once all started probes have finished. When ctx is
// cancelled no further probes are started.
func (p *Prober) Probe(ctx context.Context, targets []model.Target) <-chan model.Outcome {
	out := make(chan model.Outcome, p.concurrency)

	go func() {
		defer close(out)

		var g errgroup.Group
		g.SetLimit(p.concurrency)

		for _, target := range targets {
			if ctx.Err() != nil {
				p.logger.Warn("Probe pass cancelled",
					slog.String("next_target", target.URL()))
				break
			}
			g.Go(func() error {
				out <- p.probe(ctx, target)
				return nil
			})
		}

		_ = g.Wait()
	}()

	return out
}

func (p *Prober) probe(ctx context.Context, target model.Target) (outcome model.Outcome) {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	outcome = model.Outcome{Target: target, Status: model.Unknown}

	defer func() {
		if r := recover(); r != nil {
			outcome.Failure = model.FailureOther
			outcome.Err = fmt.Errorf("probe panicked: %v", r)
			outcome.Duration = time.Since(start)
			p.logger.Error("Probe panicked",
				slog.String("target", target.URL()),
				slog.Any("panic", r))
		}
	}()

	code, err := p.fetcher.Fetch(probeCtx, target.URL())
	outcome.Duration = time.Since(start)

	if err != nil {
		outcome.Err = err
		if ctx.Err() != nil {
			outcome.Failure = model.FailureCancelled
			p.logger.Debug("Probe cancelled",
				slog.String("target", target.URL()),
				slog.Any("err", err))
			return outcome
		}
		outcome.Failure = Classify(err)
		p.logFailure(target, outcome.Failure, err)
		return outcome
	}

	outcome.Status = model.Code(code)
	p.logger.Debug("Probe completed",
		slog.String("target", target.URL()),
		slog.Int("status", code),
		slog.Duration("duration", outcome.Duration))
	return outcome
}

func (p *Prober) logFailure(target model.Target, kind model.FailureKind, err error) {
	level := slog.LevelWarn
	if p.suppressed[kind] {
		level = slog.LevelDebug
	}
	p.logger.Log(context.Background(), level, "Probe failed",
		slog.String("target", target.URL()),
		slog.String("failure", string(kind)),
		slog.Any("err", err))
}
