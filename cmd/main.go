package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/angeloszaimis/subwatch/config"
	"github.com/angeloszaimis/subwatch/internal/metrics"
	"github.com/angeloszaimis/subwatch/internal/monitor"
	"github.com/angeloszaimis/subwatch/internal/prober"
	"github.com/angeloszaimis/subwatch/pkg/logger"
)

const eventBufferSize = 256

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	runID := uuid.NewString()
	log := logger.New(os.Stderr, cfg.Logging.Level, cfg.Logging.AddSource, cfg.Environment).
		With(slog.String("run_id", runID))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, runID, log); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Run interrupted")
		} else {
			log.Error("Run failed", slog.Any("err", err))
		}
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, runID string, log *slog.Logger) error {
	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Failed to close store", slog.Any("err", err))
		}
	}()

	transport, closeTransport, err := buildTransport(cfg, runID, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeTransport(); err != nil {
			log.Error("Failed to close alert transport", slog.Any("err", err))
		}
	}()

	collector := metrics.NewCollector(eventBufferSize, log)
	collector.Start(context.WithoutCancel(ctx))

	batcher := buildBatcher(cfg, transport, collector, log)

	fetcher := prober.NewHTTPFetcher(prober.FetcherOptions{
		FollowRedirects:    cfg.Probe.FollowRedirects,
		MaxRedirects:       cfg.Probe.MaxRedirects,
		InsecureSkipVerify: cfg.Probe.InsecureSkipVerify,
		UserAgent:          cfg.Probe.UserAgent,
	})
	p := prober.New(fetcher, prober.Options{
		Concurrency: cfg.Probe.Concurrency,
		Timeout:     cfg.Probe.Timeout,
		Suppressed:  cfg.Probe.FailureKinds(),
	}, log)

	m := monitor.New(p, store, batcher, collector, monitor.Options{
		HostsPath: cfg.Files.Hosts,
		Schemes:   cfg.Probe.SchemeList(),
		KeyMode:   cfg.Probe.KeyMode(),
	}, log)

	_, runErr := m.Run(ctx)

	collector.Stop()
	summary := collector.Summary()
	log.Info("Run metrics",
		slog.Int("probes", summary.TotalProbes()),
		slog.Any("status_codes", summary.StatusCodes),
		slog.Any("failures", summary.Failures),
		slog.Any("deliveries", summary.Deliveries),
		slog.Int("messages_sent", summary.MessagesSent),
		slog.Duration("avg_probe_time", summary.AvgProbeTime))

	if cfg.Metrics.Textfile != "" {
		if err := collector.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Error("Failed to write metrics textfile",
				slog.String("path", cfg.Metrics.Textfile),
				slog.Any("err", err))
		}
	}

	return runErr
}
