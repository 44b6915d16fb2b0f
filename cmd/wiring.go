package main

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/angeloszaimis/subwatch/config"
	"github.com/angeloszaimis/subwatch/internal/circuitbreaker"
	"github.com/angeloszaimis/subwatch/internal/notify"
	"github.com/angeloszaimis/subwatch/internal/state"
	"github.com/angeloszaimis/subwatch/internal/state/jsonstore"
	"github.com/angeloszaimis/subwatch/internal/state/sqlitestore"
)

func buildStore(ctx context.Context, cfg *config.Config) (state.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendJSON:
		return jsonstore.New(cfg.Files.Result, cfg.Files.History), nil
	case config.BackendSQLite:
		store, err := sqlitestore.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func buildTransport(cfg *config.Config, runID string, log *slog.Logger) (notify.Transport, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Alert.Transport {
	case config.TransportLog:
		return notify.NewLogTransport(log), noop, nil
	case config.TransportTelegram:
		t := notify.NewTelegram(cfg.Alert.Telegram.APIURL, cfg.Alert.Telegram.Token,
			cfg.Alert.Telegram.ChatID, cfg.Alert.Telegram.Timeout)
		if err := t.Validate(); err != nil {
			return nil, nil, err
		}
		return t, noop, nil
	case config.TransportKafka:
		t := notify.NewKafka(cfg.Alert.Kafka.Brokers, cfg.Alert.Kafka.Topic, runID)
		return t, t.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown alert transport %q", cfg.Alert.Transport)
	}
}

func buildBatcher(cfg *config.Config, transport notify.Transport, events notify.EventSink, log *slog.Logger) *notify.Batcher {
	return notify.NewBatcher(transport, notify.Options{
		BatchSize: cfg.Alert.BatchSize,
		Limiter:   rate.NewLimiter(rate.Limit(cfg.Alert.Rate), cfg.Alert.Burst),
		Breaker:   circuitbreaker.New(cfg.Alert.Breaker.Threshold, cfg.Alert.Breaker.ResetTimeout),
		Events:    events,
	}, log)
}
