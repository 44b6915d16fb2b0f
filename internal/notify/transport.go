package notify

import (
	"context"
	"errors"
	"log/slog"
)

// ErrEmptyMessage is returned by transports asked to send nothing.
var ErrEmptyMessage = errors.New("empty message")

// Transport delivers one batch of alert text.
type Transport interface {
	Send(ctx context.Context, text string) error
	Name() string
}

// LogTransport writes batches to a logger instead of an external service.
type LogTransport struct {
	logger *slog.Logger
}

func NewLogTransport(logger *slog.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Name() string {
	return "log"
}

func (t *LogTransport) Send(_ context.Context, text string) error {
	if text == "" {
		return ErrEmptyMessage
	}
	t.logger.Info("Alert batch", slog.String("text", text))
	return nil
}
