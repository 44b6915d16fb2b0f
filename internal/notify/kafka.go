package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer the transport uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaTransport publishes each batch as one record keyed by the run id.
type KafkaTransport struct {
	writer messageWriter
	key    []byte
}

// NewKafka creates a transport writing to topic on brokers.
func NewKafka(brokers []string, topic, runID string) *KafkaTransport {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newKafkaTransport(w, runID)
}

func newKafkaTransport(w messageWriter, runID string) *KafkaTransport {
	return &KafkaTransport{writer: w, key: []byte(runID)}
}

func (t *KafkaTransport) Name() string {
	return "kafka"
}

func (t *KafkaTransport) Send(ctx context.Context, text string) error {
	if text == "" {
		return ErrEmptyMessage
	}

	err := t.writer.WriteMessages(ctx, kafka.Message{
		Key:   t.key,
		Value: []byte(text),
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (t *KafkaTransport) Close() error {
	return t.writer.Close()
}
