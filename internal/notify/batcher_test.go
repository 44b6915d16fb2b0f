package notify_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/time/rate"

	"github.com/angeloszaimis/subwatch/internal/circuitbreaker"
	"github.com/angeloszaimis/subwatch/internal/metrics"
	"github.com/angeloszaimis/subwatch/internal/notify"
)

type recordingTransport struct {
	mutex   sync.Mutex
	batches []string
	err     error
}

func (t *recordingTransport) Name() string { return "recording" }

func (t *recordingTransport) Send(_ context.Context, text string) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.batches = append(t.batches, text)
	return t.err
}

func (t *recordingTransport) sent() []string {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return append([]string(nil), t.batches...)
}

type deliverySink struct {
	mutex    sync.Mutex
	outcomes map[string]int
}

func (s *deliverySink) Emit(event metrics.Event) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.outcomes == nil {
		s.outcomes = map[string]int{}
	}
	s.outcomes[event.Delivery] += event.Messages
}

func (s *deliverySink) get(outcome string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.outcomes[outcome]
}

func messages(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("[http://h%d.com] : [200]", i)
	}
	return out
}

var _ = Describe("Batcher", func() {
	var (
		transport *recordingTransport
		sink      *deliverySink
		log       *slog.Logger
		ctx       context.Context
	)

	BeforeEach(func() {
		transport = &recordingTransport{}
		sink = &deliverySink{}
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
		ctx = context.Background()
	})

	It("should send exactly one batch of 15 before the 16th message", func() {
		b := notify.NewBatcher(transport, notify.Options{Events: sink}, log)
		msgs := messages(16)

		for _, m := range msgs[:15] {
			b.Enqueue(ctx, m)
		}
		Expect(transport.sent()).To(HaveLen(1))
		Expect(transport.sent()[0]).To(Equal(strings.Join(msgs[:15], "\n")))
		Expect(b.Pending()).To(Equal(0))

		b.Enqueue(ctx, msgs[15])
		Expect(transport.sent()).To(HaveLen(1))
		Expect(b.Pending()).To(Equal(1))
	})

	It("should send the remainder on flush", func() {
		b := notify.NewBatcher(transport, notify.Options{Events: sink}, log)
		msgs := messages(14)

		for _, m := range msgs {
			b.Enqueue(ctx, m)
		}
		Expect(transport.sent()).To(BeEmpty())

		b.Flush(ctx)
		Expect(transport.sent()).To(Equal([]string{strings.Join(msgs, "\n")}))
		Expect(sink.get(metrics.DeliverySent)).To(Equal(14))
	})

	It("should not call the transport when flushing an empty buffer", func() {
		b := notify.NewBatcher(transport, notify.Options{}, log)
		b.Flush(ctx)
		Expect(transport.sent()).To(BeEmpty())
	})

	It("should honour a custom batch size", func() {
		b := notify.NewBatcher(transport, notify.Options{BatchSize: 2}, log)
		for _, m := range messages(5) {
			b.Enqueue(ctx, m)
		}
		b.Flush(ctx)
		Expect(transport.sent()).To(HaveLen(3))
	})

	It("should drop a failed batch and keep going", func() {
		transport.err = errors.New("bad gateway")
		b := notify.NewBatcher(transport, notify.Options{BatchSize: 1, Events: sink}, log)

		b.Enqueue(ctx, "one")
		transport.mutex.Lock()
		transport.err = nil
		transport.mutex.Unlock()
		b.Enqueue(ctx, "two")

		Expect(transport.sent()).To(Equal([]string{"one", "two"}))
		Expect(b.Pending()).To(Equal(0))
		Expect(sink.get(metrics.DeliveryFailed)).To(Equal(1))
		Expect(sink.get(metrics.DeliverySent)).To(Equal(1))
	})

	It("should stop calling the transport once the breaker opens", func() {
		transport.err = errors.New("unreachable")
		breaker := circuitbreaker.New(2, time.Minute)
		b := notify.NewBatcher(transport, notify.Options{BatchSize: 1, Breaker: breaker, Events: sink}, log)

		for _, m := range messages(5) {
			b.Enqueue(ctx, m)
		}

		Expect(transport.sent()).To(HaveLen(2))
		Expect(breaker.State()).To(Equal(circuitbreaker.StateOpen))
		Expect(sink.get(metrics.DeliveryFailed)).To(Equal(2))
		Expect(sink.get(metrics.DeliveryDropped)).To(Equal(3))
	})

	It("should drop a batch when the context ends while rate limited", func() {
		limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
		b := notify.NewBatcher(transport, notify.Options{BatchSize: 1, Limiter: limiter, Events: sink}, log)

		b.Enqueue(ctx, "first")

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		b.Enqueue(cancelled, "second")

		Expect(transport.sent()).To(Equal([]string{"first"}))
		Expect(sink.get(metrics.DeliveryDropped)).To(Equal(1))
	})

	It("should not lose messages under concurrent enqueues", func() {
		b := notify.NewBatcher(transport, notify.Options{BatchSize: 7}, log)

		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				b.Enqueue(ctx, fmt.Sprintf("m%d", i))
			}(i)
		}
		wg.Wait()
		b.Flush(ctx)

		total := 0
		for _, batch := range transport.sent() {
			total += len(strings.Split(batch, "\n"))
		}
		Expect(total).To(Equal(100))
	})
})
