package prober_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/subwatch/internal/model"
	"github.com/angeloszaimis/subwatch/internal/prober"
)

// fakeFetcher answers from a per-URL table and tracks concurrency.
type fakeFetcher struct {
	mutex    sync.Mutex
	codes    map[string]int
	errs     map[string]error
	delays   map[string]time.Duration
	panics   map[string]bool
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		codes:  map[string]int{},
		errs:   map[string]error{},
		delays: map[string]time.Duration{},
		panics: map[string]bool{},
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (int, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	f.mutex.Lock()
	code, err, delay, boom := f.codes[url], f.errs[url], f.delays[url], f.panics[url]
	f.mutex.Unlock()

	if boom {
		panic("fetcher exploded")
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if err != nil {
		return 0, err
	}
	return code, nil
}

func collect(ch <-chan model.Outcome) []model.Outcome {
	var outcomes []model.Outcome
	for o := range ch {
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func byURL(outcomes []model.Outcome) map[string]model.Outcome {
	m := make(map[string]model.Outcome, len(outcomes))
	for _, o := range outcomes {
		m[o.Target.URL()] = o
	}
	return m
}

var _ = Describe("Prober", func() {
	var (
		fetcher *fakeFetcher
		log     *slog.Logger
		ctx     context.Context
	)

	BeforeEach(func() {
		fetcher = newFakeFetcher()
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
		ctx = context.Background()
	})

	It("should yield one outcome per target", func() {
		fetcher.codes["http://a.example.com"] = 200
		fetcher.codes["http://b.example.com"] = 404

		p := prober.New(fetcher, prober.Options{Concurrency: 4}, log)
		outcomes := byURL(collect(p.Probe(ctx, []model.Target{
			model.NewTarget("a.example.com", model.SchemeHTTP),
			model.NewTarget("b.example.com", model.SchemeHTTP),
		})))

		Expect(outcomes).To(HaveLen(2))
		Expect(outcomes["http://a.example.com"].Status).To(Equal(model.Code(200)))
		Expect(outcomes["http://b.example.com"].Status).To(Equal(model.Code(404)))
	})

	It("should convert fetch errors into an unknown status", func() {
		fetcher.errs["https://down.example.com"] = errors.New("connection reset")

		p := prober.New(fetcher, prober.Options{}, log)
		outcomes := collect(p.Probe(ctx, []model.Target{
			model.NewTarget("down.example.com", model.SchemeHTTPS),
		}))

		Expect(outcomes).To(HaveLen(1))
		Expect(outcomes[0].Status.Known()).To(BeFalse())
		Expect(outcomes[0].Failure).To(Equal(model.FailureOther))
		Expect(outcomes[0].Err).To(HaveOccurred())
	})

	It("should apply the per-probe timeout", func() {
		fetcher.delays["http://slow.example.com"] = time.Second

		p := prober.New(fetcher, prober.Options{Timeout: 50 * time.Millisecond}, log)
		outcomes := collect(p.Probe(ctx, []model.Target{
			model.NewTarget("slow.example.com", model.SchemeHTTP),
		}))

		Expect(outcomes).To(HaveLen(1))
		Expect(outcomes[0].Failure).To(Equal(model.FailureTimeout))
	})

	It("should recover a panicking fetcher", func() {
		fetcher.panics["http://boom.example.com"] = true

		p := prober.New(fetcher, prober.Options{}, log)
		outcomes := collect(p.Probe(ctx, []model.Target{
			model.NewTarget("boom.example.com", model.SchemeHTTP),
		}))

		Expect(outcomes).To(HaveLen(1))
		Expect(outcomes[0].Status).To(Equal(model.Unknown))
		Expect(outcomes[0].Failure).To(Equal(model.FailureOther))
	})

	It("should never exceed the concurrency limit", func() {
		var targets []model.Target
		for _, h := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
			host := model.Host(h + ".example.com")
			targets = append(targets, model.NewTarget(host, model.SchemeHTTP))
			fetcher.codes["http://"+string(host)] = 200
			fetcher.delays["http://"+string(host)] = 20 * time.Millisecond
		}

		p := prober.New(fetcher, prober.Options{Concurrency: 3}, log)
		outcomes := collect(p.Probe(ctx, targets))

		Expect(outcomes).To(HaveLen(10))
		Expect(fetcher.maxSeen.Load()).To(BeNumerically("<=", 3))
		Expect(fetcher.maxSeen.Load()).To(BeNumerically(">", 1))
	})

	It("should not let a hanging host delay the others", func() {
		fetcher.delays["http://hang.example.com"] = time.Second
		fetcher.codes["http://fast.example.com"] = 200

		p := prober.New(fetcher, prober.Options{Concurrency: 2, Timeout: 500 * time.Millisecond}, log)
		ch := p.Probe(ctx, []model.Target{
			model.NewTarget("hang.example.com", model.SchemeHTTP),
			model.NewTarget("fast.example.com", model.SchemeHTTP),
		})

		var first model.Outcome
		Eventually(ch, 200*time.Millisecond).Should(Receive(&first))
		Expect(first.Target.URL()).To(Equal("http://fast.example.com"))

		rest := collect(ch)
		Expect(rest).To(HaveLen(1))
		Expect(rest[0].Failure).To(Equal(model.FailureTimeout))
	})

	It("should stop starting probes once the context is cancelled", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		p := prober.New(fetcher, prober.Options{}, log)
		outcomes := collect(p.Probe(cancelled, []model.Target{
			model.NewTarget("a.example.com", model.SchemeHTTP),
		}))
		Expect(outcomes).To(BeEmpty())
	})

	It("should mark probes interrupted by the run stopping as cancelled", func() {
		fetcher.delays["http://slow.example.com"] = time.Second

		runCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		p := prober.New(fetcher, prober.Options{Timeout: 5 * time.Second}, log)
		outcomes := collect(p.Probe(runCtx, []model.Target{
			model.NewTarget("slow.example.com", model.SchemeHTTP),
		}))

		Expect(outcomes).To(HaveLen(1))
		Expect(outcomes[0].Cancelled()).To(BeTrue())
		Expect(outcomes[0].Status.Known()).To(BeFalse())
	})

	It("should keep answers that arrived before the run stopped", func() {
		fetcher.codes["http://fast.example.com"] = 204

		runCtx, cancel := context.WithCancel(ctx)
		p := prober.New(fetcher, prober.Options{}, log)
		ch := p.Probe(runCtx, []model.Target{model.NewTarget("fast.example.com", model.SchemeHTTP)})

		var first model.Outcome
		Eventually(ch).Should(Receive(&first))
		cancel()

		Expect(first.Cancelled()).To(BeFalse())
		Expect(first.Status).To(Equal(model.Code(204)))
	})
})
