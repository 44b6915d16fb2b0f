package monitor

import (
	"log/slog"
	"time"

	"github.com/angeloszaimis/subwatch/internal/detector"
	"github.com/angeloszaimis/subwatch/internal/model"
)

// Report summarises one run.
type Report struct {
	Hosts          int
	KnownReachable int
	Probes         map[model.Scheme]int
	Failures       map[model.FailureKind]int
	Changes        int
	FirstSeen      int
	Reachable      int
	// Cancelled counts probes interrupted by the run stopping. They are
	// neither diffed nor recorded.
	Cancelled int
	Messages  int
	Duration  time.Duration
}

func newReport() Report {
	return Report{
		Probes:   make(map[model.Scheme]int),
		Failures: make(map[model.FailureKind]int),
	}
}

func (r *Report) record(scheme model.Scheme, outcome model.Outcome, decision detector.Decision) {
	r.Probes[scheme]++
	if outcome.Failure != model.FailureNone {
		r.Failures[outcome.Failure]++
	}
	if decision.Changed() {
		r.Changes++
	} else if decision.Append {
		r.FirstSeen++
	}
	if decision.Reachable {
		r.Reachable++
	}
	r.Messages += len(decision.Messages)
}

// TotalProbes returns the number of outcomes across all schemes.
func (r Report) TotalProbes() int {
	total := 0
	for _, n := range r.Probes {
		total += n
	}
	return total
}

func (r Report) attrs() []any {
	failures := 0
	for _, n := range r.Failures {
		failures += n
	}
	return []any{
		slog.Int("hosts", r.Hosts),
		slog.Int("probes", r.TotalProbes()),
		slog.Int("changes", r.Changes),
		slog.Int("first_seen", r.FirstSeen),
		slog.Int("reachable", r.Reachable),
		slog.Int("failures", failures),
		slog.Int("cancelled", r.Cancelled),
		slog.Int("messages", r.Messages),
		slog.Duration("duration", r.Duration),
	}
}
