package detector

import (
	"fmt"

	"github.com/angeloszaimis/subwatch/internal/metrics"
	"github.com/angeloszaimis/subwatch/internal/model"
)

// Decision is the classification of one outcome against its history.
type Decision struct {
	Outcome     model.Outcome
	Previous    model.Status
	HasPrevious bool
	// Append is set when the status differs from the last recorded one.
	Append bool
	// Reachable is set when the appended status is exactly 200.
	Reachable bool
	Messages  []string
}

// Noop reports whether the outcome repeats the last recorded status.
func (d Decision) Noop() bool {
	return !d.Append
}

// Changed reports whether a previously recorded status was replaced.
func (d Decision) Changed() bool {
	return d.Append && d.HasPrevious
}

// Kind labels the decision for metrics.
func (d Decision) Kind() string {
	switch {
	case d.Noop():
		return metrics.DecisionNoop
	case d.Changed():
		return metrics.DecisionChanged
	default:
		return metrics.DecisionFirstSeen
	}
}

// Classify compares an outcome with the recorded history of its key.
// It is pure: the caller applies the decision.
func Classify(outcome model.Outcome, history []model.Status) Decision {
	last, hasLast := model.Last(history)
	d := Decision{
		Outcome:     outcome,
		Previous:    last,
		HasPrevious: hasLast,
	}

	if hasLast && last == outcome.Status {
		return d
	}

	d.Append = true
	if hasLast {
		d.Messages = append(d.Messages, ChangeMessage(outcome.Target, last, outcome.Status))
	}

	if outcome.Status.IsOK() {
		d.Reachable = true
		d.Messages = append(d.Messages, ReachableMessage(outcome.Target))
	}

	return d
}

// ChangeMessage formats a status transition alert.
func ChangeMessage(target model.Target, from, to model.Status) string {
	return fmt.Sprintf("[%s]: [%s] ---> [%s]", target.URL(), from, to)
}

// ReachableMessage formats the alert for a target answering 200.
func ReachableMessage(target model.Target) string {
	return fmt.Sprintf("[%s] : [200]", target.URL())
}
