// Package state defines the durable stores the monitor diffs against: the
// result store (last observed 200 per host) and the history store (the
// distinct-in-sequence status log per host).
//
// Implementations serialize every mutation of a given store so concurrent
// callers cannot lose each other's updates.
package state

import (
	"context"

	"github.com/angeloszaimis/subwatch/internal/model"
)

// History maps a store key to its distinct-in-sequence status log.
type History map[string][]model.Status

// Results maps a store key to the status last recorded for it as reachable.
type Results map[string]int

// Store is the durable state the monitor reads at run start and updates per
// classified outcome.
type Store interface {
	LoadHistory(ctx context.Context) (History, error)
	LoadResults(ctx context.Context) (Results, error)
	// AppendHistory appends status to key's history unless it already equals
	// the last recorded status.
	AppendHistory(ctx context.Context, key string, status model.Status) error
	SetResult(ctx context.Context, key string, code int) error
	Close() error
}

// Append returns history with status appended, or history unchanged when its
// last element already equals status. It reports whether it appended.
func Append(history []model.Status, status model.Status) ([]model.Status, bool) {
	if last, ok := model.Last(history); ok && last == status {
		return history, false
	}
	return append(history, status), true
}
