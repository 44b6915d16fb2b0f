// Package hostlist reads the monitored host list and normalizes each entry
// into a bare, scheme-stripped host from which probe targets are derived.
package hostlist
