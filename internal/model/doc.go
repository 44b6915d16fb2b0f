// Package model defines the value types shared by the probe-and-diff
// pipeline: hosts, probe targets, statuses and probe outcomes.
package model
