// Package prober fetches the HTTP status of many probe targets concurrently.
// It bounds the number of in-flight probes, gives every probe its own
// timeout and converts transport failures into an unknown status with a
// classified failure kind, so callers only ever see outcomes.
package prober
