package model

import (
	"fmt"
	"time"
)

// Host is a scheme-stripped domain, the identity of a monitored site.
type Host string

// Scheme is the protocol a target is probed with.
type Scheme string

const (
	SchemeHTTP  Scheme = "http"
	SchemeHTTPS Scheme = "https"
)

// KeyMode selects which identity the stores are keyed by.
type KeyMode string

const (
	// KeyByHost shares one history between the http and https targets of a host.
	KeyByHost KeyMode = "host"
	// KeyByTarget keeps a separate history per probe target.
	KeyByTarget KeyMode = "target"
)

// Target is a scheme-qualified URL derived from a Host.
type Target struct {
	Host   Host
	Scheme Scheme
}

// NewTarget returns the probe target for host over scheme.
func NewTarget(host Host, scheme Scheme) Target {
	return Target{Host: host, Scheme: scheme}
}

// URL returns the fully-qualified probe URL.
func (t Target) URL() string {
	return fmt.Sprintf("%s://%s", t.Scheme, t.Host)
}

func (t Target) String() string {
	return t.URL()
}

// Key returns the store key for the target under mode.
func (t Target) Key(mode KeyMode) string {
	if mode == KeyByTarget {
		return t.URL()
	}
	return string(t.Host)
}

// FailureKind classifies why a probe produced no status.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureDNS        FailureKind = "dns"
	FailureConnection FailureKind = "connection"
	FailureTimeout    FailureKind = "timeout"
	FailureTLS        FailureKind = "tls"
	FailureOther      FailureKind = "other"
	// FailureCancelled marks a probe cut short by the run ending. It says
	// nothing about the target and is never recorded.
	FailureCancelled FailureKind = "cancelled"
)

// FailureKinds lists every failure kind a probe can report.
var FailureKinds = []FailureKind{
	FailureDNS,
	FailureConnection,
	FailureTimeout,
	FailureTLS,
	FailureOther,
}

// Outcome is the result of probing one target.
type Outcome struct {
	Target   Target
	Status   Status
	Failure  FailureKind
	Err      error
	Duration time.Duration
}

// Cancelled reports whether the probe was interrupted by the run stopping
// rather than answered or failed by the target.
func (o Outcome) Cancelled() bool {
	return o.Failure == FailureCancelled
}
