package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angeloszaimis/subwatch/internal/model"
)

const namespace = "subwatch"

// Delivery outcomes for alert batches.
const (
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
	DeliveryDropped = "dropped"
)

// Decision kinds reported by the change detector.
const (
	DecisionNoop      = "noop"
	DecisionFirstSeen = "first_seen"
	DecisionChanged   = "changed"
	DecisionReachable = "reachable"
)

type Metrics struct {
	registry *prometheus.Registry

	probes        *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
	decisions     *prometheus.CounterVec
	notifications *prometheus.CounterVec
	messages      prometheus.Counter
	storeErrors   *prometheus.CounterVec
	lastRun       prometheus.Gauge

	mutex   sync.RWMutex
	summary Summary
}

// Summary aggregates one run.
type Summary struct {
	Probes         map[model.Scheme]int      `json:"probes"`
	StatusCodes    map[int]int               `json:"status_codes"`
	Failures       map[model.FailureKind]int `json:"failures"`
	Decisions      map[string]int            `json:"decisions"`
	Deliveries     map[string]int            `json:"deliveries"`
	MessagesSent   int                       `json:"messages_sent"`
	StoreErrors    map[string]int            `json:"store_errors"`
	AvgProbeTime   time.Duration             `json:"avg_probe_time"`
	totalProbeTime time.Duration
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Probes completed, by scheme, status and failure kind.",
		}, []string{"scheme", "status", "failure"}),
		probeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Duration of status probes.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scheme"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Change detector decisions, by kind.",
		}, []string{"kind"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Alert batches, by delivery outcome.",
		}, []string{"outcome"}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Alert lines delivered inside successful batches.",
		}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Failed state store operations, by operation.",
		}, []string{"op"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		summary: newSummary(),
	}

	m.registry.MustRegister(
		m.probes,
		m.probeDuration,
		m.decisions,
		m.notifications,
		m.messages,
		m.storeErrors,
		m.lastRun,
	)

	return m
}

func newSummary() Summary {
	return Summary{
		Probes:      make(map[model.Scheme]int),
		StatusCodes: make(map[int]int),
		Failures:    make(map[model.FailureKind]int),
		Decisions:   make(map[string]int),
		Deliveries:  make(map[string]int),
		StoreErrors: make(map[string]int),
	}
}

// Registry exposes the Prometheus registry the metrics live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordProbe(scheme model.Scheme, status model.Status, failure model.FailureKind, duration time.Duration) {
	m.probes.WithLabelValues(string(scheme), status.String(), string(failure)).Inc()
	m.probeDuration.WithLabelValues(string(scheme)).Observe(duration.Seconds())

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.summary.Probes[scheme]++
	if code, ok := status.Value(); ok {
		m.summary.StatusCodes[code]++
	} else {
		m.summary.Failures[failure]++
	}
	m.summary.totalProbeTime += duration
}

func (m *Metrics) RecordDecision(kind string) {
	m.decisions.WithLabelValues(kind).Inc()

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.summary.Decisions[kind]++
}

func (m *Metrics) RecordDelivery(outcome string, messages int) {
	m.notifications.WithLabelValues(outcome).Inc()
	if outcome == DeliverySent {
		m.messages.Add(float64(messages))
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.summary.Deliveries[outcome]++
	if outcome == DeliverySent {
		m.summary.MessagesSent += messages
	}
}

func (m *Metrics) RecordStoreError(op string) {
	m.storeErrors.WithLabelValues(op).Inc()

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.summary.StoreErrors[op]++
}

// MarkRunFinished stamps the last-run gauge.
func (m *Metrics) MarkRunFinished(at time.Time) {
	m.lastRun.Set(float64(at.Unix()))
}

// Snapshot returns a copy of the run summary.
func (m *Metrics) Snapshot() Summary {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := newSummary()
	for k, v := range m.summary.Probes {
		snap.Probes[k] = v
	}
	for k, v := range m.summary.StatusCodes {
		snap.StatusCodes[k] = v
	}
	for k, v := range m.summary.Failures {
		snap.Failures[k] = v
	}
	for k, v := range m.summary.Decisions {
		snap.Decisions[k] = v
	}
	for k, v := range m.summary.Deliveries {
		snap.Deliveries[k] = v
	}
	for k, v := range m.summary.StoreErrors {
		snap.StoreErrors[k] = v
	}
	snap.MessagesSent = m.summary.MessagesSent

	total := 0
	for _, n := range m.summary.Probes {
		total += n
	}
	if total > 0 {
		snap.AvgProbeTime = m.summary.totalProbeTime / time.Duration(total)
	}

	return snap
}

// TotalProbes sums probes across schemes.
func (s Summary) TotalProbes() int {
	total := 0
	for _, n := range s.Probes {
		total += n
	}
	return total
}
