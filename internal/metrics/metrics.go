// Package metrics defines the Prometheus metrics of the assistant.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "medbuddy"

// Metrics holds every collector. A nil *Metrics records nothing, so
// components can take one unconditionally.
type Metrics struct {
	QueriesTotal       *prometheus.CounterVec
	QueryDuration      *prometheus.HistogramVec
	ModelCallsTotal    *prometheus.CounterVec
	EventsAppended     *prometheus.CounterVec
	RecordFailures     prometheus.Counter
	ConflictFindings   *prometheus.CounterVec
	AuditDroppedTotal  prometheus.Counter
	RetrievalFailures  prometheus.Counter
	DocumentsProcessed prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of queries handled, by how they were answered",
			},
			[]string{"source"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Duration of query handling",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		ModelCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_calls_total",
				Help:      "Total number of external model calls, by attempt and result",
			},
			[]string{"attempt", "result"},
		),
		EventsAppended: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_appended_total",
				Help:      "Total number of events recorded by the decision engine",
			},
			[]string{"type"},
		),
		RecordFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "record_failures_total",
				Help:      "Total number of answers that could not be recorded",
			},
		),
		ConflictFindings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conflict_findings_total",
				Help:      "Total number of conflict findings, by code",
			},
			[]string{"code"},
		),
		AuditDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_dropped_total",
				Help:      "Total number of audit records dropped because the queue was full",
			},
		),
		RetrievalFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retrieval_failures_total",
				Help:      "Total number of searches that could not read the event store",
			},
		),
		DocumentsProcessed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_processed_total",
				Help:      "Total number of uploaded documents summarised",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.QueriesTotal,
			m.QueryDuration,
			m.ModelCallsTotal,
			m.EventsAppended,
			m.RecordFailures,
			m.ConflictFindings,
			m.AuditDroppedTotal,
			m.RetrievalFailures,
			m.DocumentsProcessed,
		)
	}
	return m
}

// ObserveQuery counts one answered query.
func (m *Metrics) ObserveQuery(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(source).Inc()
	m.QueryDuration.WithLabelValues(source).Observe(d.Seconds())
}

// ModelCall counts one model attempt. result is "ok" or an error kind.
func (m *Metrics) ModelCall(attempt, result string) {
	if m == nil {
		return
	}
	m.ModelCallsTotal.WithLabelValues(attempt, result).Inc()
}

// Recorded counts one event appended by the engine.
func (m *Metrics) Recorded(eventType string) {
	if m == nil {
		return
	}
	m.EventsAppended.WithLabelValues(eventType).Inc()
}

// RecordFailed counts one failed append.
func (m *Metrics) RecordFailed() {
	if m == nil {
		return
	}
	m.RecordFailures.Inc()
}

// Finding counts one conflict finding.
func (m *Metrics) Finding(code string) {
	if m == nil {
		return
	}
	m.ConflictFindings.WithLabelValues(code).Inc()
}

// AuditDropped counts one dropped audit record.
func (m *Metrics) AuditDropped() {
	if m == nil {
		return
	}
	m.AuditDroppedTotal.Inc()
}

// RetrievalFailed counts one failed search.
func (m *Metrics) RetrievalFailed() {
	if m == nil {
		return
	}
	m.RetrievalFailures.Inc()
}

// DocumentProcessed counts one summarised document.
func (m *Metrics) DocumentProcessed() {
	if m == nil {
		return
	}
	m.DocumentsProcessed.Inc()
}
