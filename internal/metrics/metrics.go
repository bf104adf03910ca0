// Package metrics counts gate transitions for diagnosis.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Gate metrics
	GatesCreated    *prometheus.CounterVec
	GatesAutoloaded *prometheus.CounterVec
	GatesActivated  *prometheus.CounterVec
	LoadsDeferred   *prometheus.CounterVec
	GatesRolledBack prometheus.Counter
	GatesPending    prometheus.Gauge

	// Discovery metrics
	Skipped       *prometheus.CounterVec
	ElementErrors prometheus.Counter
	BatchSize     prometheus.Histogram

	// Consent metrics
	ConsentWrites *prometheus.CounterVec
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		GatesCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embed_consent_gates_created_total",
				Help: "Total number of gates built around embeds",
			},
			[]string{"provider", "mode"},
		),
		GatesAutoloaded: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embed_consent_gates_autoloaded_total",
				Help: "Gates released immediately because of a stored preference",
			},
			[]string{"provider"},
		),
		GatesActivated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embed_consent_gates_activated_total",
				Help: "Gates that released their network load after confirmation",
			},
			[]string{"provider"},
		),
		LoadsDeferred: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embed_consent_loads_deferred_total",
				Help: "Confirmed loads deferred by page lifecycle state",
			},
			[]string{"blocker"},
		),
		GatesRolledBack: f.NewCounter(
			prometheus.CounterOpts{
				Name: "embed_consent_gates_rolled_back_total",
				Help: "Active gates returned to gated on back/forward cache restore",
			},
		),
		GatesPending: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "embed_consent_gates_pending",
				Help: "Gates waiting for lifecycle conditions to allow loading",
			},
		),
		Skipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embed_consent_elements_skipped_total",
				Help: "Candidate elements left ungated",
			},
			[]string{"reason"},
		),
		ElementErrors: f.NewCounter(
			prometheus.CounterOpts{
				Name: "embed_consent_element_errors_total",
				Help: "Per-element processing faults",
			},
		),
		BatchSize: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "embed_consent_batch_size",
				Help:    "Candidates per processing pass",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
			},
		),
		ConsentWrites: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embed_consent_preference_writes_total",
				Help: "Writes of the always-allow preference",
			},
			[]string{"value", "result"},
		),
	}
}

// Registry exposes the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordCreated counts a new gate
func (m *Metrics) RecordCreated(provider, mode string) {
	if m == nil {
		return
	}
	m.GatesCreated.WithLabelValues(provider, mode).Inc()
}

// RecordAutoload counts a gate released by the stored preference
func (m *Metrics) RecordAutoload(provider string) {
	if m == nil {
		return
	}
	m.GatesAutoloaded.WithLabelValues(provider).Inc()
}

// RecordActivated counts a confirmed load
func (m *Metrics) RecordActivated(provider string) {
	if m == nil {
		return
	}
	m.GatesActivated.WithLabelValues(provider).Inc()
}

// RecordDeferred counts a load held back by blocker
func (m *Metrics) RecordDeferred(blocker string) {
	if m == nil {
		return
	}
	m.LoadsDeferred.WithLabelValues(blocker).Inc()
}

// RecordRollback counts a gate forced back to gated
func (m *Metrics) RecordRollback() {
	if m == nil {
		return
	}
	m.GatesRolledBack.Inc()
}

// SetPending sets the number of pending gates
func (m *Metrics) SetPending(count int) {
	if m == nil {
		return
	}
	m.GatesPending.Set(float64(count))
}

// RecordSkip counts a candidate left ungated
func (m *Metrics) RecordSkip(reason string) {
	if m == nil {
		return
	}
	m.Skipped.WithLabelValues(reason).Inc()
}

// RecordError counts a per-element fault
func (m *Metrics) RecordError() {
	if m == nil {
		return
	}
	m.ElementErrors.Inc()
}

// ObserveBatch records the size of one processing pass
func (m *Metrics) ObserveBatch(size int) {
	if m == nil {
		return
	}
	m.BatchSize.Observe(float64(size))
}

// RecordConsentWrite counts a preference write
func (m *Metrics) RecordConsentWrite(value, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.ConsentWrites.WithLabelValues(fmt.Sprint(value), result).Inc()
}

// WriteTextfile writes all metrics in the text exposition format, for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
