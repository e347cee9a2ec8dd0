// Package metrics exposes history log activity as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "loom"

// Metrics holds the collectors fed by domain.LogHooks.
type Metrics struct {
	registry *prometheus.Registry

	events       *prometheus.CounterVec
	steps        *prometheus.CounterVec
	diffDuration prometheus.Histogram
	undoSize     prometheus.Gauge
	redoSize     prometheus.Gauge
}

// New creates collectors on a private registry, together with the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "events_total",
			Help:      "History log events by type",
		}, []string{"type"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "steps_applied_total",
			Help:      "Undo and redo steps applied",
		}, []string{"direction"}),
		diffDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "diff_duration_seconds",
			Help:      "Time over which the changes of a saved entry accumulated",
			Buckets:   []float64{0, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		undoSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "undo_entries",
			Help:      "Entries in the undo history",
		}),
		redoSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "redo_entries",
			Help:      "Entries in the redo history",
		}),
	}
	m.registry.MustRegister(
		m.events, m.steps, m.diffDuration, m.undoSize, m.redoSize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns log hooks recording into the collectors.
func (m *Metrics) Hooks() domain.LogHooks {
	return domain.LogHooks{
		OnSave: func(e *domain.LogEvent) {
			m.record(e)
			if e.Type == domain.EventEntrySaved {
				m.diffDuration.Observe(e.DiffDuration.Seconds())
			}
		},
		OnApply: func(e *domain.LogEvent) {
			m.record(e)
			m.steps.WithLabelValues(string(e.Type)).Add(float64(e.Steps))
		},
		OnClear: m.record,
	}
}

func (m *Metrics) record(e *domain.LogEvent) {
	m.events.WithLabelValues(string(e.Type)).Inc()
	m.undoSize.Set(float64(e.UndoSize))
	m.redoSize.Set(float64(e.RedoSize))
}
