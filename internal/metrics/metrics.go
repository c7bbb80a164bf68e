// Package metrics exposes the pipeline's Prometheus collectors.
//
// Collectors live on a private registry so tests and one-shot CLI runs can
// build independent instances. Every method is safe on a nil *Metrics, which
// is how callers opt out.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stage item outcomes.
const (
	OutcomeAdvanced    = "advanced"
	OutcomeSoftFailure = "soft_failure"
	OutcomeExhausted   = "exhausted"
	OutcomeReleased    = "released"
)

// Metrics bundles the registered collectors.
type Metrics struct {
	registry *prometheus.Registry

	stageItems    *prometheus.CounterVec
	stageBatch    *prometheus.HistogramVec
	jobRuns       *prometheus.CounterVec
	jobSkipped    *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	importRecords *prometheus.CounterVec
	queueItems    *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelqueue_stage_items_total",
				Help: "Items processed by a stage runner, by outcome.",
			},
			[]string{"stage", "outcome"},
		),
		stageBatch: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reelqueue_stage_batch_size",
				Help:    "Number of items claimed per stage batch.",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
			},
			[]string{"stage"},
		),
		jobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelqueue_job_runs_total",
				Help: "Scheduler job runs by result (ok/error).",
			},
			[]string{"job", "result"},
		),
		jobSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelqueue_job_skipped_total",
				Help: "Ticks skipped because the previous run was still executing.",
			},
			[]string{"job"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reelqueue_job_duration_seconds",
				Help:    "Scheduler job run duration.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
			},
			[]string{"job"},
		),
		importRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelqueue_import_records_total",
				Help: "Bulk import records by result (imported/existing/skipped).",
			},
			[]string{"result"},
		),
		queueItems: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "reelqueue_queue_items",
				Help: "Queue items per status.",
			},
			[]string{"status"},
		),
	}
	m.registry.MustRegister(
		m.stageItems, m.stageBatch,
		m.jobRuns, m.jobSkipped, m.jobDuration,
		m.importRecords, m.queueItems,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveBatch(stage string, claimed int) {
	if m == nil {
		return
	}
	m.stageBatch.WithLabelValues(norm(stage)).Observe(float64(claimed))
}

func (m *Metrics) IncStageItem(stage, outcome string) {
	if m == nil {
		return
	}
	m.stageItems.WithLabelValues(norm(stage), outcome).Inc()
}

// ObserveJob records one finished job run.
func (m *Metrics) ObserveJob(job string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.jobRuns.WithLabelValues(norm(job), result).Inc()
	m.jobDuration.WithLabelValues(norm(job)).Observe(d.Seconds())
}

func (m *Metrics) IncJobSkipped(job string) {
	if m == nil {
		return
	}
	m.jobSkipped.WithLabelValues(norm(job)).Inc()
}

func (m *Metrics) AddImportRecords(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.importRecords.WithLabelValues(norm(result)).Add(float64(n))
}

// SetQueueCounts replaces the per-status gauge values.
func (m *Metrics) SetQueueCounts(counts map[string]int) {
	if m == nil {
		return
	}
	m.queueItems.Reset()
	for status, n := range counts {
		m.queueItems.WithLabelValues(norm(status)).Set(float64(n))
	}
}
