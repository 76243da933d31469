// Package metrics exposes Prometheus collectors for document ingestion.
//
// Metrics:
//   - estufa_documents_total: submissions by outcome (accepted or error kind)
//   - estufa_pipeline_stage_seconds: time spent reaching each pipeline state
//   - estufa_schema_reloads_total: schema hot reloads by result
//   - estufa_schema_available: 1 while a reference schema is loaded
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/02loveslollipop/estufa-iot/services/api/validation"
)

const namespace = "estufa"

// OutcomeAccepted labels documents that were validated and stored.
const OutcomeAccepted = "accepted"

// Collector owns a private registry and the ingestion collectors.
type Collector struct {
	registry *prometheus.Registry

	documentsTotal  *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	reloadsTotal    *prometheus.CounterVec
	schemaAvailable prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		documentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_total",
				Help:      "Submitted documents by outcome",
			},
			[]string{"outcome"},
		),

		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_stage_seconds",
				Help:      "Time spent reaching each validation state",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8), // 100us to ~1.6s
			},
			[]string{"stage"},
		),

		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schema_reloads_total",
				Help:      "Schema hot reloads by result",
			},
			[]string{"result"},
		),

		schemaAvailable: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "schema_available",
				Help:      "1 while a reference schema is loaded",
			},
		),
	}

	c.registry.MustRegister(
		c.documentsTotal,
		c.stageDuration,
		c.reloadsTotal,
		c.schemaAvailable,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the underlying registry (for tests).
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveOutcome counts one submission; err nil means accepted.
func (c *Collector) ObserveOutcome(err error) {
	if c == nil {
		return
	}
	c.documentsTotal.WithLabelValues(OutcomeLabel(err)).Inc()
}

// ObserveTransition records the duration of a pipeline step.
func (c *Collector) ObserveTransition(tr validation.Transition) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(tr.To.String()).Observe(tr.Duration.Seconds())
}

// ObserveReload counts a schema reload attempt and updates availability.
func (c *Collector) ObserveReload(err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.reloadsTotal.WithLabelValues("failure").Inc()
		return
	}
	c.reloadsTotal.WithLabelValues("success").Inc()
	c.schemaAvailable.Set(1)
}

// SetSchemaAvailable records whether a schema is loaded.
func (c *Collector) SetSchemaAvailable(ok bool) {
	if c == nil {
		return
	}
	if ok {
		c.schemaAvailable.Set(1)
	} else {
		c.schemaAvailable.Set(0)
	}
}

// Handler returns the Prometheus exposition handler for this registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// OutcomeLabel maps an ingest error to its outcome label.
func OutcomeLabel(err error) string {
	if err == nil {
		return OutcomeAccepted
	}
	if kind := validation.KindOf(err); kind != "" {
		return string(kind)
	}
	return "INTERNAL_ERROR"
}
