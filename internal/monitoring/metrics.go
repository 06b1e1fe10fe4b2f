package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for pipeline runs and the API.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec   // labels: pollutant, outcome={complete,partial}
	SectionFailures    *prometheus.CounterVec   // labels: section, kind
	RunDuration        prometheus.Histogram     // seconds
	MunicipalitiesSeen prometheus.Gauge         // rows scored by the last run
	HTTPRequests       *prometheus.CounterVec   // labels: route, code
	HTTPDuration       *prometheus.HistogramVec // labels: route
}

// NewMetrics creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdg11",
			Name:      "runs_total",
			Help:      "Pipeline runs by pollutant and outcome.",
		}, []string{"pollutant", "outcome"}),
		SectionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdg11",
			Name:      "section_failures_total",
			Help:      "Dashboard sections that failed, by section and error kind.",
		}, []string{"section", "kind"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sdg11",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete pipeline run.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		MunicipalitiesSeen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sdg11",
			Name:      "municipalities_scored",
			Help:      "Municipalities with a non-null SDG 11 score in the last run.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdg11",
			Name:      "http_requests_total",
			Help:      "API requests by route pattern and status code.",
		}, []string{"route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sdg11",
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.SectionFailures,
		m.RunDuration,
		m.MunicipalitiesSeen,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// ObserveRun records one finished run.
func (m *Metrics) ObserveRun(o RunOutcome) {
	outcome := "complete"
	if o.Failed() {
		outcome = "partial"
	}
	m.RunsTotal.WithLabelValues(o.Pollutant, outcome).Inc()
	m.RunDuration.Observe(o.Duration.Seconds())
	m.MunicipalitiesSeen.Set(float64(o.Scored))
	for _, s := range o.Sections {
		if s.Failed() {
			kind := s.ErrorKind
			if kind == "" {
				kind = "error"
			}
			m.SectionFailures.WithLabelValues(s.Name, kind).Inc()
		}
	}
}
