package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instrumentation for the sentinel pipeline.
type Metrics struct {
	EventsTotal          prometheus.Counter
	CandidatesTotal      prometheus.Counter
	RejectedTotal        *prometheus.CounterVec
	DetectionsTotal      *prometheus.CounterVec
	RemediationsTotal    prometheus.Counter
	ActionFailuresTotal  prometheus.Counter
	OracleFailuresTotal  prometheus.Counter
	InflightRemediations prometheus.Gauge
}

// NewMetrics creates and registers the sentinel metrics on the default
// registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		EventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_events_total",
			Help: "Raw file-system events received from the watch source",
		}),
		CandidatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_candidates_admitted_total",
			Help: "Events admitted by the gate for scanning",
		}),
		RejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_rejected_total",
			Help: "Events rejected by the gate, by reason",
		}, []string{"reason"}),
		DetectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_detections_total",
			Help: "Signature hits, by threat label",
		}, []string{"label"}),
		RemediationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_remediations_total",
			Help: "Completed remediation workflow runs",
		}),
		ActionFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_action_failures_total",
			Help: "Remediation actions that recorded a failure result",
		}),
		OracleFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_oracle_failures_total",
			Help: "Advisory oracle calls that failed or returned unusable directives",
		}),
		InflightRemediations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_inflight_remediations",
			Help: "Remediation workflow runs currently executing",
		}),
	}

	prometheus.MustRegister(
		m.EventsTotal,
		m.CandidatesTotal,
		m.RejectedTotal,
		m.DetectionsTotal,
		m.RemediationsTotal,
		m.ActionFailuresTotal,
		m.OracleFailuresTotal,
		m.InflightRemediations,
	)

	return m
}
