package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for batch scans.
type Metrics struct {
	// Per-subject analysis latency by outcome
	SubjectLatency *prometheus.HistogramVec

	// Detected anomalies by pattern code and severity
	Anomalies *prometheus.CounterVec

	// Full scan latency
	ScanLatency prometheus.Histogram
}

// New creates a Metrics instance with all scan metrics registered.
func New() *Metrics {
	return &Metrics{
		SubjectLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taxwatch_scan_subject_duration_seconds",
			Help:    "Duration of a single subject analysis by outcome",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"outcome"}), // outcome: "ok", "failed", "not_found"

		Anomalies: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "taxwatch_scan_anomalies_total",
			Help: "Total anomalies detected by pattern code and severity",
		}, []string{"code", "severity"}),

		ScanLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "taxwatch_scan_duration_seconds",
			Help:    "Duration of a full batch scan",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// ObserveSubjectLatency records the duration of one subject analysis.
func (m *Metrics) ObserveSubjectLatency(outcome string, d time.Duration) {
	if m != nil {
		m.SubjectLatency.WithLabelValues(outcome).Observe(d.Seconds())
	}
}

// IncrementAnomaly records one detected anomaly.
func (m *Metrics) IncrementAnomaly(code, severity string) {
	if m != nil {
		m.Anomalies.WithLabelValues(code, severity).Inc()
	}
}

// ObserveScanLatency records the total scan duration.
func (m *Metrics) ObserveScanLatency(d time.Duration) {
	if m != nil {
		m.ScanLatency.Observe(d.Seconds())
	}
}
