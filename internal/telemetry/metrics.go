package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "metabench"

// Metrics counts evaluation units. It is written out as a node_exporter
// textfile at the end of a run rather than served.
type Metrics struct {
	UnitsTotal      *prometheus.CounterVec
	UnitDuration    *prometheus.HistogramVec
	MetricsComputed *prometheus.CounterVec

	registry *prometheus.Registry
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		UnitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_total",
			Help:      "Evaluated (pipeline, sample) units by outcome",
		}, []string{"pipeline", "status"}),
		UnitDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "unit_duration_seconds",
			Help:      "Time to parse and evaluate one unit",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"pipeline"}),
		MetricsComputed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metrics_total",
			Help:      "Metrics produced by availability",
		}, []string{"pipeline", "available"}),
		registry: reg,
	}
}

// ObserveUnit records one finished unit. A nil receiver is a no-op.
func (m *Metrics) ObserveUnit(pipeline, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.UnitsTotal.WithLabelValues(pipeline, status).Inc()
	m.UnitDuration.WithLabelValues(pipeline).Observe(d.Seconds())
}

// ObserveMetrics counts available and unavailable metrics of one unit.
func (m *Metrics) ObserveMetrics(pipeline string, available, unavailable int) {
	if m == nil {
		return
	}
	m.MetricsComputed.WithLabelValues(pipeline, "true").Add(float64(available))
	m.MetricsComputed.WithLabelValues(pipeline, "false").Add(float64(unavailable))
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile dumps the registry in Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
