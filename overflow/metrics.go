package overflow

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports per-window interrupt counts and the run outcome in the
// Prometheus text format, for node_exporter's textfile collector.
type Metrics struct {
	registry *prometheus.Registry

	windowCount *prometheus.GaugeVec
	windowRate  *prometheus.GaugeVec
	total       prometheus.Gauge
	outcome     *prometheus.GaugeVec
}

// NewMetrics creates the metric set on its own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		windowCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "childoverflow",
			Name:      "window_interrupts",
			Help:      "Overflow interrupts counted in a measurement window.",
		}, []string{"window"}),
		windowRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "childoverflow",
			Name:      "window_rate_per_second",
			Help:      "Overflow interrupt rate of a measurement window.",
		}, []string{"window"}),
		total: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "childoverflow",
			Name:      "interrupts",
			Help:      "Overflow interrupts counted since the run started.",
		}),
		outcome: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "childoverflow",
			Name:      "outcome",
			Help:      "1 for the outcome of the last run, 0 otherwise.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(m.windowCount, m.windowRate, m.total, m.outcome)
	return m
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records a sampled window.
func (m *Metrics) Observe(w Window) {
	label := strconv.Itoa(w.Index)
	m.windowCount.WithLabelValues(label).Set(float64(w.Count))
	m.windowRate.WithLabelValues(label).Set(w.Rate)
	m.total.Set(float64(w.Total))
}

// SetOutcome marks o as the outcome of the run.
func (m *Metrics) SetOutcome(o Outcome) {
	for _, candidate := range []Outcome{Pass, Fail, Skip} {
		v := 0.0
		if candidate == o {
			v = 1
		}
		m.outcome.WithLabelValues(candidate.String()).Set(v)
	}
}

// WriteFile writes the metrics to filename atomically.
func (m *Metrics) WriteFile(filename string) error {
	return prometheus.WriteToTextfile(filename, m.registry)
}
