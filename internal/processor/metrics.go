package processor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters of one run on a private registry, so
// concurrent runs (and tests) never share state.
type Metrics struct {
	Registry         *prometheus.Registry
	Variants         *prometheus.CounterVec
	Removed          prometheus.Counter
	TranscodeSeconds prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Variants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "variants_generated_total",
			Help: "Variants handled by generate, by outcome.",
		}, []string{"outcome"}),
		Removed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "variants_stale_removed_total",
			Help: "Stale variants removed by clean.",
		}),
		TranscodeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "variants_transcode_seconds",
			Help:    "Time spent decoding, resizing and encoding one variant.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
	m.Registry.MustRegister(m.Variants, m.Removed, m.TranscodeSeconds)
	return m
}

func (m *Metrics) observe(res Result) {
	if m == nil {
		return
	}
	m.Variants.WithLabelValues(res.Outcome.String()).Inc()
	if res.Outcome == OutcomeCreated {
		m.TranscodeSeconds.Observe(res.Elapsed.Seconds())
	}
}

func (m *Metrics) removed() {
	if m == nil {
		return
	}
	m.Removed.Inc()
}

// WriteTextfile writes all metrics in the Prometheus text format, suitable
// for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
