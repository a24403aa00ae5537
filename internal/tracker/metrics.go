package tracker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for extraction runs.
type Metrics struct {
	Registry         *prometheus.Registry
	LinksDiscovered  prometheus.Counter
	RecordsExtracted prometheus.Counter
	RecordsDropped   *prometheus.CounterVec
	RunDuration      prometheus.Histogram
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	links := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_links_discovered_total",
		Help: "Product links collected from search result pages.",
	})
	extracted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_records_extracted_total",
		Help: "Products resolved with title, seller and price.",
	})
	dropped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_records_dropped_total",
			Help: "Products dropped because a field could not be read.",
		},
		[]string{"field"},
	)
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracker_run_duration_seconds",
		Help:    "Wall time of a full extraction run.",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
	})

	registry.MustRegister(links, extracted, dropped, duration)

	return &Metrics{
		Registry:         registry,
		LinksDiscovered:  links,
		RecordsExtracted: extracted,
		RecordsDropped:   dropped,
		RunDuration:      duration,
	}
}

func (m *Metrics) linksFound(n int) {
	if m == nil {
		return
	}
	m.LinksDiscovered.Add(float64(n))
}

func (m *Metrics) recordExtracted() {
	if m == nil {
		return
	}
	m.RecordsExtracted.Inc()
}

func (m *Metrics) recordDropped(fields []string) {
	if m == nil {
		return
	}
	for _, field := range fields {
		m.RecordsDropped.WithLabelValues(field).Inc()
	}
}

func (m *Metrics) runFinished(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(elapsed.Seconds())
}
