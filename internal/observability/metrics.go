package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "insurance_maps"

// Metrics holds the Prometheus counters, histograms, and gauges for imports,
// page rendering, and event publishing.
type Metrics struct {
	ImportsTotal   *prometheus.CounterVec // labels: outcome={success,invalid,error}
	RowsImported   prometheus.Counter
	ImportDuration prometheus.Histogram
	TradesLoaded   prometheus.Gauge

	// Rendering metrics.
	PageRenders    *prometheus.CounterVec // labels: cache={hit,miss,disabled}
	RenderDuration prometheus.Histogram

	// Event publishing metrics.
	EventsPublished *prometheus.CounterVec // labels: event_type
	PublishErrors   prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		ImportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "CSV imports by outcome.",
		}, []string{"outcome"}),
		RowsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_imported_total",
			Help:      "State rows written by successful imports.",
		}),
		ImportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_duration_seconds",
			Help:      "Duration of a complete parse-validate-store-publish import.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}),
		TradesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trades_loaded",
			Help:      "Number of trades with a stored dataset.",
		}),
		PageRenders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_renders_total",
			Help:      "Map page requests by cache result.",
		}, []string{"cache"}),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time spent rendering a map page on a cache miss.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events written to Kafka by type.",
		}, []string{"event_type"}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed event publish attempts after retries.",
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ImportsTotal,
		m.RowsImported,
		m.ImportDuration,
		m.TradesLoaded,
		m.PageRenders,
		m.RenderDuration,
		m.EventsPublished,
		m.PublishErrors,
	)
	return m
}

// NewLocalMetrics creates Metrics that are not registered with any registry,
// for one-shot commands that never serve /metrics.
func NewLocalMetrics() *Metrics {
	return newMetrics()
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
