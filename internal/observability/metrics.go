package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fire_timeline"

// Metrics holds the Prometheus counters, histograms, and gauges for the timeline service.
type Metrics struct {
	// Backend fetch metrics.
	FetchRequests   *prometheus.CounterVec   // labels: resource, outcome={success,error}
	FetchRetries    *prometheus.CounterVec   // labels: resource
	FetchRetryDelay *prometheus.HistogramVec // labels: resource
	BackendDuration *prometheus.HistogramVec // labels: endpoint
	BackendReady    prometheus.Gauge

	// Timeline state.
	EventsLoaded  prometheus.Gauge
	FramesLoaded  prometheus.Gauge
	EventsSkipped prometheus.Counter
	Navigations   *prometheus.CounterVec // labels: action={prev,next,index}

	WindEstimates      *prometheus.CounterVec // labels: kind={real,synthetic,cached}
	SnapshotsPublished *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)

	prometheus.MustRegister(
		m.FetchRequests,
		m.FetchRetries,
		m.FetchRetryDelay,
		m.BackendDuration,
		m.BackendReady,
		m.EventsLoaded,
		m.FramesLoaded,
		m.EventsSkipped,
		m.Navigations,
		m.WindEstimates,
		m.SnapshotsPublished,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}

	return &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      help("Backend fetch attempts by resource and outcome."),
		}, []string{"resource", "outcome"}),
		FetchRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      help("Automatic retries scheduled before the first successful fetch."),
		}, []string{"resource"}),
		FetchRetryDelay: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_retry_delay_seconds",
			Help:      help("Backoff delay applied before each automatic retry."),
			Buckets:   []float64{1, 1.7, 2.89, 4.913, 8.352, 14.2, 24.14, 30},
		}, []string{"resource"}),
		BackendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      help("Backend HTTP request duration in seconds."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"endpoint"}),
		BackendReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_ready",
			Help:      help("1 once the backend health gate has passed, 0 before."),
		}),
		EventsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events_loaded",
			Help:      help("Detections held in the event store."),
		}),
		FramesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frames_loaded",
			Help:      help("Daily frames in the current timeline."),
		}),
		EventsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_skipped_total",
			Help:      help("Detections excluded from binning because ts_utc did not parse."),
		}),
		Navigations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "navigations_total",
			Help:      help("Timeline navigation requests by action."),
		}, []string{"action"}),
		WindEstimates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wind_estimates_total",
			Help:      help("Wind lookups by how the sample was produced."),
		}, []string{"kind"}),
		SnapshotsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_published_total",
			Help:      help("Timeline snapshots published to Kafka by outcome."),
		}, []string{"outcome"}),
	}
}
