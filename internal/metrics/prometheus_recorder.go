package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry       *prom.Registry
	buildDuration  prom.Histogram
	buildOutcome   *prom.CounterVec
	watchEvents    prom.Counter
	reloadClients  prom.Gauge
	reloadConns    prom.Counter
	reloadDisconns prom.Counter
	reloadCasts    prom.Counter
	reloadDropped  prom.Counter
}

// NewPrometheusRecorder constructs and registers metrics on the given
// registry (a fresh one when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace: "sphinxserve",
		Name:      "build_duration_seconds",
		Help:      "Duration of external build invocations",
		Buckets:   prom.DefBuckets,
	})
	pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "sphinxserve",
		Name:      "build_outcomes_total",
		Help:      "Build outcomes by final status",
	}, []string{"outcome"})
	pr.watchEvents = prom.NewCounter(prom.CounterOpts{
		Namespace: "sphinxserve",
		Name:      "watch_events_total",
		Help:      "Qualifying filesystem events observed",
	})
	pr.reloadClients = prom.NewGauge(prom.GaugeOpts{
		Namespace: "sphinxserve",
		Name:      "livereload_clients",
		Help:      "Currently connected live-reload clients",
	})
	pr.reloadConns = prom.NewCounter(prom.CounterOpts{
		Namespace: "sphinxserve",
		Name:      "livereload_connections_total",
		Help:      "Accepted live-reload connections",
	})
	pr.reloadDisconns = prom.NewCounter(prom.CounterOpts{
		Namespace: "sphinxserve",
		Name:      "livereload_disconnections_total",
		Help:      "Closed live-reload connections",
	})
	pr.reloadCasts = prom.NewCounter(prom.CounterOpts{
		Namespace: "sphinxserve",
		Name:      "livereload_broadcasts_total",
		Help:      "Reload notifications broadcast to clients",
	})
	pr.reloadDropped = prom.NewCounter(prom.CounterOpts{
		Namespace: "sphinxserve",
		Name:      "livereload_dropped_clients_total",
		Help:      "Clients dropped because their send buffer was full",
	})

	reg.MustRegister(pr.buildDuration, pr.buildOutcome, pr.watchEvents,
		pr.reloadClients, pr.reloadConns, pr.reloadDisconns, pr.reloadCasts, pr.reloadDropped)
	return pr
}

// Handler returns the HTTP handler serving this recorder's registry.
func (pr *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(pr.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (pr *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	pr.buildDuration.Observe(d.Seconds())
}
func (pr *PrometheusRecorder) IncBuildOutcome(outcome string) {
	pr.buildOutcome.WithLabelValues(outcome).Inc()
}
func (pr *PrometheusRecorder) IncWatchEvents()          { pr.watchEvents.Inc() }
func (pr *PrometheusRecorder) SetReloadClients(n int)   { pr.reloadClients.Set(float64(n)) }
func (pr *PrometheusRecorder) IncReloadConnections()    { pr.reloadConns.Inc() }
func (pr *PrometheusRecorder) IncReloadDisconnections() { pr.reloadDisconns.Inc() }
func (pr *PrometheusRecorder) IncReloadBroadcasts()     { pr.reloadCasts.Inc() }
func (pr *PrometheusRecorder) IncReloadDroppedClients() { pr.reloadDropped.Inc() }
