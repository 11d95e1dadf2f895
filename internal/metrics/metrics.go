package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the streaming server. A private
// registry keeps the scrape output limited to what amps itself exports.
type Metrics struct {
	registry *prometheus.Registry

	streamRequestsTotal prometheus.Counter
	streamErrorsTotal   prometheus.Counter
	relayedBytesTotal   prometheus.Counter
	viewerSessions      prometheus.Gauge
}

// New registers the collectors. Live process and channel counts are pulled
// through callbacks so the gauges always reflect the registries directly.
func New(liveProcesses func() int, channels func() int) *Metrics {
	registry := prometheus.NewRegistry()

	streamRequestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "amps_stream_requests_total",
		Help: "Total number of viewer stream requests",
	})
	streamErrorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "amps_stream_errors_total",
		Help: "Total number of stream requests that failed before relaying",
	})
	relayedBytesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "amps_relayed_bytes_total",
		Help: "Total media bytes relayed to viewers",
	})
	viewerSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "amps_viewer_sessions",
		Help: "Number of currently attached viewer sessions",
	})

	startTime := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "amps_start_time_seconds",
		Help: "Unix time the server started, for uptime",
	})
	startTime.SetToCurrentTime()

	registry.MustRegister(
		streamRequestsTotal,
		streamErrorsTotal,
		relayedBytesTotal,
		viewerSessions,
		startTime,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "amps_live_processes",
			Help: "Number of live transcoder processes",
		}, func() float64 { return float64(liveProcesses()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "amps_channels",
			Help: "Number of channels currently in the registry",
		}, func() float64 { return float64(channels()) }),
	)

	return &Metrics{
		registry:            registry,
		streamRequestsTotal: streamRequestsTotal,
		streamErrorsTotal:   streamErrorsTotal,
		relayedBytesTotal:   relayedBytesTotal,
		viewerSessions:      viewerSessions,
	}
}

func (m *Metrics) IncStreamRequests() {
	m.streamRequestsTotal.Inc()
}

func (m *Metrics) IncStreamErrors() {
	m.streamErrorsTotal.Inc()
}

func (m *Metrics) AddRelayedBytes(n int) {
	m.relayedBytesTotal.Add(float64(n))
}

func (m *Metrics) ViewerAttached() {
	m.viewerSessions.Inc()
}

func (m *Metrics) ViewerDetached() {
	m.viewerSessions.Dec()
}

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
