package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus collectors for the relay server.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal     *prometheus.CounterVec
	sessionsStarted   prometheus.Counter
	sessionsActive    prometheus.Gauge
	sessionsFinished  *prometheus.CounterVec
	bytesRead         prometheus.Counter
	chunksRead        prometheus.Counter
	chunksDropped     prometheus.Counter
	bytesSent         prometheus.Counter
	framesSent        prometheus.Counter
	connectionsClosed *prometheus.CounterVec
	clientsConnected  prometheus.Gauge
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ws_live_http_requests_total",
			Help: "Total number of HTTP requests by route and status class",
		}, []string{"route", "status"}),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ws_live_sessions_started_total",
			Help: "Total number of transcoding sessions started",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ws_live_sessions_active",
			Help: "Number of transcoding sessions whose reader is running",
		}),
		sessionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ws_live_sessions_finished_total",
			Help: "Total number of transcoding sessions finished, by outcome",
		}, []string{"outcome"}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ws_live_transcoder_bytes_read_total",
			Help: "Total bytes read from transcoder processes",
		}),
		chunksRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ws_live_transcoder_chunks_read_total",
			Help: "Total chunks read from transcoder processes",
		}),
		chunksDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ws_live_transcoder_chunks_dropped_total",
			Help: "Total chunks discarded by a bounded drop-oldest queue",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ws_live_websocket_bytes_sent_total",
			Help: "Total payload bytes written to WebSocket clients",
		}),
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ws_live_websocket_frames_sent_total",
			Help: "Total binary frames written to WebSocket clients",
		}),
		connectionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ws_live_websocket_connections_closed_total",
			Help: "Total WebSocket connections closed, by reason",
		}, []string{"reason"}),
		clientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ws_live_websocket_clients",
			Help: "Number of connected WebSocket clients",
		}),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.sessionsStarted,
		m.sessionsActive,
		m.sessionsFinished,
		m.bytesRead,
		m.chunksRead,
		m.chunksDropped,
		m.bytesSent,
		m.framesSent,
		m.connectionsClosed,
		m.clientsConnected,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// IncRequests records one HTTP request.
func (m *Metrics) IncRequests(route, status string) {
	m.requestsTotal.WithLabelValues(route, status).Inc()
}

// AddFrameSent records one binary frame of n bytes written to a client.
func (m *Metrics) AddFrameSent(n int) {
	m.framesSent.Inc()
	m.bytesSent.Add(float64(n))
}

// IncConnectionsClosed records a closed connection with the given reason.
func (m *Metrics) IncConnectionsClosed(reason string) {
	m.connectionsClosed.WithLabelValues(reason).Inc()
}

// SetClients sets the connected clients gauge.
func (m *Metrics) SetClients(n int) {
	m.clientsConnected.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		h.ServeHTTP(w, r)
	})
}
