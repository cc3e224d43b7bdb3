// Package metrics exposes Prometheus instrumentation for the sync server.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpDuration   *prometheus.HistogramVec
	syncClients    *prometheus.GaugeVec
	stateWrites    *prometheus.CounterVec
	rejectedWrites prometheus.Counter
	aiRequests     *prometheus.CounterVec
	partiesCreated prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cinesync_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		syncClients: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cinesync_sync_connections",
				Help: "Open websocket sync connections",
			},
			[]string{"role"},
		),
		stateWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cinesync_state_writes_total",
				Help: "Player state documents written by hosts",
			},
			[]string{"result"},
		),
		rejectedWrites: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cinesync_state_writes_rejected_total",
				Help: "State writes refused because the sender is not the host",
			},
		),
		aiRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cinesync_ai_requests_total",
				Help: "AI flow invocations",
			},
			[]string{"flow", "result"},
		),
		partiesCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cinesync_parties_created_total",
				Help: "Watch parties created",
			},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func (m *Metrics) SyncConnected(role string) {
	if m == nil {
		return
	}
	m.syncClients.WithLabelValues(role).Inc()
}

func (m *Metrics) SyncDisconnected(role string) {
	if m == nil {
		return
	}
	m.syncClients.WithLabelValues(role).Dec()
}

func (m *Metrics) StateWrite(err error) {
	if m == nil {
		return
	}
	m.stateWrites.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) StateWriteRejected() {
	if m == nil {
		return
	}
	m.rejectedWrites.Inc()
}

func (m *Metrics) ObserveAI(flow string, err error) {
	if m == nil {
		return
	}
	m.aiRequests.WithLabelValues(flow, result(err)).Inc()
}

func (m *Metrics) PartyCreated() {
	if m == nil {
		return
	}
	m.partiesCreated.Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
