package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cinesync/internal/core/domain"
	"cinesync/internal/core/ports"
)

type PrometheusCollector struct {
	gatherer prometheus.Gatherer

	roomsCreated      prometheus.Counter
	roomsClosed       prometheus.Counter
	joinAttempts      *prometheus.CounterVec
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter

	eventsPublished *prometheus.CounterVec
	eventsDelivered *prometheus.CounterVec
	publishFailures *prometheus.CounterVec
	fanout          *prometheus.HistogramVec

	streamTransitions *prometheus.CounterVec
}

// NewPrometheusCollector registers the cinesync metrics on reg. A nil reg
// uses the default registry.
func NewPrometheusCollector(reg *prometheus.Registry) *PrometheusCollector {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}
	factory := promauto.With(registerer)

	return &PrometheusCollector{
		gatherer: gatherer,

		roomsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "cinesync_rooms_created_total",
			Help: "Rooms created",
		}),
		roomsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "cinesync_rooms_closed_total",
			Help: "Rooms deleted after the host or the last participant left",
		}),
		joinAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cinesync_room_join_attempts_total",
			Help: "Room join attempts by result",
		}, []string{"result"}),
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cinesync_websocket_connections",
			Help: "Open websocket connections on this instance",
		}),
		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "cinesync_websocket_connections_total",
			Help: "Websocket connections accepted",
		}),

		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cinesync_events_published_total",
			Help: "Room events published on the bus",
		}, []string{"kind"}),
		eventsDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cinesync_events_delivered_total",
			Help: "Room events received from the bus and handed to local sockets",
		}, []string{"kind"}),
		publishFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cinesync_publish_failures_total",
			Help: "Room events dropped because the bus rejected them",
		}, []string{"kind"}),
		fanout: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cinesync_event_fanout_sockets",
			Help:    "Local sockets reached per delivered event",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}, []string{"kind"}),

		streamTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cinesync_stream_transitions_total",
			Help: "Stream state transitions by resulting status",
		}, []string{"status"}),
	}
}

func (p *PrometheusCollector) RoomCreated() { p.roomsCreated.Inc() }

func (p *PrometheusCollector) RoomClosed() { p.roomsClosed.Inc() }

func (p *PrometheusCollector) JoinAttempt(result string) {
	p.joinAttempts.WithLabelValues(result).Inc()
}

func (p *PrometheusCollector) ConnectionOpened() {
	p.connectionsActive.Inc()
	p.connectionsTotal.Inc()
}

func (p *PrometheusCollector) ConnectionClosed() { p.connectionsActive.Dec() }

func (p *PrometheusCollector) EventPublished(kind string) {
	p.eventsPublished.WithLabelValues(kind).Inc()
}

func (p *PrometheusCollector) EventDelivered(kind string, sockets int) {
	p.eventsDelivered.WithLabelValues(kind).Inc()
	p.fanout.WithLabelValues(kind).Observe(float64(sockets))
}

func (p *PrometheusCollector) PublishFailed(kind string) {
	p.publishFailures.WithLabelValues(kind).Inc()
}

func (p *PrometheusCollector) StreamTransition(status domain.StreamStatus) {
	p.streamTransitions.WithLabelValues(string(status)).Inc()
}

// Handler serves the metrics registered by this collector.
func (p *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

var _ ports.MetricsRecorder = (*PrometheusCollector)(nil)
