package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Requests    *prometheus.CounterVec
	Latency     *prometheus.HistogramVec
	Turns       *prometheus.CounterVec
	Captures    *prometheus.CounterVec
	WSClients   prometheus.Gauge
	SweptPhotos prometheus.Counter
}

// New registers the mirror's collectors on reg. Pass a fresh registry in
// tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mirror",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		Latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mirror",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mirror",
			Name:      "turns_total",
			Help:      "Completed voice turns by payload type.",
		}, []string{"type"}),
		Captures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mirror",
			Name:      "camera_captures_total",
			Help:      "Camera capture attempts by result.",
		}, []string{"result"}),
		WSClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "mirror",
			Name:      "websocket_clients",
			Help:      "Connected websocket clients.",
		}),
		SweptPhotos: f.NewCounter(prometheus.CounterOpts{
			Namespace: "mirror",
			Name:      "photos_swept_total",
			Help:      "Photos removed by the expiry sweep.",
		}),
	}
}

func (m *Metrics) ObserveTurn(payloadType string) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(payloadType).Inc()
}

func (m *Metrics) ObserveCapture(result string) {
	if m == nil {
		return
	}
	m.Captures.WithLabelValues(result).Inc()
}
