package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "grocery_live_connections",
			Help: "Number of authenticated tracking sockets currently registered",
		},
	)

	ConnectionsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grocery_live_connections_rejected_total",
			Help: "Tracking socket handshakes refused, by reason",
		},
		[]string{"reason"},
	)

	StatusUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grocery_order_status_updates_total",
			Help: "Successful order status transitions by new status",
		},
		[]string{"status"},
	)

	NotificationAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grocery_notification_attempts_total",
			Help: "Notification delivery attempts by channel and result",
		},
		[]string{"channel", "result"},
	)

	NotificationQueueDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grocery_notification_queue_dropped_total",
			Help: "Status changes dropped because a sink's dispatch lane was full",
		},
		[]string{"sink"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grocery_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	prometheus.MustRegister(LiveConnections)
	prometheus.MustRegister(ConnectionsRejected)
	prometheus.MustRegister(StatusUpdates)
	prometheus.MustRegister(NotificationAttempts)
	prometheus.MustRegister(NotificationQueueDropped)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures an operation for a histogram observation.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

func (t *Timer) ObserveDurationVec(h *prometheus.HistogramVec, labels ...string) {
	h.WithLabelValues(labels...).Observe(t.Duration().Seconds())
}
