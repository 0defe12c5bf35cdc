package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP-level Prometheus metrics for the application.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	LoginAttempts   *prometheus.CounterVec
	GateRejections  prometheus.Counter
}

// New creates and registers all platform metrics on reg.
// Pass prometheus.DefaultRegisterer in main and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certverify_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route pattern, method and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		LoginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certverify_login_attempts_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		GateRejections: f.NewCounter(prometheus.CounterOpts{
			Name: "certverify_gate_rejections_total",
			Help: "Admin requests redirected by the session gate",
		}),
	}
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route, method string, status int, start time.Time) {
	if route == "" {
		route = "unmatched"
	}
	m.RequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
}

// IncrementLogin records a login attempt; outcome is "success" or "failure".
func (m *Metrics) IncrementLogin(outcome string) {
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

// IncrementGateRejection records a redirect issued by the admin session gate.
func (m *Metrics) IncrementGateRejection() {
	m.GateRejections.Inc()
}
