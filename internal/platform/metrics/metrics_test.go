package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRequest("/api/certificates/search", http.MethodGet, http.StatusOK, time.Now())
	m.ObserveRequest("", http.MethodGet, http.StatusNotFound, time.Now())
	m.IncrementLogin("success")
	m.IncrementLogin("failure")
	m.IncrementLogin("failure")
	m.IncrementGateRejection()

	assert.Equal(t, 2, testutil.CollectAndCount(m.RequestDuration))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.LoginAttempts.WithLabelValues("failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.GateRejections))
}

func TestNewOnSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
