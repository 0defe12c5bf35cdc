package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the certificate module.
// Tracks lifecycle counts, search outcomes and operation durations.
type Metrics struct {
	CertificatesCreated prometheus.Counter
	CertificatesUpdated prometheus.Counter
	CertificatesDeleted prometheus.Counter
	SearchOutcomes      *prometheus.CounterVec
	Downloads           prometheus.Counter
	OperationDuration   *prometheus.HistogramVec
}

// New creates a new Metrics instance registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CertificatesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "certverify_certificates_created_total",
			Help: "Total number of certificates created",
		}),
		CertificatesUpdated: f.NewCounter(prometheus.CounterOpts{
			Name: "certverify_certificates_updated_total",
			Help: "Total number of certificates updated",
		}),
		CertificatesDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "certverify_certificates_deleted_total",
			Help: "Total number of certificates soft-deleted",
		}),
		SearchOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certverify_certificate_searches_total",
			Help: "Public searches by outcome (found, not_found, all_expired)",
		}, []string{"outcome"}),
		Downloads: f.NewCounter(prometheus.CounterOpts{
			Name: "certverify_certificate_downloads_total",
			Help: "Certificate PDFs served",
		}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certverify_certificate_operation_duration_seconds",
			Help:    "Duration of certificate service operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementCreated() {
	m.CertificatesCreated.Inc()
}

func (m *Metrics) IncrementUpdated() {
	m.CertificatesUpdated.Inc()
}

func (m *Metrics) IncrementDeleted() {
	m.CertificatesDeleted.Inc()
}

func (m *Metrics) IncrementSearch(outcome string) {
	m.SearchOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementDownloads() {
	m.Downloads.Inc()
}

// ObserveOperation records the duration of operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
