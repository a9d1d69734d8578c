package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	assignmentsCreatedTotal     prometheus.Counter
	submissionsTotal            prometheus.Counter
	notificationsPublishedTotal *prometheus.CounterVec
	registrationsTotal          *prometheus.CounterVec
	streamClientsActive         prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		assignmentsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assignments_created_total",
			Help: "Total number of assignments posted by instructors.",
		})

		submissionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "submissions_total",
			Help: "Total number of accepted student submissions.",
		})

		notificationsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Total number of feed notifications published.",
		}, []string{"audience", "type"})

		registrationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "registrations_total",
			Help: "Total number of account registrations.",
		}, []string{"role"})

		streamClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stream_clients_active",
			Help: "Number of currently connected feed stream clients.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			assignmentsCreatedTotal,
			submissionsTotal,
			notificationsPublishedTotal,
			registrationsTotal,
			streamClientsActive,
		)
	})
}

// HTTPRequests exposes the counter for served requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for served requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// AssignmentsCreatedTotal exposes the counter for posted assignments.
func AssignmentsCreatedTotal() prometheus.Counter {
	RegisterMetrics()
	return assignmentsCreatedTotal
}

// SubmissionsTotal exposes the counter for accepted submissions.
func SubmissionsTotal() prometheus.Counter {
	RegisterMetrics()
	return submissionsTotal
}

// NotificationsPublishedTotal exposes the counter for published feed entries.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublishedTotal
}

// RegistrationsTotal exposes the counter for account registrations.
func RegistrationsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return registrationsTotal
}

// StreamClientsActive exposes the gauge of live stream subscribers.
func StreamClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return streamClientsActive
}
