package service

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the expiry sweeper.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	sweepTotal      prometheus.Counter
	sweepDue        prometheus.Histogram
	expiredTotal    prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	sweepTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "expiry_sweeps_total",
		Help: "Total number of expiry sweep passes",
	})

	sweepDue := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "expiry_sweep_due_requests",
		Help:    "Number of due requests found per sweep pass",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
	})

	expiredTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "requests_expired_total",
		Help: "Total number of requests transitioned to expired",
	})

	registry.MustRegister(requestDuration, requestTotal, sweepTotal, sweepDue, expiredTotal)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		sweepTotal:      sweepTotal,
		sweepDue:        sweepDue,
		expiredTotal:    expiredTotal,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records a completed HTTP request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, fmt.Sprintf("%d", status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// ObserveSweep records one sweep pass and its due-row count.
func (s *MetricsService) ObserveSweep(due int) {
	s.sweepTotal.Inc()
	s.sweepDue.Observe(float64(due))
}

// AddExpired adds to the expired-request counter.
func (s *MetricsService) AddExpired(n int) {
	s.expiredTotal.Add(float64(n))
}
