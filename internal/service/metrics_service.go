package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// planning pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	plansAccepted   prometheus.Counter
	sessionsPlanned prometheus.Counter
	planConflicts   prometheus.Counter
}

// NewMetricsService registers the core collectors.
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

	plansAccepted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "planner_plans_accepted_total",
		Help: "Plans persisted after a conflict-free generation run",
	})

	sessionsPlanned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "planner_sessions_generated_total",
		Help: "Sessions persisted across accepted plans",
	})

	planConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "planner_conflict_pairs_total",
		Help: "Overlapping pairs reported by rejected planning requests",
	})

	registry.MustRegister(requestDuration, requestTotal, plansAccepted, sessionsPlanned, planConflicts)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		plansAccepted:   plansAccepted,
		sessionsPlanned: sessionsPlanned,
		planConflicts:   planConflicts,
	}
}

// Handler serves the metrics endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one completed request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, strconv.Itoa(status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// ObservePlanAccepted records an accepted plan and its session count.
func (s *MetricsService) ObservePlanAccepted(sessions int) {
	s.plansAccepted.Inc()
	s.sessionsPlanned.Add(float64(sessions))
}

// ObservePlanConflicts records pairs reported by one rejected request.
func (s *MetricsService) ObservePlanConflicts(pairs int) {
	s.planConflicts.Add(float64(pairs))
}
