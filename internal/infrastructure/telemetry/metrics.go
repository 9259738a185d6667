// Package telemetry exposes Prometheus instrumentation for the OJT service.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ojt"

// Metrics holds every collector of the service. A nil *Metrics is a valid
// no-op recorder.
type Metrics struct {
	gatherer prometheus.Gatherer

	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	activeRequests  prometheus.Gauge

	checkIns        *prometheus.CounterVec
	attendanceFinal *prometheus.CounterVec
	certificates    prometheus.Counter
	handlerDuration *prometheus.HistogramVec
	handlerFailures *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	jobRuns         *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, together with the Go and
// process collectors.
func New() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on reg and serves them from g.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) (*Metrics, error) {
	m := &Metrics{
		gatherer: g,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route", "status_code"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_active_requests",
			Help:      "Number of in-flight HTTP requests",
		}),
		checkIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attendance_check_ins_total",
			Help:      "Check-ins recorded, by method and resulting presence",
		}, []string{"method", "presence"}),
		attendanceFinal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attendance_finalized_total",
			Help:      "Attendance rows closed by the auto-absent and auto-checkout jobs",
		}, []string{"kind"}),
		certificates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificates_issued_total",
			Help:      "Certificates issued",
		}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_handler_duration_seconds",
			Help:      "Duration of domain event handlers in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		handlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_handler_failures_total",
			Help:      "Failed domain event handler runs",
		}, []string{"event_type"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of scheduled jobs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"job"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by outcome",
		}, []string{"job", "success"}),
	}

	for _, c := range []prometheus.Collector{
		m.requestDuration, m.requestsTotal, m.activeRequests,
		m.checkIns, m.attendanceFinal, m.certificates,
		m.handlerDuration, m.handlerFailures,
		m.jobDuration, m.jobRuns,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP
// ══════════════════════════════════════════════════════════════════════════════

// Middleware records request metrics labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		m.activeRequests.Inc()
		next.ServeHTTP(ww, r)
		m.activeRequests.Dec()

		labels := prometheus.Labels{
			"method":      r.Method,
			"route":       routePattern(r),
			"status_code": strconv.Itoa(ww.Status()),
		}
		m.requestDuration.With(labels).Observe(time.Since(start).Seconds())
		m.requestsTotal.With(labels).Inc()
	})
}

// routePattern returns the matched chi pattern. Unmatched requests share one
// label value to bound cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return "unknown_route"
}

// ══════════════════════════════════════════════════════════════════════════════
// BUSINESS COUNTERS
// ══════════════════════════════════════════════════════════════════════════════

// CheckInRecorded counts a successful check-in.
func (m *Metrics) CheckInRecorded(method, presence string) {
	if m == nil {
		return
	}
	m.checkIns.WithLabelValues(method, presence).Inc()
}

// AttendanceFinalized counts rows closed by a finalization job.
func (m *Metrics) AttendanceFinalized(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.attendanceFinal.WithLabelValues(kind).Add(float64(n))
}

// CertificatesIssued counts issued certificates.
func (m *Metrics) CertificatesIssued(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.certificates.Add(float64(n))
}

// ObserveHandler records one event handler run.
func (m *Metrics) ObserveHandler(eventType string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.handlerDuration.WithLabelValues(eventType).Observe(d.Seconds())
	if err != nil {
		m.handlerFailures.WithLabelValues(eventType).Inc()
	}
}

// ObserveJob records one scheduled job run.
func (m *Metrics) ObserveJob(job string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
	m.jobRuns.WithLabelValues(job, strconv.FormatBool(err == nil)).Inc()
}
