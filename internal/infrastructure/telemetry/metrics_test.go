package telemetry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := NewWithRegistry(reg, reg)
	require.NoError(t, err)
	return m
}

func TestBusinessCounters(t *testing.T) {
	m := newTestMetrics(t)

	m.CheckInRecorded("qr", "present")
	m.CheckInRecorded("qr", "present")
	m.CheckInRecorded("online", "late")
	m.AttendanceFinalized("auto_absent", 3)
	m.AttendanceFinalized("auto_absent", 0)
	m.CertificatesIssued(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.checkIns.WithLabelValues("qr", "present")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkIns.WithLabelValues("online", "late")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.attendanceFinal.WithLabelValues("auto_absent")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.certificates))
}

func TestObservers(t *testing.T) {
	m := newTestMetrics(t)

	m.ObserveHandler("attendance.checked_in", time.Millisecond, nil)
	m.ObserveHandler("attendance.checked_in", time.Millisecond, errors.New("boom"))
	m.ObserveJob("attendance_auto_absent", time.Second, nil)
	m.ObserveJob("attendance_auto_absent", time.Second, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.handlerFailures.WithLabelValues("attendance.checked_in")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("attendance_auto_absent", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("attendance_auto_absent", "false")))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := newTestMetrics(t)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/ojt/q/{token}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/metrics", m.Handler().ServeHTTP)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ojt/q/abc", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues(http.MethodGet, "/ojt/q/{token}", "418")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "ojt_http_requests_total"))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.CheckInRecorded("qr", "present")
	m.AttendanceFinalized("auto_checkout", 1)
	m.CertificatesIssued(1)
	m.ObserveHandler("x", time.Second, nil)
	m.ObserveJob("x", time.Second, nil)

	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	assert.NotNil(t, m.Middleware(next))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
