package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"navtelemetry/internal/logging"
)

func TestMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveCycle(30 * time.Millisecond)
	m.ObserveCycle(40 * time.Millisecond)
	if got := testutil.ToFloat64(m.cycles); got != 2 {
		t.Fatalf("expected 2 cycles, got %f", got)
	}
	if samples := testutil.CollectAndCount(m.cycleDuration); samples != 1 {
		t.Fatalf("expected one histogram series, got %d", samples)
	}

	m.ObserveRead("ADC", true)
	m.ObserveRead("ADC", false)
	m.ObserveRead("ADC", false)
	if got := testutil.ToFloat64(m.sensorReads.WithLabelValues("ADC", "invalid")); got != 2 {
		t.Fatalf("expected 2 invalid ADC reads, got %f", got)
	}

	m.SetAvailable("GPS", false)
	m.SetAvailable("Barometer", true)
	if got := testutil.ToFloat64(m.sensorUp.WithLabelValues("Barometer")); got != 1 {
		t.Fatalf("expected barometer available, got %f", got)
	}

	m.EndpointDeclared("telemetry/sensors/imu")
	m.Published("telemetry/sensors/imu")
	m.Published("telemetry/sensors/imu")
	m.PublishFailed("telemetry/sensors/gps")
	m.DeclareFailed("telemetry/sensors/gps")
	if got := testutil.ToFloat64(m.published.WithLabelValues("telemetry/sensors/imu")); got != 2 {
		t.Fatalf("expected 2 publishes, got %f", got)
	}
	if got := testutil.ToFloat64(m.declareFailed.WithLabelValues("telemetry/sensors/gps")); got != 1 {
		t.Fatalf("expected 1 declaration failure, got %f", got)
	}
}

func TestServerRoutes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveCycle(time.Millisecond)

	healthy := true
	srv := NewServer(":0", reg, func() bool { return healthy }, logging.Discard())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "navtel_cycles_total 1") {
		t.Errorf("/metrics = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/healthz = %d; want 200", rec.Code)
	}

	healthy = false
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/healthz = %d; want 503", rec.Code)
	}
}
