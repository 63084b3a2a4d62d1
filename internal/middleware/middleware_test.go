package middleware

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"media-ingest/internal/logging"
	"media-ingest/internal/metrics"
)

func metricValue(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		t.Fatalf("Failed to read metric: %v", err)
	}
	switch {
	case out.Counter != nil:
		return out.GetCounter().GetValue()
	case out.Gauge != nil:
		return out.GetGauge().GetValue()
	}
	t.Fatalf("Unsupported metric type")
	return 0
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	if rw.statusCode != http.StatusOK {
		t.Errorf("Expected default status code 200, got %d", rw.statusCode)
	}

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusInternalServerError)
	if rw.statusCode != http.StatusNotFound {
		t.Errorf("Expected status code 404 after second WriteHeader, got %d", rw.statusCode)
	}

	n, err := rw.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != 5 || rw.bytesWritten != 5 {
		t.Errorf("Expected 5 bytes written, got n=%d total=%d", n, rw.bytesWritten)
	}
}

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/api/status", "/api/status"},
		{"a\nb", "a b"},
		{"a\r\nb", "a  b"},
		{"a\x00b", "ab"},
		{"\x1b[31mred", "[31mred"},
		{"tab\there", "tab\there"},
	}

	for _, tt := range tests {
		if got := sanitizeLogField(tt.input); got != tt.expected {
			t.Errorf("sanitizeLogField(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestShouldSkip(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		config   LoggingConfig
		expected bool
	}{
		{"metrics skipped by default", "/metrics", DefaultLoggingConfig(), true},
		{"status logged", "/api/status", DefaultLoggingConfig(), false},
		{"health logged when enabled", "/healthz", DefaultLoggingConfig(), false},
		{"health skipped when disabled", "/readyz", LoggingConfig{}, true},
		{"non-health logged when disabled", "/version", LoggingConfig{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldSkip(tt.path, tt.config); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		remote   string
		expected string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "192.168.1.1:5000", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.3"}, "192.168.1.1:5000", "10.0.0.3"},
		{"remote addr", nil, "192.168.1.1:5000", "192.168.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestFormatW3C(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/status?verbose=1", nil)
	req.RemoteAddr = "192.168.1.10:4321"
	req.Header.Set("User-Agent", "kube-probe/1.30")

	rw := newResponseWriter(httptest.NewRecorder())
	rw.WriteHeader(http.StatusOK)
	_, _ = rw.Write([]byte("{}\n"))

	now := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	line := formatW3C(now, req, rw, 12*time.Millisecond)

	expected := "2026-05-04 03:02:01 192.168.1.10 GET /api/status verbose=1 200 3 12 kube-probe/1.30"
	if line != expected {
		t.Errorf("Expected %q, got %q", expected, line)
	}
}

func TestLoggerMiddleware(t *testing.T) {
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	prevLevel := logging.GetLevel()
	logging.SetLevel(logging.LevelInfo)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
		logging.SetLevel(prevLevel)
	})

	handler := Logger(LoggingConfig{LogHealthChecks: false})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
	if buf.Len() != 0 {
		t.Errorf("Expected health check to be skipped, got %q", buf.String())
	}

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/status", nil))
	out := buf.String()
	if !strings.Contains(out, "[http]") {
		t.Errorf("Expected component prefix in %q", out)
	}
	if !strings.Contains(out, "GET /api/status - 418") {
		t.Errorf("Expected request line in %q", out)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Metrics(DefaultMetricsConfig()))
	r.HandleFunc("/api/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}).Methods(http.MethodPost)
	r.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {})

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/api/items/{id}", "202")
	before := metricValue(t, counter)

	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/items/"+id, nil))
	}

	if got := metricValue(t, counter) - before; got != 3 {
		t.Errorf("Expected 3 requests under the route template, got %v", got)
	}

	scrape := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/metrics", "200")
	before = metricValue(t, scrape)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if got := metricValue(t, scrape) - before; got != 0 {
		t.Errorf("Expected /metrics to be skipped, got %v", got)
	}

	if got := metricValue(t, metrics.HTTPRequestsInFlight); got != 0 {
		t.Errorf("Expected no requests in flight, got %v", got)
	}
}
