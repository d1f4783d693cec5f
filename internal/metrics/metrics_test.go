package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestMetricsExposition(t *testing.T) {
	m := New()

	m.ObserveRequest("login.credentials", "ok", 3*time.Millisecond)
	m.ObserveRequest("login.credentials", "ok", time.Millisecond)
	m.ObserveRequest("logout", "database", time.Millisecond)
	m.ObserveRequest("", "", time.Millisecond)
	m.StreamOpened()
	m.StreamOpened()
	m.StreamClosed()
	m.FrameRejected("decode_failed")

	out := scrape(t, m)

	for _, want := range []string{
		`sessiond_requests_total{outcome="ok",type="login.credentials"} 2`,
		`sessiond_requests_total{outcome="database",type="logout"} 1`,
		`sessiond_requests_total{outcome="unknown",type="unknown"} 1`,
		`sessiond_request_duration_seconds_count{type="login.credentials"} 2`,
		`sessiond_stream_connections 1`,
		`sessiond_frames_rejected_total{reason="decode_failed"} 1`,
		`go_goroutines`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in exposition output", want)
		}
	}
}

func TestMetricsAreIsolated(t *testing.T) {
	a, b := New(), New()
	a.FrameRejected("internal")

	if strings.Contains(scrape(t, b), `sessiond_frames_rejected_total{reason="internal"}`) {
		t.Error("metrics leaked between registries")
	}
}
