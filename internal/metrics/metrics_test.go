package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()

	m.StateWrite(nil)
	m.StateWrite(nil)
	m.StateWrite(errors.New("boom"))
	m.StateWriteRejected()
	m.ObserveAI("trivia", nil)
	m.ObserveAI("trivia", errors.New("boom"))
	m.PartyCreated()

	if got := testutil.ToFloat64(m.stateWrites.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok writes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.stateWrites.WithLabelValues("error")); got != 1 {
		t.Errorf("failed writes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.rejectedWrites); got != 1 {
		t.Errorf("rejected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.aiRequests.WithLabelValues("trivia", "error")); got != 1 {
		t.Errorf("ai errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.partiesCreated); got != 1 {
		t.Errorf("parties = %v, want 1", got)
	}
}

func TestSyncConnectionsGauge(t *testing.T) {
	m := New()
	m.SyncConnected("viewer")
	m.SyncConnected("viewer")
	m.SyncConnected("host")
	m.SyncDisconnected("viewer")

	if got := testutil.ToFloat64(m.syncClients.WithLabelValues("viewer")); got != 1 {
		t.Errorf("viewers = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.syncClients.WithLabelValues("host")); got != 1 {
		t.Errorf("hosts = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveHTTP(http.MethodGet, "/api/parties/{id}", http.StatusOK, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(string(body), `cinesync_http_request_duration_seconds_count{method="GET",route="/api/parties/{id}",status="200"} 1`) {
		t.Errorf("histogram missing from exposition:\n%s", body)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.StateWrite(nil)
	m.StateWriteRejected()
	m.ObserveAI("x", nil)
	m.ObserveHTTP("GET", "", 200, time.Second)
	m.SyncConnected("host")
	m.SyncDisconnected("host")
	m.PartyCreated()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
