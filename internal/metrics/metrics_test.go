package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveReconcile(ResultCreated, "gateway")
	m.ObserveReconcile(ResultDuplicate, "manual")
	m.ObservePayout(ResultCreated, 3000, false)
	m.ObservePayout(ResultCreated, 3000, true)
	m.ObservePayout(ResultRejected, 0, false)

	if got := testutil.ToFloat64(m.PaymentsReconciled.WithLabelValues(ResultCreated, "gateway")); got != 1 {
		t.Errorf("expected 1 created payment, got %v", got)
	}
	if got := testutil.ToFloat64(m.PayoutAmount); got != 6000 {
		t.Errorf("expected 6000 disbursed, got %v", got)
	}
	if got := testutil.ToFloat64(m.GroupsClosed); got != 1 {
		t.Errorf("expected 1 closed group, got %v", got)
	}
	if got := testutil.ToFloat64(m.PayoutsProcessed.WithLabelValues(ResultRejected)); got != 1 {
		t.Errorf("expected 1 rejected payout, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveReconcile(ResultCreated, "gateway")
	m.ObservePayout(ResultCreated, 10, true)
	m.ObserveRPC("/kameti.v1.KametiService/GetGroup", "ok", 0.01)
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRPC("/kameti.v1.KametiService/GetGroup", "ok", 0.01)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "kameti_rpc_duration_seconds") {
		t.Errorf("expected rpc histogram in output")
	}
}
