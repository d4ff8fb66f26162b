package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRequest(t *testing.T) {
	RecordRequest("GET", "/health", 200, 100*time.Millisecond)
	RecordRequest("POST", "/v1/reminders/run", 409, 10*time.Millisecond)
}

func TestRecordRun(t *testing.T) {
	before := testutil.ToFloat64(reminderRuns.WithLabelValues(RunAborted))
	RecordRun(RunAborted)
	if got := testutil.ToFloat64(reminderRuns.WithLabelValues(RunAborted)); got != before+1 {
		t.Errorf("expected aborted runs to increase by 1, got %v -> %v", before, got)
	}
}

func TestRecordAttempt(t *testing.T) {
	before := testutil.ToFloat64(reminderAttempts.WithLabelValues("africastalking", "FAILED"))
	RecordAttempt("africastalking", "FAILED")
	RecordAttempt("africastalking", "SUCCESS")
	if got := testutil.ToFloat64(reminderAttempts.WithLabelValues("africastalking", "FAILED")); got != before+1 {
		t.Errorf("expected failed attempts to increase by 1, got %v -> %v", before, got)
	}
}

func TestRecordSkipped(t *testing.T) {
	RecordSkipped("before cutoff (17:00 day before)")
	RecordSkipped("appointment time has passed")
}

func TestRecordGatewayLatency(t *testing.T) {
	RecordGatewayLatency("africastalking", 500*time.Millisecond)
	RecordGatewayLatency("sns", 200*time.Millisecond)
}

func TestGauges(t *testing.T) {
	SetLastRunCandidates(12)
	if got := testutil.ToFloat64(lastRunCandidates); got != 12 {
		t.Errorf("expected 12 candidates, got %v", got)
	}

	SetBreakerState("africastalking", 1)
	if got := testutil.ToFloat64(breakerState.WithLabelValues("africastalking")); got != 1 {
		t.Errorf("expected breaker state 1, got %v", got)
	}
}

func TestRecordRateLimitRejection(t *testing.T) {
	before := testutil.ToFloat64(rateLimitRejections.WithLabelValues("admin_api"))
	RecordRateLimitRejection("admin_api")
	if got := testutil.ToFloat64(rateLimitRejections.WithLabelValues("admin_api")); got != before+1 {
		t.Errorf("expected %v rejections, got %v", before+1, got)
	}
}

func TestPush(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	RecordRun(RunCompleted)
	if err := Push(srv.URL, "clinicflow_reminders"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if method != http.MethodPut {
		t.Errorf("expected PUT, got %s", method)
	}
	if !strings.Contains(path, "/metrics/job/clinicflow_reminders") {
		t.Errorf("unexpected push path %s", path)
	}
}

func TestPush_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := Push(srv.URL, "clinicflow_reminders"); err == nil {
		t.Error("expected push error on 500")
	}
}

func TestHandler(t *testing.T) {
	handler := Handler()
	if handler == nil {
		t.Fatal("Handler should not return nil")
	}

	RecordRun(RunCompleted)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "clinicflow_reminder_runs_total") {
		t.Error("expected reminder run counter in metrics output")
	}
}

func TestMiddleware(t *testing.T) {
	innerCalled := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		innerCalled = true
		w.WriteHeader(http.StatusAccepted)
	})

	handler := Middleware(inner)
	req := httptest.NewRequest("POST", "/v1/reminders/run", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if !innerCalled {
		t.Error("inner handler should have been called")
	}
	if rec.Code != http.StatusAccepted {
		t.Errorf("expected status 202, got %d", rec.Code)
	}
}

func TestResponseWriter_ExplicitStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, status: http.StatusOK}

	rw.WriteHeader(http.StatusNotFound)

	if rw.status != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rw.status)
	}
}
