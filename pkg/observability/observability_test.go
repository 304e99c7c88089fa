package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMetricsRecording_NilSafe(t *testing.T) {
	ctx := context.Background()

	// Zero-value instruments must be safe to record on.
	metrics := &PrometheusMetrics{}

	metrics.RecordSessionEnd(ctx, "completed", 2*time.Second)
	metrics.RecordReasoningStep(ctx, "tool")
	metrics.RecordToolExecution(ctx, "calculator", 50*time.Millisecond, nil)
	metrics.RecordLLMCall(ctx, "gpt-4o", 500*time.Millisecond, 100, 50, nil)
	metrics.RecordRetrieval(ctx, 20*time.Millisecond, 10, false)
	metrics.RecordIngest(ctx, "pdf", 12, nil)
	metrics.RecordHTTPRequest(ctx, "GET", "/v1/sessions", 200, 5*time.Millisecond)
}

func TestNoopMetrics(t *testing.T) {
	ctx := context.Background()
	var metrics Metrics = NoopMetrics{}

	metrics.RecordSessionEnd(ctx, "failed", time.Second)
	metrics.RecordToolExecution(ctx, "web_search", 50*time.Millisecond, nil)
	metrics.RecordLLMCall(ctx, "test-model", 300*time.Millisecond, 10, 5, nil)
}

func TestGlobalMetrics(t *testing.T) {
	ctx := context.Background()

	_ = GetGlobalMetrics()

	SetGlobalMetrics(NoopMetrics{})

	retrievedMetrics := GetGlobalMetrics()
	if retrievedMetrics == nil {
		t.Error("Expected non-nil metrics after SetGlobalMetrics")
	}

	retrievedMetrics.RecordReasoningStep(ctx, "retrieve")
}

func TestNoopManager(t *testing.T) {
	m := NoopManager()

	tracer := m.GetTracer("test")
	_, span := tracer.Start(context.Background(), "test_span")
	span.End()

	if m.GetMetrics() == nil {
		t.Error("NoopManager should return non-nil metrics")
	}
	if err := m.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestHTTPMiddleware(t *testing.T) {
	handler := HTTPMiddleware(nil, NoopMetrics{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/sessions", nil)

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "ok")
	}
}

func TestResponseWriter_CapturesStatusAndSize(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	wrapped.WriteHeader(http.StatusAccepted)
	wrapped.WriteHeader(http.StatusTeapot) // second call must be ignored
	n, _ := wrapped.Write([]byte("hello"))

	if wrapped.statusCode != http.StatusAccepted {
		t.Errorf("statusCode = %d, want %d", wrapped.statusCode, http.StatusAccepted)
	}
	if wrapped.bytesWritten != n {
		t.Errorf("bytesWritten = %d, want %d", wrapped.bytesWritten, n)
	}
}

func BenchmarkMetricsRecording(b *testing.B) {
	ctx := context.Background()
	metrics := &PrometheusMetrics{}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		metrics.RecordToolExecution(ctx, "calculator", 100*time.Millisecond, nil)
	}
}
