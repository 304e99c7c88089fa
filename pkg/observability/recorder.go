package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	globalMetrics Metrics
	metricsMu     sync.RWMutex
)

// Metrics is the recording surface the engine, executor, retriever, and
// ingest pipeline report through.
type Metrics interface {
	RecordSessionEnd(ctx context.Context, status string, duration time.Duration)
	RecordReasoningStep(ctx context.Context, actionKind string)
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error)
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)
	RecordRetrieval(ctx context.Context, duration time.Duration, results int, degraded bool)
	RecordIngest(ctx context.Context, docType string, chunks int, err error)
	RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration)
}

// PrometheusMetrics implements Metrics over OTel instruments. A zero
// value is a safe no-op.
type PrometheusMetrics struct {
	sessionDuration metric.Float64Histogram
	sessionsTotal   metric.Int64Counter
	stepsTotal      metric.Int64Counter

	toolDuration    metric.Float64Histogram
	toolCallsTotal  metric.Int64Counter
	toolErrorsTotal metric.Int64Counter

	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrorsTotal  metric.Int64Counter

	retrievalDuration metric.Float64Histogram
	retrievalResults  metric.Int64Counter
	retrievalDegraded metric.Int64Counter

	ingestDocuments metric.Int64Counter
	ingestChunks    metric.Int64Counter
	ingestErrors    metric.Int64Counter

	httpDuration metric.Float64Histogram
	httpRequests metric.Int64Counter
}

func (m *PrometheusMetrics) RecordSessionEnd(ctx context.Context, status string, duration time.Duration) {
	if m == nil || m.sessionDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("status", status),
	}

	m.sessionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.sessionsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *PrometheusMetrics) RecordReasoningStep(ctx context.Context, actionKind string) {
	if m == nil || m.stepsTotal == nil {
		return
	}

	m.stepsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", actionKind)))
}

func (m *PrometheusMetrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error) {
	if m == nil || m.toolDuration == nil || m.toolCallsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool", tool),
	}

	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.toolCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	if err != nil && m.toolErrorsTotal != nil {
		m.toolErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil || m.llmDuration == nil || m.llmInputTokens == nil || m.llmOutputTokens == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("model", model),
	}

	m.llmDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.llmInputTokens.Add(ctx, int64(inputTokens), metric.WithAttributes(attrs...))
	m.llmOutputTokens.Add(ctx, int64(outputTokens), metric.WithAttributes(attrs...))

	if err != nil && m.llmErrorsTotal != nil {
		m.llmErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordRetrieval(ctx context.Context, duration time.Duration, results int, degraded bool) {
	if m == nil || m.retrievalDuration == nil {
		return
	}

	m.retrievalDuration.Record(ctx, duration.Seconds())
	m.retrievalResults.Add(ctx, int64(results))

	if degraded && m.retrievalDegraded != nil {
		m.retrievalDegraded.Add(ctx, 1)
	}
}

func (m *PrometheusMetrics) RecordIngest(ctx context.Context, docType string, chunks int, err error) {
	if m == nil || m.ingestDocuments == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("type", docType),
	}

	m.ingestDocuments.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.ingestChunks.Add(ctx, int64(chunks), metric.WithAttributes(attrs...))

	if err != nil && m.ingestErrors != nil {
		m.ingestErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", statusCode),
	}

	m.httpDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.httpRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// NoopMetrics discards every record call.
type NoopMetrics struct{}

func (NoopMetrics) RecordSessionEnd(context.Context, string, time.Duration)        {}
func (NoopMetrics) RecordReasoningStep(context.Context, string)                    {}
func (NoopMetrics) RecordToolExecution(context.Context, string, time.Duration, error) {
}
func (NoopMetrics) RecordLLMCall(context.Context, string, time.Duration, int, int, error) {
}
func (NoopMetrics) RecordRetrieval(context.Context, time.Duration, int, bool) {}
func (NoopMetrics) RecordIngest(context.Context, string, int, error)          {}
func (NoopMetrics) RecordHTTPRequest(context.Context, string, string, int, time.Duration) {
}

var (
	_ Metrics = (*PrometheusMetrics)(nil)
	_ Metrics = NoopMetrics{}
)

// SetGlobalMetrics installs the process-wide metrics recorder.
func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the process-wide metrics recorder, or a noop
// when none is installed.
func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	if globalMetrics == nil {
		return NoopMetrics{}
	}
	return globalMetrics
}
