package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/veraxis/scout/pkg/config"
)

// InitMetrics builds the scout metric instruments on an OTel meter
// backed by the Prometheus exporter. When disabled, instruments stay
// nil and every record call is a no-op.
func InitMetrics(ctx context.Context, cfg config.MetricsConfig) (*PrometheusMetrics, error) {
	if !config.BoolValue(cfg.Enabled, true) {
		return &PrometheusMetrics{}, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)

	meter := meterProvider.Meter("scout")

	sessionDuration, err := meter.Float64Histogram(
		"scout_session_duration_seconds",
		metric.WithDescription("Research session duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session duration histogram: %w", err)
	}

	sessionsTotal, err := meter.Int64Counter(
		"scout_sessions_total",
		metric.WithDescription("Total research sessions by terminal status"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions counter: %w", err)
	}

	stepsTotal, err := meter.Int64Counter(
		"scout_reasoning_steps_total",
		metric.WithDescription("Total reasoning steps by action kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reasoning steps counter: %w", err)
	}

	toolDuration, err := meter.Float64Histogram(
		"scout_tool_execution_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool duration histogram: %w", err)
	}

	toolCalls, err := meter.Int64Counter(
		"scout_tool_calls_total",
		metric.WithDescription("Total tool calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool calls counter: %w", err)
	}

	toolErrors, err := meter.Int64Counter(
		"scout_tool_errors_total",
		metric.WithDescription("Total tool errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool errors counter: %w", err)
	}

	llmDuration, err := meter.Float64Histogram(
		"scout_llm_request_duration_seconds",
		metric.WithDescription("LLM request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm duration histogram: %w", err)
	}

	llmInputTokens, err := meter.Int64Counter(
		"scout_llm_tokens_input_total",
		metric.WithDescription("Total input tokens sent to the LLM"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm input tokens counter: %w", err)
	}

	llmOutputTokens, err := meter.Int64Counter(
		"scout_llm_tokens_output_total",
		metric.WithDescription("Total output tokens from the LLM"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm output tokens counter: %w", err)
	}

	llmErrors, err := meter.Int64Counter(
		"scout_llm_errors_total",
		metric.WithDescription("Total LLM errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm errors counter: %w", err)
	}

	retrievalDuration, err := meter.Float64Histogram(
		"scout_retrieval_duration_seconds",
		metric.WithDescription("Hybrid retrieval duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retrieval duration histogram: %w", err)
	}

	retrievalResults, err := meter.Int64Counter(
		"scout_retrieval_results_total",
		metric.WithDescription("Total evidence items returned"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retrieval results counter: %w", err)
	}

	retrievalDegraded, err := meter.Int64Counter(
		"scout_retrieval_degraded_total",
		metric.WithDescription("Retrievals served with one backend unavailable"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retrieval degraded counter: %w", err)
	}

	ingestDocuments, err := meter.Int64Counter(
		"scout_ingest_documents_total",
		metric.WithDescription("Total documents ingested by type"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest documents counter: %w", err)
	}

	ingestChunks, err := meter.Int64Counter(
		"scout_ingest_chunks_total",
		metric.WithDescription("Total chunks produced by ingestion"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest chunks counter: %w", err)
	}

	ingestErrors, err := meter.Int64Counter(
		"scout_ingest_errors_total",
		metric.WithDescription("Total ingestion failures"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest errors counter: %w", err)
	}

	httpDuration, err := meter.Float64Histogram(
		"scout_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	httpRequests, err := meter.Int64Counter(
		"scout_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}

	return &PrometheusMetrics{
		sessionDuration:   sessionDuration,
		sessionsTotal:     sessionsTotal,
		stepsTotal:        stepsTotal,
		toolDuration:      toolDuration,
		toolCallsTotal:    toolCalls,
		toolErrorsTotal:   toolErrors,
		llmDuration:       llmDuration,
		llmInputTokens:    llmInputTokens,
		llmOutputTokens:   llmOutputTokens,
		llmErrorsTotal:    llmErrors,
		retrievalDuration: retrievalDuration,
		retrievalResults:  retrievalResults,
		retrievalDegraded: retrievalDegraded,
		ingestDocuments:   ingestDocuments,
		ingestChunks:      ingestChunks,
		ingestErrors:      ingestErrors,
		httpDuration:      httpDuration,
		httpRequests:      httpRequests,
	}, nil
}

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
