// Package observability provides OpenTelemetry tracing for the category
// registry.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the instrumentation scope for all semcat spans.
	TracerName = "github.com/hubenschmidt/go-semcat"
)

// TracingConfig configures the OpenTelemetry tracing.
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// OTLPEndpoint is the OTLP gRPC endpoint (e.g., "localhost:4317").
	// If empty, tracing is disabled.
	OTLPEndpoint string

	// SampleRate is the trace sampling rate (0.0 to 1.0).
	SampleRate float64
}

// DefaultTracingConfig returns a default tracing configuration.
func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		ServiceName:    "semcat",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		SampleRate:     1.0,
	}
}

// TracerProvider wraps the OpenTelemetry tracer provider.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing initializes OpenTelemetry tracing.
// Returns a no-op tracer if OTLPEndpoint is empty.
func InitTracing(ctx context.Context, cfg *TracingConfig) (*TracerProvider, error) {
	if cfg == nil {
		cfg = DefaultTracingConfig()
	}

	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{
			tracer: otel.Tracer(TracerName),
		}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SampleRate)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{
		provider: provider,
		tracer:   provider.Tracer(TracerName),
	}, nil
}

func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Shutdown flushes pending spans and stops the exporter.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}

// Tracer returns the underlying tracer.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

const (
	SpanKindStore   = "store"
	SpanKindCatalog = "catalog"
	SpanKindEmbed   = "embed"
	SpanKindIndex   = "index"
)

// StartStoreSpan starts a span for a versioned store operation
// (read, write or update).
func StartStoreSpan(ctx context.Context, op, path string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "store."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("semcat.span.kind", SpanKindStore),
			attribute.String("store.path", path),
		),
	)
}

// RecordAttempt adds an event for one coordinator attempt.
func RecordAttempt(span trace.Span, attempt int, version int64, outcome string) {
	span.AddEvent("attempt", trace.WithAttributes(
		attribute.Int("store.attempt", attempt),
		attribute.Int64("store.version", version),
		attribute.String("store.outcome", outcome),
	))
}

// StartCatalogSpan starts a span for a category service operation.
func StartCatalogSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "catalog."+op,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("semcat.span.kind", SpanKindCatalog),
		),
	)
}

// StartEmbedSpan starts a span for an embedding provider call.
func StartEmbedSpan(ctx context.Context, provider, model string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "embed",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("semcat.span.kind", SpanKindEmbed),
			attribute.String("embed.provider", provider),
			attribute.String("embed.model", model),
		),
	)
}

// StartIndexSpan starts a span for a mirror index call.
func StartIndexSpan(ctx context.Context, op, backend string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "index."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("semcat.span.kind", SpanKindIndex),
			attribute.String("index.backend", backend),
		),
	)
}

// RecordSearchResult records the result size and best score of a search.
func RecordSearchResult(span trace.Span, count int, best float64) {
	span.SetAttributes(
		attribute.Int("search.result_count", count),
		attribute.Float64("search.best_score", best),
	)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
