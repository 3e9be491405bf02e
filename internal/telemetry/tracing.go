// Package telemetry wires the coordination runtime into OpenTelemetry
// tracing and metrics: an exporter-selectable TracerProvider and a
// Prometheus-backed OTel MeterProvider, both no-ops when disabled.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Pharbi/arachnid/internal/config"
)

// TracerProvider wraps an OpenTelemetry SDK tracer provider, or a noop one
// when tracing is disabled.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracerProvider builds a TracerProvider from cfg's telemetry fields.
// With TelemetryEnable false it yields a noop tracer whatever the exporter.
// When enabled, cfg.TracingExporter selects "otlp" or "zipkin"; any other
// value is an error.
func NewTracerProvider(cfg config.RuntimeConfig) (*TracerProvider, error) {
	if !cfg.TelemetryEnable {
		return &TracerProvider{tracer: noop.NewTracerProvider().Tracer("arachnid")}, nil
	}

	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.TracingExporter {
	case "otlp":
		exporter, err = otlptracehttp.New(context.Background(), otlptracehttp.WithEndpoint("localhost:4318"), otlptracehttp.WithInsecure())
	case "zipkin":
		exporter, err = zipkin.New("http://localhost:9411/api/v2/spans")
	default:
		return nil, fmt.Errorf("telemetry: unsupported tracing exporter %q", cfg.TracingExporter)
	}
	if err != nil {
		return nil, fmt.Errorf("telemetry: create exporter: %w", err)
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(
		semconv.ServiceName("arachnid"),
		semconv.ServiceVersion("dev"),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)

	return &TracerProvider{provider: provider, tracer: provider.Tracer("arachnid")}, nil
}

// Tracer returns the wrapped tracer.
func (tp *TracerProvider) Tracer() trace.Tracer { return tp.tracer }

// Shutdown flushes and closes the underlying SDK provider, if any.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}
