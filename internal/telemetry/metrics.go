package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/Pharbi/arachnid/internal/config"
)

// MeterProvider tracks resonance runtime activity through the OTel metrics
// API, reported through the same Prometheus registry the coordination
// package's direct collectors use.
type MeterProvider struct {
	meter metric.Meter

	signalsDelivered metric.Int64Counter
	resonanceScore   metric.Float64Histogram
	agentsActive     metric.Int64UpDownCounter
	validationRuns   metric.Int64Counter
}

// NewMeterProvider builds a MeterProvider. When cfg.TelemetryEnable is
// false every recorder is a no-op (nil instruments, guarded at the call
// site) so callers never need to check enablement themselves.
func NewMeterProvider(cfg config.RuntimeConfig) (*MeterProvider, error) {
	if !cfg.TelemetryEnable {
		return &MeterProvider{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("telemetry: create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter("arachnid")

	signalsDelivered, err := meter.Int64Counter("arachnid.signals.delivered",
		metric.WithDescription("Signals delivered to an agent during propagation"),
		metric.WithUnit("{signal}"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: signals_delivered counter: %w", err)
	}
	resonanceScore, err := meter.Float64Histogram("arachnid.resonance.score",
		metric.WithDescription("Effective resonance (cosine similarity times amplitude) per delivery"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: resonance_score histogram: %w", err)
	}
	agentsActive, err := meter.Int64UpDownCounter("arachnid.agents.active",
		metric.WithDescription("Agents currently in the Active state"),
		metric.WithUnit("{agent}"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: agents_active counter: %w", err)
	}
	validationRuns, err := meter.Int64Counter("arachnid.validation.runs",
		metric.WithDescription("Validation calls made against the LLM collaborator"),
		metric.WithUnit("{run}"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: validation_runs counter: %w", err)
	}

	return &MeterProvider{
		meter:            meter,
		signalsDelivered: signalsDelivered,
		resonanceScore:   resonanceScore,
		agentsActive:     agentsActive,
		validationRuns:   validationRuns,
	}, nil
}

// RecordDelivery records one propagator delivery's resonance score.
func (m *MeterProvider) RecordDelivery(ctx context.Context, webID string, score float64, activated bool) {
	if m.signalsDelivered == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("web_id", webID), attribute.Bool("activated", activated))
	m.signalsDelivered.Add(ctx, 1, attrs)
	m.resonanceScore.Record(ctx, score, attrs)
}

// AgentActivated/AgentDeactivated track the active-agent gauge.
func (m *MeterProvider) AgentActivated(ctx context.Context) {
	if m.agentsActive == nil {
		return
	}
	m.agentsActive.Add(ctx, 1)
}

func (m *MeterProvider) AgentDeactivated(ctx context.Context) {
	if m.agentsActive == nil {
		return
	}
	m.agentsActive.Add(ctx, -1)
}

// RecordValidation records one validation call's judgment outcome.
func (m *MeterProvider) RecordValidation(ctx context.Context, judgment string) {
	if m.validationRuns == nil {
		return
	}
	m.validationRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("judgment", judgment)))
}
