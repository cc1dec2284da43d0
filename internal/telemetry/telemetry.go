// Package telemetry wires OpenTelemetry tracing for the linking flow.
package telemetry

import (
	"context"

	"github.com/brizzai/linkedin-link/internal/config"
	"github.com/brizzai/linkedin-link/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// TracerName names the tracer every span in this service comes from.
const TracerName = "github.com/brizzai/linkedin-link"

// Setup initialises OpenTelemetry tracing.
//
// Tracing is opt-in: with an empty OTLP endpoint Setup returns a no-op
// shutdown function and no global provider is registered.
func Setup(ctx context.Context, cfg *config.TelemetryConfig) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if cfg.OTLPEndpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint),
	)
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// NewTracer sets up tracing and flushes it when the app stops.
func NewTracer(lc fx.Lifecycle, cfg *config.TelemetryConfig) (trace.Tracer, error) {
	shutdown, err := Setup(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	if cfg.OTLPEndpoint != "" {
		logger.Info("Exporting traces", zap.String("endpoint", cfg.OTLPEndpoint))
	}
	lc.Append(fx.StopHook(shutdown))
	return otel.Tracer(TracerName), nil
}

// Module provides the tracer
var Module = fx.Module("telemetry",
	fx.Provide(NewTracer),
)
