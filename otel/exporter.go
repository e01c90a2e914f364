package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// ExporterConfig configures the OTLP trace exporter.
type ExporterConfig struct {
	// Endpoint is the OTLP HTTP collector endpoint, e.g. "localhost:4318".
	Endpoint string

	// Insecure disables TLS for the exporter connection.
	Insecure bool
}

// SetupTracing builds an OTLP HTTP exporter and installs a batching tracer
// provider as the global provider. It returns a tracer for interpreter
// chains and a shutdown function that flushes pending spans.
func SetupTracing(ctx context.Context, cfg ExporterConfig) (trace.Tracer, func(context.Context) error, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("otel: create exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)

	return provider.Tracer("scriptflow"), provider.Shutdown, nil
}
