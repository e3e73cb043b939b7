package otel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PankindProjects/pankind"
	"github.com/PankindProjects/pankind/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

var (
	OtelEnabled  = config.GenFlag("integrations.otel.enabled", false, "Enable OpenTelemetry trace collection")
	OtelEndpoint = config.GenFlag[string]("integrations.otel.endpoint", "localhost:4317", "OTLP gRPC endpoint for trace export")
)

// InitTracing registers the global tracer provider, which the pgx and chi
// instrumentation pick up on their own. The returned shutdown function
// flushes pending spans.
func InitTracing(ctx context.Context) (func(context.Context) error, error) {
	if !OtelEnabled.Value() {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(OtelEndpoint.Value()),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("couldn't create OTLP trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(resource.NewSchemaless(
			semconv.ServiceName("pankind"),
			semconv.ServiceVersion(pankind.Version),
		)),
	)
	otel.SetTracerProvider(tp)

	slog.InfoContext(ctx, "OpenTelemetry tracing enabled", slog.String("endpoint", OtelEndpoint.Value()))
	return tp.Shutdown, nil
}
