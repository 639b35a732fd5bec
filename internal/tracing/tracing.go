// Package tracing wires the reference HTTP harness into OpenTelemetry:
// a single process-wide TracerProvider exporting spans over OTLP/gRPC,
// grounded on the teacher's otel stack (go.opentelemetry.io/otel +
// otlptracegrpc + otel/sdk), which the teacher's own middleware imports
// but never ships the provider-setup package for.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "usedplus-core"

// Shutdown stops the TracerProvider and flushes any pending spans.
type Shutdown func(context.Context) error

// Init configures the global TracerProvider. If endpoint is empty, tracing
// is a no-op: spans are created against otel's default noop tracer and
// Init returns a Shutdown that does nothing. serviceName/environment tag
// every span's resource attributes.
func Init(ctx context.Context, endpoint, serviceName, environment string) (Shutdown, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("tracing: create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.DeploymentEnvironment(environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return func(shutdownCtx context.Context) error {
		return provider.Shutdown(shutdownCtx)
	}, nil
}

// StartSpan starts a span named name under the global tracer.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name)
}

// TraceIDFromContext extracts the hex trace ID of the span carried by ctx,
// or "" if ctx carries no valid span context.
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
