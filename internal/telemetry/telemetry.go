// Package telemetry wires optional OpenTelemetry tracing for session phases.
package telemetry

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

type Options struct {
	ServiceName string
	Version     string
	// Writer receives one JSON document per finished span; stderr when nil.
	Writer io.Writer
	Logger *zap.Logger
}

// Setup installs a global tracer provider that pretty-prints spans. The
// returned shutdown flushes pending spans.
func Setup(ctx context.Context, opts Options) (func(context.Context) error, error) {
	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "voxtype"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(opts.ServiceName),
			attribute.String("service.version", opts.Version),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(opts.Writer), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	opts.Logger.Debug("tracing enabled", zap.String("exporter", "stdout"))

	return tp.Shutdown, nil
}
