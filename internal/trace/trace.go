// Package trace owns the process tracer. Spans go to the stdout exporter and
// carry the bot's mode and instrument set as resource attributes.
package trace

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultServiceName = "fx-analyst-bot"
	serviceVersion     = "1.0.0"
)

// Options come from the tracing section of the bot config.
type Options struct {
	Enabled     bool
	Pretty      bool
	ServiceName string
	// Mode is LIVE or DRY_RUN, recorded as deployment.environment
	Mode  string
	Pairs []string
	// Writer defaults to stdout
	Writer io.Writer
}

var (
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider
	enabled        bool
)

// Init installs the global tracer provider. With tracing disabled every span
// is a no-op and GetTraceFields reports nothing.
func Init(opts Options) error {
	tracer, tracerProvider, enabled = nil, nil, false
	if !opts.Enabled {
		return nil
	}
	if opts.ServiceName == "" {
		opts.ServiceName = DefaultServiceName
	}

	var exportOpts []stdouttrace.Option
	if opts.Pretty {
		exportOpts = append(exportOpts, stdouttrace.WithPrettyPrint())
	}
	if opts.Writer != nil {
		exportOpts = append(exportOpts, stdouttrace.WithWriter(opts.Writer))
	}
	exporter, err := stdouttrace.New(exportOpts...)
	if err != nil {
		return err
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(resourceAttributes(opts)...),
	)
	if err != nil {
		return err
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	tracer = tracerProvider.Tracer(opts.ServiceName)
	enabled = true
	return nil
}

func resourceAttributes(opts Options) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(serviceVersion),
	}
	if opts.Mode != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(opts.Mode))
	}
	if len(opts.Pairs) > 0 {
		attrs = append(attrs, attribute.StringSlice("fx.pairs", opts.Pairs))
	}
	return attrs
}

// Shutdown flushes buffered spans.
func Shutdown(ctx context.Context) error {
	if tracerProvider != nil {
		return tracerProvider.Shutdown(ctx)
	}
	return nil
}

func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !enabled || tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName, opts...)
}

func Enabled() bool {
	return enabled
}

// GetTraceFields returns the ids of the span in ctx for log correlation.
func GetTraceFields(ctx context.Context) (traceID, spanID string, ok bool) {
	if !enabled {
		return "", "", false
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", "", false
	}
	return sc.TraceID().String(), sc.SpanID().String(), true
}
