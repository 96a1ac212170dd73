package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OTel TracerProvider configured with the stdout span
// exporter, so every forwarded message's span is visible in the
// proxy's own log stream without standing up a collector.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer builds a Tracer writing spans to w (typically os.Stderr, so
// it does not interleave with the proxied stdio traffic on stdout).
func NewTracer(w io.Writer, serviceName string) (*Tracer, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry: stdout exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer("github.com/sentinel-gate/mcprelay/internal/telemetry"),
	}, nil
}

// SpanForMessage starts and immediately ends a span describing one
// forwarded message, carrying its direction, method, and whether it was
// modified as attributes.
func (t *Tracer) SpanForMessage(ctx context.Context, direction, method, proxyID string, modified bool) {
	_, span := t.tracer.Start(ctx, "proxy.forward",
		trace.WithAttributes(
			attribute.String("mcprelay.direction", direction),
			attribute.String("mcprelay.method", method),
			attribute.String("mcprelay.proxy_id", proxyID),
			attribute.Bool("mcprelay.modified", modified),
		),
	)
	span.End()
}

// Shutdown flushes pending spans and releases the exporter.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
