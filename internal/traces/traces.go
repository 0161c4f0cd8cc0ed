// Package traces wires OpenTelemetry tracing for docsum.
//
// Spans wrap the gated and billing-critical paths: usage admission,
// webhook reconciliation, uploads and summary generation. With no collector
// endpoint configured the global provider stays a no-op, so StartSpan is
// safe to call from tests and development servers.
package traces

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName = "docsum"
	tracerName  = "github.com/BharathiThanikonda/Multi-tenent-document-summarizer"
)

// Config selects the exporter and sampling for Init.
type Config struct {
	Endpoint    string  // OTLP gRPC collector; empty disables export
	Version     string  // reported as service.version
	Environment string  // reported as deployment.environment
	SampleRatio float64 // fraction of root spans kept; <= 0 or >= 1 keeps all
}

// ShutdownFunc flushes pending spans and stops the exporter.
type ShutdownFunc func(context.Context) error

// Init installs the global tracer provider described by cfg.
func Init(ctx context.Context, cfg Config, logger *slog.Logger) (ShutdownFunc, error) {
	if cfg.Endpoint == "" {
		logger.Info("tracing disabled (no OTEL_EXPORTER_OTLP_ENDPOINT set)")
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(cfg.Version),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	)
	otel.SetTracerProvider(tp)

	logger.Info("tracing enabled", "endpoint", cfg.Endpoint, "sample_ratio", cfg.SampleRatio)
	return tp.Shutdown, nil
}

// sampler keeps child spans with their parent's decision so a sampled
// webhook keeps its ledger write.
func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// StartSpan starts a span on the docsum tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// Fail marks the span as errored. A nil err leaves the span untouched.
func Fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Outcome records how a handled operation ended ("applied", "noop", ...).
func Outcome(span trace.Span, outcome string) {
	span.SetAttributes(attribute.String("docsum.outcome", outcome))
}

// TenantID tags a span with the acting tenant. Every tenant-scoped span
// carries it so traces can be filtered per customer.
func TenantID(id string) attribute.KeyValue {
	return attribute.String("tenant.id", id)
}

// EventID is the provider's webhook event id, the redelivery key.
func EventID(id string) attribute.KeyValue {
	return attribute.String("billing.event_id", id)
}

// EventType is the provider event type, e.g. checkout.session.completed.
func EventType(t string) attribute.KeyValue {
	return attribute.String("billing.event_type", t)
}

func DocumentID(id string) attribute.KeyValue {
	return attribute.String("document.id", id)
}

func SummaryStyle(style string) attribute.KeyValue {
	return attribute.String("summary.style", style)
}
