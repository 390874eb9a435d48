package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// FetchMeta describes a fetch issued on a cache miss.
type FetchMeta struct {
	Key      string   // cache key (required)
	Endpoint string   // logical endpoint name, e.g. "nmap" (optional)
	Tags     []string // tags the result will be stored under (optional)
}

// SpanName returns the span name for this fetch.
// Format: cache.fetch.<endpoint> or cache.fetch
func (m FetchMeta) SpanName() string {
	if m.Endpoint != "" {
		return "cache.fetch." + m.Endpoint
	}
	return "cache.fetch"
}

// attributes are shared by spans and metrics. The key is left off metrics
// because it is unbounded.
func (m FetchMeta) attributes() []attribute.KeyValue {
	if m.Endpoint == "" {
		return nil
	}
	return []attribute.KeyValue{attribute.String("cache.endpoint", m.Endpoint)}
}

// Tracer wraps OpenTelemetry tracing with fetch-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	StartSpan(ctx context.Context, meta FetchMeta) (context.Context, trace.Span)
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer over an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta FetchMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(),
		attribute.String("cache.key", meta.Key),
		attribute.Bool("cache.fetch.error", false),
	)
	if len(meta.Tags) > 0 {
		attrs = append(attrs, attribute.StringSlice("cache.tags", meta.Tags))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("cache.fetch.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NopTracer returns a Tracer whose spans are never recorded.
func NopTracer() Tracer {
	return &tracerImpl{tracer: tracenoop.NewTracerProvider().Tracer("noop")}
}
