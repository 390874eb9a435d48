package observe

import (
	"context"
	"time"
)

// FetchFunc loads a value on cache miss.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Middleware wraps fetches with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap returns a FetchFunc safe for concurrent use.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced with no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// Metrics returns the metrics sink used by the middleware.
func (m *Middleware) Metrics() Metrics { return m.metrics }

// Logger returns the logger used by the middleware.
func (m *Middleware) Logger() Logger { return m.logger }

// Wrap instruments fn for the fetch described by meta.
func (m *Middleware) Wrap(meta FetchMeta, fn FetchFunc) FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		data, err := fn(ctx)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordFetch(ctx, meta, duration, err)

		fields := []Field{
			{Key: "key", Value: meta.Key},
			{Key: "duration_ms", Value: float64(duration.Milliseconds())},
		}
		if meta.Endpoint != "" {
			fields = append(fields, Field{Key: "endpoint", Value: meta.Endpoint})
		}
		if err != nil {
			fields = append(fields, Err(err))
			m.logger.Error(ctx, "fetch failed", fields...)
		} else {
			fields = append(fields, Field{Key: "bytes", Value: len(data)})
			m.logger.Debug(ctx, "fetch completed", fields...)
		}

		return data, err
	}
}

// MiddlewareFromObserver creates a Middleware sharing the observer's tracer,
// metrics and logger.
func MiddlewareFromObserver(obs Observer) *Middleware {
	return NewMiddleware(NewTracer(obs.Tracer()), obs.Metrics(), obs.Logger().WithComponent("fetch"))
}
