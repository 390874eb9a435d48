package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Eviction reasons recorded on cache.evictions.
const (
	EvictReasonCapacity    = "capacity"
	EvictReasonExpired     = "expired"
	EvictReasonInvalidated = "invalidated"
)

// Metrics records cache and fetch activity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly; recording never blocks on export.
// - Errors: implementations must not panic.
type Metrics interface {
	RecordHit(ctx context.Context)
	RecordMiss(ctx context.Context)
	RecordEviction(ctx context.Context, reason string, n int)
	RecordPersistError(ctx context.Context, op string)
	RecordFetch(ctx context.Context, meta FetchMeta, duration time.Duration, err error)
	RecordStale(ctx context.Context, meta FetchMeta)
}

type metricsImpl struct {
	hits          metric.Int64Counter
	misses        metric.Int64Counter
	evictions     metric.Int64Counter
	persistErrors metric.Int64Counter
	fetchTotal    metric.Int64Counter
	fetchErrors   metric.Int64Counter
	fetchStale    metric.Int64Counter
	fetchDuration metric.Float64Histogram
}

// NewMetrics creates the cache instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.hits, "cache.hits", "Cache lookups that returned a fresh entry", "{lookup}"},
		{&m.misses, "cache.misses", "Cache lookups that found no fresh entry", "{lookup}"},
		{&m.evictions, "cache.evictions", "Entries removed by capacity, expiry or invalidation", "{entry}"},
		{&m.persistErrors, "cache.persist.errors", "Snapshot reads or writes that failed", "{error}"},
		{&m.fetchTotal, "cache.fetch.total", "Fetches issued on cache miss", "{call}"},
		{&m.fetchErrors, "cache.fetch.errors", "Fetches that returned an error", "{error}"},
		{&m.fetchStale, "cache.fetch.stale", "Failed fetches answered from cached data", "{call}"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name,
			metric.WithDescription(c.desc),
			metric.WithUnit(c.unit),
		)
		if err != nil {
			return nil, err
		}
	}

	m.fetchDuration, err = meter.Float64Histogram(
		"cache.fetch.duration_ms",
		metric.WithDescription("Fetch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordHit(ctx context.Context)  { m.hits.Add(ctx, 1) }
func (m *metricsImpl) RecordMiss(ctx context.Context) { m.misses.Add(ctx, 1) }

func (m *metricsImpl) RecordEviction(ctx context.Context, reason string, n int) {
	if n <= 0 {
		return
	}
	m.evictions.Add(ctx, int64(n), metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *metricsImpl) RecordPersistError(ctx context.Context, op string) {
	m.persistErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *metricsImpl) RecordFetch(ctx context.Context, meta FetchMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(meta.attributes()...)

	m.fetchTotal.Add(ctx, 1, opt)
	if err != nil {
		m.fetchErrors.Add(ctx, 1, opt)
	}
	m.fetchDuration.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordStale(ctx context.Context, meta FetchMeta) {
	m.fetchStale.Add(ctx, 1, metric.WithAttributes(meta.attributes()...))
}

type nopMetrics struct{}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return nopMetrics{} }

func (nopMetrics) RecordHit(context.Context)                                     {}
func (nopMetrics) RecordMiss(context.Context)                                    {}
func (nopMetrics) RecordEviction(context.Context, string, int)                   {}
func (nopMetrics) RecordPersistError(context.Context, string)                    {}
func (nopMetrics) RecordFetch(context.Context, FetchMeta, time.Duration, error) {}
func (nopMetrics) RecordStale(context.Context, FetchMeta)                        {}
