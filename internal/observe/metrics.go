// Package observe provides the observability primitives of dialogic:
// OpenTelemetry metrics and tracing, trace-aware slog loggers, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and scraped
// through a Prometheus exporter set up by [InitProvider]. [DefaultMetrics]
// is a package-level instance on the global meter provider; tests should use
// [NewMetrics] with their own [metric.MeterProvider].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/dialogic"

// Metrics holds the metric instruments of the application. All fields are
// safe for concurrent use.
type Metrics struct {
	// TurnDuration is the time from receiving a message to producing its
	// response, including storage. Attributes: source, manager.
	TurnDuration metric.Float64Histogram

	// NLUDuration is the time spent resolving intents of one message.
	NLUDuration metric.Float64Histogram

	// StorageDuration is the latency of user-object reads and writes.
	// Attributes: backend, op.
	StorageDuration metric.Float64Histogram

	// Turns counts processed messages. Attributes: source, manager.
	Turns metric.Int64Counter

	// Dispatches counts cascade handler selections. Attribute: handler.
	Dispatches metric.Int64Counter

	// StorageErrors counts failed storage operations. Attributes: backend, op.
	StorageErrors metric.Int64Counter

	// ProviderRequests counts remote model calls. Attributes: provider,
	// kind, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts failed remote model calls. Attributes:
	// provider, kind.
	ProviderErrors metric.Int64Counter

	// ActiveSessions tracks open chat connections (websocket, mcp).
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request latency. Attributes: method, route, status.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets (seconds) cover in-process turns as well as remote storage.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histogram := func(name, desc string) (metric.Float64Histogram, error) {
		return m.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
	}
	if met.TurnDuration, err = histogram("dialogic.turn.duration", "Latency of a full dialog turn."); err != nil {
		return nil, err
	}
	if met.NLUDuration, err = histogram("dialogic.nlu.duration", "Latency of intent resolution."); err != nil {
		return nil, err
	}
	if met.StorageDuration, err = histogram("dialogic.storage.duration", "Latency of user-object storage operations."); err != nil {
		return nil, err
	}

	if met.Turns, err = m.Int64Counter("dialogic.turns",
		metric.WithDescription("Processed messages by source and answering manager."),
	); err != nil {
		return nil, err
	}
	if met.Dispatches, err = m.Int64Counter("dialogic.cascade.dispatches",
		metric.WithDescription("Cascade handler selections by handler name."),
	); err != nil {
		return nil, err
	}
	if met.StorageErrors, err = m.Int64Counter("dialogic.storage.errors",
		metric.WithDescription("Failed storage operations by backend and operation."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("dialogic.provider.requests",
		metric.WithDescription("Remote model requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("dialogic.provider.errors",
		metric.WithDescription("Remote model errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("dialogic.active_sessions",
		metric.WithDescription("Number of open chat connections."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("dialogic.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], created on first use
// from [otel.GetMeterProvider]. It panics if instrument creation fails,
// which does not happen with the global provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordTurn records one processed message.
func (m *Metrics) RecordTurn(ctx context.Context, source, manager string, d time.Duration) {
	attrs := metric.WithAttributes(Attr("source", source), Attr("manager", manager))
	m.Turns.Add(ctx, 1, attrs)
	m.TurnDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordDispatch records that a cascade selected handler.
func (m *Metrics) RecordDispatch(ctx context.Context, handler string) {
	m.Dispatches.Add(ctx, 1, metric.WithAttributes(Attr("handler", handler)))
}

// RecordStorage records a storage operation and counts it as failed when
// err is non-nil.
func (m *Metrics) RecordStorage(ctx context.Context, backend, op string, d time.Duration, err error) {
	attrs := metric.WithAttributes(Attr("backend", backend), Attr("op", op))
	m.StorageDuration.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		m.StorageErrors.Add(ctx, 1, attrs)
	}
}

// RecordProviderRequest records a remote model request.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		Attr("provider", provider),
		Attr("kind", kind),
		Attr("status", status),
	))
}

// RecordProviderError records a failed remote model request.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		Attr("provider", provider),
		Attr("kind", kind),
	))
}
