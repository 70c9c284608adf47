package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "partyledger"

// Metrics holds all live-event metric instruments.
type Metrics struct {
	EventsPublished metric.Int64Counter
	EventsDelivered metric.Int64Counter
	EventsDropped   metric.Int64Counter
	EventsReplayed  metric.Int64Counter
	Heartbeats      metric.Int64Counter
	Subscribers     metric.Int64UpDownCounter
	StreamDuration  metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsFrom(otel.GetMeterProvider())
}

// NewMetricsFrom creates all metric instruments on the given provider.
func NewMetricsFrom(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(meterName)
	m := &Metrics{}
	var err error

	m.EventsPublished, err = meter.Int64Counter("partyledger.events.published",
		metric.WithDescription("Number of events published to a topic"))
	if err != nil {
		return nil, err
	}

	m.EventsDelivered, err = meter.Int64Counter("partyledger.events.delivered",
		metric.WithDescription("Number of events enqueued into subscriber mailboxes"))
	if err != nil {
		return nil, err
	}

	m.EventsDropped, err = meter.Int64Counter("partyledger.events.dropped",
		metric.WithDescription("Number of deliveries skipped because the mailbox was gone"))
	if err != nil {
		return nil, err
	}

	m.EventsReplayed, err = meter.Int64Counter("partyledger.events.replayed",
		metric.WithDescription("Number of events replayed to reconnecting viewers"))
	if err != nil {
		return nil, err
	}

	m.Heartbeats, err = meter.Int64Counter("partyledger.heartbeats",
		metric.WithDescription("Number of heartbeat events emitted"))
	if err != nil {
		return nil, err
	}

	m.Subscribers, err = meter.Int64UpDownCounter("partyledger.subscribers",
		metric.WithDescription("Number of live subscriptions"))
	if err != nil {
		return nil, err
	}

	m.StreamDuration, err = meter.Float64Histogram("partyledger.stream.duration_seconds",
		metric.WithDescription("Lifetime of a viewer stream in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
