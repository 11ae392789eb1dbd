package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/pricescout"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Sync metrics
	SnapshotLoadsTotal       metric.Int64Counter
	SnapshotLoadDuration     metric.Float64Histogram
	SnapshotsDiscardedTotal  metric.Int64Counter
	ChangeEventsAppliedTotal metric.Int64Counter
	ChangeEventsQueuedTotal  metric.Int64Counter
	ChangeEventsDroppedTotal metric.Int64Counter
	ActiveSubscriptions      metric.Int64UpDownCounter

	// Auth metrics
	AuthEventsTotal        metric.Int64Counter
	SessionBootstrapsTotal metric.Int64Counter

	// Channel metrics
	ChannelOverflowTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	// Sync metrics
	m.SnapshotLoadsTotal, _ = meter.Int64Counter(
		"pricescout.sync.snapshots.total",
		metric.WithDescription("Total number of snapshot loads issued"),
		metric.WithUnit("{snapshot}"),
	)

	m.SnapshotLoadDuration, _ = meter.Float64Histogram(
		"pricescout.sync.snapshots.duration",
		metric.WithDescription("Duration of snapshot loads"),
		metric.WithUnit("ms"),
	)

	m.SnapshotsDiscardedTotal, _ = meter.Int64Counter(
		"pricescout.sync.snapshots.discarded.total",
		metric.WithDescription("Total number of snapshot results discarded by the stale-scope guard"),
		metric.WithUnit("{snapshot}"),
	)

	m.ChangeEventsAppliedTotal, _ = meter.Int64Counter(
		"pricescout.sync.events.applied.total",
		metric.WithDescription("Total number of change events merged into local collections"),
		metric.WithUnit("{event}"),
	)

	m.ChangeEventsQueuedTotal, _ = meter.Int64Counter(
		"pricescout.sync.events.queued.total",
		metric.WithDescription("Total number of change events queued while seeding"),
		metric.WithUnit("{event}"),
	)

	m.ChangeEventsDroppedTotal, _ = meter.Int64Counter(
		"pricescout.sync.events.dropped.total",
		metric.WithDescription("Total number of change events dropped (stale generation or decode failure)"),
		metric.WithUnit("{event}"),
	)

	m.ActiveSubscriptions, _ = meter.Int64UpDownCounter(
		"pricescout.sync.subscriptions.active",
		metric.WithDescription("Number of open change feed subscriptions"),
		metric.WithUnit("{subscription}"),
	)

	// Auth metrics
	m.AuthEventsTotal, _ = meter.Int64Counter(
		"pricescout.auth.events.total",
		metric.WithDescription("Total number of auth-state events delivered"),
		metric.WithUnit("{event}"),
	)

	m.SessionBootstrapsTotal, _ = meter.Int64Counter(
		"pricescout.auth.bootstraps.total",
		metric.WithDescription("Total number of session bootstrap attempts"),
		metric.WithUnit("{bootstrap}"),
	)

	// Channel metrics
	m.ChannelOverflowTotal, _ = meter.Int64Counter(
		"pricescout.channels.overflow.total",
		metric.WithDescription("Total number of channel overflow events (dropped events)"),
		metric.WithUnit("{event}"),
	)

	return m
}
