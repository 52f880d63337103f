package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/mailroster"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Lifecycle operation metrics
	OperationsTotal   metric.Int64Counter
	OperationDuration metric.Float64Histogram
	ConflictsTotal    metric.Int64Counter

	// Ledger metrics
	EventsAppendedTotal metric.Int64Counter

	// Reassignment metrics
	ReassignmentsTotal  metric.Int64Counter
	PrincipalSwapsTotal metric.Int64Counter
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

	m.OperationsTotal, _ = meter.Int64Counter(
		"mailroster.lifecycle.operations.total",
		metric.WithDescription("Total number of lifecycle operations by operation and outcome"),
		metric.WithUnit("{operation}"),
	)

	m.OperationDuration, _ = meter.Float64Histogram(
		"mailroster.lifecycle.operation.duration",
		metric.WithDescription("Duration of lifecycle operations"),
		metric.WithUnit("ms"),
	)

	m.ConflictsTotal, _ = meter.Int64Counter(
		"mailroster.lifecycle.conflicts.total",
		metric.WithDescription("Total number of operations that lost a concurrent modification race"),
		metric.WithUnit("{conflict}"),
	)

	m.EventsAppendedTotal, _ = meter.Int64Counter(
		"mailroster.ledger.events.appended.total",
		metric.WithDescription("Total number of ownership events appended to the ledger"),
		metric.WithUnit("{event}"),
	)

	m.ReassignmentsTotal, _ = meter.Int64Counter(
		"mailroster.accounts.reassigned.total",
		metric.WithDescription("Total number of accounts reassigned to a new owner"),
		metric.WithUnit("{account}"),
	)

	m.PrincipalSwapsTotal, _ = meter.Int64Counter(
		"mailroster.accounts.principal_swaps.total",
		metric.WithDescription("Total number of principal demote-then-promote sequences"),
		metric.WithUnit("{swap}"),
	)

	return m
}
