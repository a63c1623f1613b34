package daemon

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DaemonMetrics holds operational metrics using OTEL semantic conventions
type DaemonMetrics struct {
	triggers        metric.Int64Counter
	triggerDuration metric.Float64Histogram
}

// NewDaemonMetrics creates daemon metrics on the global meter provider.
func NewDaemonMetrics() (*DaemonMetrics, error) {
	meter := otel.Meter("snooze.daemon")

	triggers, err := meter.Int64Counter(
		"snooze.daemon.triggers",
		metric.WithDescription("Number of scheduled runs fired"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	triggerDuration, err := meter.Float64Histogram(
		"snooze.daemon.trigger.duration",
		metric.WithDescription("Duration of scheduled runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &DaemonMetrics{
		triggers:        triggers,
		triggerDuration: triggerDuration,
	}, nil
}

// RecordTrigger records a fired run with its status
func (m *DaemonMetrics) RecordTrigger(ctx context.Context, action, status string) {
	m.triggers.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("action", action),
			attribute.String("status", status),
		),
	)
}

// RecordTriggerDuration records how long a fired run took
func (m *DaemonMetrics) RecordTriggerDuration(ctx context.Context, durationSeconds float64, action string) {
	m.triggerDuration.Record(ctx, durationSeconds,
		metric.WithAttributes(
			attribute.String("action", action),
		),
	)
}
