package emitter

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/yairfalse/snooze/pkg/resource"
)

// MetricsEmitter exposes the latest summary per action as OTEL gauges,
// scraped through the daemon's Prometheus endpoint.
type MetricsEmitter struct {
	meter metric.Meter

	// Metrics
	lastRunTimestamp metric.Float64ObservableGauge
	lastRunResources metric.Int64ObservableGauge
	runsTotal        metric.Int64Counter

	// State for observable gauges
	mu   sync.RWMutex
	last map[resource.Action]*Summary
}

// NewMetricsEmitter creates a metrics emitter on the global meter provider.
func NewMetricsEmitter() (*MetricsEmitter, error) {
	e := &MetricsEmitter{
		meter: otel.Meter("snooze.emitter"),
		last:  make(map[resource.Action]*Summary),
	}

	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return e, nil
}

func (e *MetricsEmitter) initMetrics() error {
	var err error

	e.lastRunTimestamp, err = e.meter.Float64ObservableGauge(
		"snooze_last_run_timestamp_seconds",
		metric.WithDescription("Unix time the last run of an action finished"),
		metric.WithUnit("s"),
		metric.WithFloat64Callback(e.observeTimestamps),
	)
	if err != nil {
		return fmt.Errorf("create last_run_timestamp gauge: %w", err)
	}

	e.lastRunResources, err = e.meter.Int64ObservableGauge(
		"snooze_last_run_resources",
		metric.WithDescription("Resources per status in the last run of an action"),
		metric.WithInt64Callback(e.observeResources),
	)
	if err != nil {
		return fmt.Errorf("create last_run_resources gauge: %w", err)
	}

	e.runsTotal, err = e.meter.Int64Counter(
		"snooze_runs_total",
		metric.WithDescription("Total runs by result"),
	)
	if err != nil {
		return fmt.Errorf("create runs counter: %w", err)
	}

	return nil
}

// Emit records the summary as the latest for its action.
func (e *MetricsEmitter) Emit(ctx context.Context, summary *Summary) error {
	result := "success"
	if summary.HasFailures() {
		result = "failed"
	}
	e.runsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", string(summary.Action)),
		attribute.String("result", result),
	))

	e.mu.Lock()
	e.last[summary.Action] = summary
	e.mu.Unlock()
	return nil
}

func (e *MetricsEmitter) observeTimestamps(_ context.Context, o metric.Float64Observer) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for action, s := range e.last {
		if s.EndTime.IsZero() {
			continue
		}
		o.Observe(float64(s.EndTime.UnixMilli())/1000, metric.WithAttributes(
			attribute.String("action", string(action)),
		))
	}
	return nil
}

func (e *MetricsEmitter) observeResources(_ context.Context, o metric.Int64Observer) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for action, s := range e.last {
		counts := map[resource.Status]int{
			resource.StatusSuccess: s.Succeeded,
			resource.StatusFailed:  s.Failed,
			resource.StatusSkipped: s.Skipped,
			resource.StatusDryRun:  s.DryRun,
		}
		for status, n := range counts {
			o.Observe(int64(n), metric.WithAttributes(
				attribute.String("action", string(action)),
				attribute.String("status", string(status)),
			))
		}
	}
	return nil
}

// Close is a no-op for the metrics emitter.
func (e *MetricsEmitter) Close() error {
	return nil
}
