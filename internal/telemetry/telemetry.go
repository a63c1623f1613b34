// Package telemetry provides OpenTelemetry instrumentation for snooze.
package telemetry

import (
	"context"
	"fmt"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/snooze/internal/config"
	snoozeresource "github.com/yairfalse/snooze/pkg/resource"
)

const instrumentationName = "github.com/yairfalse/snooze"

// Option configures a Provider.
type Option func(*options)

type options struct {
	registry *promclient.Registry
}

// WithPrometheus adds a pull-based Prometheus reader registered on registry.
func WithPrometheus(registry *promclient.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// Provider wraps OTEL tracer and meter providers.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter

	// Metrics
	actions     metric.Int64Counter
	runDuration metric.Float64Histogram
	runErrors   metric.Int64Counter
}

// NewProvider creates a new telemetry provider.
func NewProvider(ctx context.Context, cfg config.OTELConfig, opts ...Option) (*Provider, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	p := &Provider{}

	if err := p.setupTracing(ctx, cfg, res); err != nil {
		return nil, err
	}

	if err := p.setupMetrics(ctx, cfg, o, res); err != nil {
		if p.tracerProvider != nil {
			_ = p.tracerProvider.Shutdown(ctx)
		}
		return nil, err
	}

	if err := p.initMetrics(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Provider) setupTracing(ctx context.Context, cfg config.OTELConfig, res *resource.Resource) error {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}

	if cfg.Traces.Enabled && cfg.Endpoint != "" {
		exp, err := createTraceExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create trace exporter: %w", err)
		}
		sampler := sdktrace.TraceIDRatioBased(cfg.Traces.SampleRate)
		opts = append(opts, sdktrace.WithBatcher(exp), sdktrace.WithSampler(sampler))
	}

	p.tracerProvider = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(p.tracerProvider)
	p.tracer = p.tracerProvider.Tracer(instrumentationName)

	return nil
}

func (p *Provider) setupMetrics(ctx context.Context, cfg config.OTELConfig, o *options, res *resource.Resource) error {
	opts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
	}

	if o.registry != nil {
		exp, err := prometheus.New(prometheus.WithRegisterer(o.registry))
		if err != nil {
			return fmt.Errorf("create prometheus exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(exp))
	}

	if cfg.Metrics.Enabled && cfg.Endpoint != "" {
		exp, err := createMetricExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}

	p.meterProvider = sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(p.meterProvider)
	p.meter = p.meterProvider.Meter(instrumentationName)

	return nil
}

func createTraceExporter(ctx context.Context, cfg config.OTELConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

func createMetricExporter(ctx context.Context, cfg config.OTELConfig) (sdkmetric.Exporter, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return otlpmetricgrpc.New(ctx, opts...)
}

func (p *Provider) initMetrics() error {
	var err error

	p.actions, err = p.meter.Int64Counter(
		"snooze_actions_total",
		metric.WithDescription("Resource decisions by scheduler, action and status"),
	)
	if err != nil {
		return fmt.Errorf("create actions: %w", err)
	}

	p.runDuration, err = p.meter.Float64Histogram(
		"snooze_run_duration_seconds",
		metric.WithDescription("Duration of scheduler runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create run_duration: %w", err)
	}

	p.runErrors, err = p.meter.Int64Counter(
		"snooze_run_errors_total",
		metric.WithDescription("Scheduler runs that ended with an error"),
	)
	if err != nil {
		return fmt.Errorf("create run_errors: %w", err)
	}

	return nil
}

// Tracer returns the tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Meter returns the meter.
func (p *Provider) Meter() metric.Meter {
	return p.meter
}

// StartSpan starts a new span.
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordReport records the outcome counts and duration of a finished run.
func (p *Provider) RecordReport(ctx context.Context, report *snoozeresource.Report) {
	counts := make(map[snoozeresource.Status]int64)
	for _, o := range report.Outcomes {
		counts[o.Status]++
	}
	for status, n := range counts {
		p.actions.Add(ctx, n, metric.WithAttributes(
			attribute.String("scheduler", report.Scheduler),
			attribute.String("region", report.Region),
			attribute.String("action", string(report.Action)),
			attribute.String("status", string(status)),
		))
	}

	p.RecordRunDuration(ctx, report.Scheduler, report.Region, string(report.Action), report.Duration)
	if report.Err != "" {
		p.RecordError(ctx, report.Scheduler, report.Region)
	}
}

// RecordRunDuration records a scheduler run duration.
func (p *Provider) RecordRunDuration(ctx context.Context, scheduler, region, action string, d time.Duration) {
	p.runDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("scheduler", scheduler),
		attribute.String("region", region),
		attribute.String("action", action),
	))
}

// RecordError records a failed scheduler run.
func (p *Provider) RecordError(ctx context.Context, scheduler, region string) {
	p.runErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scheduler", scheduler),
		attribute.String("region", region),
	))
}

// Shutdown flushes and shuts down the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown tracer: %w", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown meter: %w", err)
		}
	}
	return nil
}
