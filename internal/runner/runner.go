// Package runner fans a schedule out over services and regions.
package runner

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/snooze/internal/config"
	"github.com/yairfalse/snooze/internal/scheduler"
	"github.com/yairfalse/snooze/pkg/resource"
)

// Recorder receives a span per job and the finished reports.
type Recorder interface {
	StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)
	RecordReport(ctx context.Context, report *resource.Report)
}

// Job is one scheduler run in one region.
type Job struct {
	Service string
	Region  string
}

// Plan is everything a run needs.
type Plan struct {
	Action  resource.Action
	Tags    resource.Tags
	Options scheduler.Options
	Jobs    []Job
}

// NewPlan builds the job list for action: every enabled service, in the
// order given, crossed with every configured region.
func NewPlan(cfg *config.Config, action resource.Action, services []string) Plan {
	plan := Plan{
		Action:  action,
		Tags:    cfg.Schedule.Tags,
		Options: cfg.SchedulerOptions(),
	}
	for _, service := range services {
		if !cfg.Services.Enabled(service) {
			continue
		}
		for _, region := range cfg.Schedule.Regions {
			plan.Jobs = append(plan.Jobs, Job{Service: service, Region: region})
		}
	}
	return plan
}

// Runner executes plans on a bounded worker pool.
type Runner struct {
	concurrency int
	lookup      func(name string) (scheduler.Factory, bool)
	recorder    Recorder
}

// Option configures a Runner.
type Option func(*Runner)

// WithConcurrency bounds the number of jobs running at once.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithRecorder attaches telemetry.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// WithLookup replaces the scheduler registry lookup.
func WithLookup(lookup func(name string) (scheduler.Factory, bool)) Option {
	return func(r *Runner) {
		r.lookup = lookup
	}
}

// New creates a runner. Jobs run one at a time unless WithConcurrency says
// otherwise.
func New(opts ...Option) *Runner {
	r := &Runner{
		concurrency: 1,
		lookup:      scheduler.Get,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every job of plan and returns one report per job, in job
// order. Jobs are isolated: a failing job never cancels the others. Jobs
// that had not started when ctx was cancelled report the context error.
func (r *Runner) Run(ctx context.Context, plan Plan) []*resource.Report {
	reports := make([]*resource.Report, len(plan.Jobs))

	p := pool.New().WithMaxGoroutines(r.concurrency)
	for i, job := range plan.Jobs {
		p.Go(func() {
			reports[i] = r.runJob(ctx, plan, job)
		})
	}
	p.Wait()

	log.Info().
		Str("action", string(plan.Action)).
		Int("jobs", len(plan.Jobs)).
		Msg("run finished")
	return reports
}

func (r *Runner) runJob(ctx context.Context, plan Plan, job Job) (report *resource.Report) {
	logger := log.With().Ctx(ctx).Str("scheduler", job.Service).Str("region", job.Region).Logger()

	if err := ctx.Err(); err != nil {
		report = resource.NewReport(job.Service, job.Region, plan.Action)
		report.Abort(fmt.Errorf("not started: %w", err))
		return report.Finish()
	}

	var span trace.Span
	if r.recorder != nil {
		ctx, span = r.recorder.StartSpan(ctx, "scheduler.run",
			attribute.String("scheduler", job.Service),
			attribute.String("region", job.Region),
			attribute.String("action", string(plan.Action)),
		)
		defer span.End()
	}

	defer func() {
		if v := recover(); v != nil {
			report = resource.NewReport(job.Service, job.Region, plan.Action)
			report.Abort(fmt.Errorf("scheduler panic: %v", v))
			report.Finish()
			logger.Error().Str("error", report.Err).Msg("scheduler panicked")
		}
		if r.recorder != nil {
			if report.Err != "" {
				span.SetStatus(codes.Error, report.Err)
			}
			span.SetAttributes(
				attribute.Int("succeeded", report.Succeeded()),
				attribute.Int("failed", report.Failed()),
				attribute.Int("skipped", report.Skipped()),
			)
			r.recorder.RecordReport(ctx, report)
		}
	}()

	report, err := r.schedule(ctx, plan, job)
	if err != nil {
		logger.Error().Err(err).Msg("scheduler not run")
		report = resource.NewReport(job.Service, job.Region, plan.Action)
		report.Abort(err)
		return report.Finish()
	}

	logger.Info().
		Int("succeeded", report.Succeeded()).
		Int("failed", report.Failed()).
		Int("skipped", report.Skipped()).
		Dur("duration", report.Duration).
		Msg("scheduler finished")
	return report
}

func (r *Runner) schedule(ctx context.Context, plan Plan, job Job) (*resource.Report, error) {
	factory, ok := r.lookup(job.Service)
	if !ok {
		return nil, fmt.Errorf("no scheduler registered for %q", job.Service)
	}

	s, err := factory(ctx, job.Region, plan.Options)
	if err != nil {
		return nil, fmt.Errorf("build %s scheduler for %s: %w", job.Service, job.Region, err)
	}

	report, err := s.Run(ctx, plan.Action, plan.Tags)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, fmt.Errorf("%s scheduler returned no report", job.Service)
	}
	return report, nil
}
