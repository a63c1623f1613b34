package main

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/snooze/internal/config"
	"github.com/yairfalse/snooze/internal/emitter"
	"github.com/yairfalse/snooze/internal/runner"
	"github.com/yairfalse/snooze/internal/scheduler/aws"
	"github.com/yairfalse/snooze/pkg/resource"
)

// app ties a resolved configuration to the runner and the report sinks.
type app struct {
	cfg      *config.Config
	services []string
	runner   *runner.Runner
	emitter  emitter.Emitter
}

func newApp(cfg *config.Config, rec runner.Recorder, emit emitter.Emitter) *app {
	aws.Register()

	opts := []runner.Option{runner.WithConcurrency(cfg.Schedule.Concurrency)}
	if rec != nil {
		opts = append(opts, runner.WithRecorder(rec))
	}
	return &app{
		cfg:      cfg,
		services: aws.Services,
		runner:   runner.New(opts...),
		emitter:  emit,
	}
}

// execute runs every enabled scheduler for action and emits the summary.
func (a *app) execute(ctx context.Context, action resource.Action) (*emitter.Summary, error) {
	plan := runner.NewPlan(a.cfg, action, a.services)
	if len(plan.Jobs) == 0 {
		log.Warn().Str("action", string(action)).Msg("no service enabled, nothing to do")
	}

	log.Info().
		Str("action", string(action)).
		Strs("regions", a.cfg.Schedule.Regions).
		Str("tags", a.cfg.Schedule.Tags.String()).
		Bool("dry_run", a.cfg.Schedule.DryRun).
		Int("jobs", len(plan.Jobs)).
		Msg("schedule starting")

	summary := emitter.NewSummary(action, a.runner.Run(ctx, plan))
	if err := a.emitter.Emit(ctx, summary); err != nil {
		return summary, fmt.Errorf("emit summary: %w", err)
	}
	return summary, nil
}

// trigger is execute shaped for the daemon: failed resources or aborted
// schedulers make the trigger fail.
func (a *app) trigger(ctx context.Context, action resource.Action) error {
	summary, err := a.execute(ctx, action)
	if err != nil {
		return err
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d resources failed, %d schedulers aborted", summary.Failed, summary.Aborted)
	}
	return nil
}

// newEmitter builds the report sinks: a table on w, the last-run gauges
// when withMetrics is set, and the SQS queue when one is configured.
func newEmitter(ctx context.Context, cfg *config.Config, w io.Writer, verbose, withMetrics bool) (emitter.Emitter, error) {
	emitters := []emitter.Emitter{emitter.NewTextEmitter(w, verbose)}

	if withMetrics {
		m, err := emitter.NewMetricsEmitter()
		if err != nil {
			return nil, err
		}
		emitters = append(emitters, m)
	}

	if cfg.Report.QueueURL != "" {
		awsCfg, err := aws.LoadConfig(ctx, "")
		if err != nil {
			return nil, err
		}
		if awsCfg.Region == "" && len(cfg.Schedule.Regions) > 0 {
			awsCfg.Region = cfg.Schedule.Regions[0]
		}
		emitters = append(emitters, emitter.NewSQSEmitter(sqs.NewFromConfig(awsCfg), cfg.Report.QueueURL))
	}

	if len(emitters) == 1 {
		return emitters[0], nil
	}
	return emitter.NewMultiEmitter(emitters...), nil
}
