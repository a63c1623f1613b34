package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/snooze/internal/telemetry"
	"github.com/yairfalse/snooze/pkg/resource"
)

var (
	runAction      string
	runDryRun      bool
	runVerbose     bool
	runFailOnError bool
)

var errRunFailures = errors.New("run finished with failures")

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one schedule event",
	Long: `Run one schedule event: stop or start every resource matching the
configured tags, in every configured region, for every enabled service.

A summary table is printed when the run finishes. With report.queue_url
set (REPORT_QUEUE_URL) the JSON summary is also sent to that SQS queue.`,
	Example: `  SCHEDULE_ACTION=stop AWS_REGIONS=eu-west-1 EC2_SCHEDULE=true \
    RESOURCE_TAGS='[{"Key":"ToStop","Value":"true"}]' snooze run
  snooze run --config snooze.toml --action start
  snooze run --config snooze.toml --action stop --dry-run --verbose`,
	RunE: runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runAction, "action", "", "Action to run (start, stop), overrides SCHEDULE_ACTION")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Record decisions without acting")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print every resource outcome")
	runCmd.Flags().BoolVar(&runFailOnError, "fail-on-error", false, "Exit non-zero when any resource failed")
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		return err
	}
	if runAction != "" {
		cfg.Schedule.Action = runAction
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.Schedule.DryRun = runDryRun
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	action, err := resource.ParseAction(cfg.Schedule.Action)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tel, err := telemetry.NewProvider(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("failed to create telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	emit, err := newEmitter(ctx, cfg, cmd.OutOrStdout(), runVerbose, false)
	if err != nil {
		return fmt.Errorf("failed to create emitter: %w", err)
	}
	defer func() { _ = emit.Close() }()

	summary, err := newApp(cfg, tel, emit).execute(ctx, action)
	if err != nil {
		return err
	}
	if runFailOnError && summary.HasFailures() {
		return errRunFailures
	}
	return nil
}
