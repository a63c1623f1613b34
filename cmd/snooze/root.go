package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yairfalse/snooze/internal/config"
	"github.com/yairfalse/snooze/internal/telemetry"
)

var (
	version = "0.1.0"

	configPath string
	logLevel   string
	logJSON    bool

	rootCmd = &cobra.Command{
		Use:   "snooze",
		Short: "Stop and start tagged AWS resources on a schedule",
		Long: `Snooze - scheduled stop and start of tagged AWS resources

Snooze finds EC2 instances, spot requests, RDS instances, Aurora and
Redshift clusters, auto scaling groups and CloudWatch alarms carrying
the configured tags and stops or starts them. Run it once per schedule
event, or let the daemon fire it from cron expressions.

Configuration comes from the environment (SCHEDULE_ACTION, AWS_REGIONS,
RESOURCE_TAGS, EC2_SCHEDULE, ...) overlaid on an optional config file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`Snooze {{.Version}}
`)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (TOML, or YAML by extension)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level, overrides log.level")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Log JSON instead of console output")
}

// loadConfig resolves the configuration and sets up logging from it.
func loadConfig(getenv func(string) string) (*config.Config, error) {
	cfg, err := config.Resolve(configPath, getenv)
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	if err := telemetry.SetupLogging(level, !logJSON); err != nil {
		return nil, err
	}
	return cfg, nil
}
