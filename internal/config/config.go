// Package config loads snooze configuration from an optional TOML or YAML
// file overlaid with environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/yairfalse/snooze/internal/filter"
	"github.com/yairfalse/snooze/internal/scheduler"
	"github.com/yairfalse/snooze/pkg/resource"
)

// Config is the root configuration structure.
type Config struct {
	Schedule ScheduleConfig `toml:"schedule" yaml:"schedule"`
	Services ServicesConfig `toml:"services" yaml:"services"`
	Daemon   DaemonConfig   `toml:"daemon" yaml:"daemon"`
	OTEL     OTELConfig     `toml:"otel" yaml:"otel"`
	Report   ReportConfig   `toml:"report" yaml:"report"`
	Log      LogConfig      `toml:"log" yaml:"log"`
}

// ScheduleConfig describes what a run acts on.
type ScheduleConfig struct {
	Action      string        `toml:"action" yaml:"action"`
	Regions     []string      `toml:"regions" yaml:"regions"`
	Tags        resource.Tags `toml:"tags" yaml:"tags"`
	MatchMode   string        `toml:"match_mode" yaml:"match_mode"`
	Concurrency int           `toml:"concurrency" yaml:"concurrency"`
	DryRun      bool          `toml:"dry_run" yaml:"dry_run"`
}

// ServicesConfig toggles the individual schedulers.
type ServicesConfig struct {
	AutoScaling     bool `toml:"autoscaling" yaml:"autoscaling"`
	Spot            bool `toml:"spot" yaml:"spot"`
	EC2             bool `toml:"ec2" yaml:"ec2"`
	RDS             bool `toml:"rds" yaml:"rds"`
	Aurora          bool `toml:"aurora" yaml:"aurora"`
	Redshift        bool `toml:"redshift" yaml:"redshift"`
	CloudWatchAlarm bool `toml:"cloudwatch_alarm" yaml:"cloudwatch_alarm"`
}

// DaemonConfig holds the cron trigger settings.
type DaemonConfig struct {
	StopSchedule  string `toml:"stop_schedule" yaml:"stop_schedule"`
	StartSchedule string `toml:"start_schedule" yaml:"start_schedule"`
	Timezone      string `toml:"timezone" yaml:"timezone"`
	MetricsAddr   string `toml:"metrics_addr" yaml:"metrics_addr"`
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string        `toml:"endpoint" yaml:"endpoint"`
	Insecure    bool          `toml:"insecure" yaml:"insecure"`
	ServiceName string        `toml:"service_name" yaml:"service_name"`
	Traces      TracesConfig  `toml:"traces" yaml:"traces"`
	Metrics     MetricsConfig `toml:"metrics" yaml:"metrics"`
}

// TracesConfig holds tracing settings.
type TracesConfig struct {
	Enabled    bool    `toml:"enabled" yaml:"enabled"`
	SampleRate float64 `toml:"sample_rate" yaml:"sample_rate"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
}

// ReportConfig holds the run summary sink settings.
type ReportConfig struct {
	QueueURL string `toml:"queue_url" yaml:"queue_url"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// Default returns a configuration with every default applied and no
// service enabled.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses a config file. Files ending in .yaml or .yml are
// parsed as YAML, anything else as TOML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// Resolve loads path (when set) and overlays the environment read through
// getenv. Environment values win over file values.
func Resolve(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if getenv == nil {
		getenv = os.Getenv
	}
	if err := applyEnv(cfg, getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Schedule.MatchMode == "" {
		cfg.Schedule.MatchMode = string(filter.ModeLegacy)
	}
	if cfg.Schedule.Concurrency == 0 {
		cfg.Schedule.Concurrency = 1
	}
	if cfg.Daemon.MetricsAddr == "" {
		cfg.Daemon.MetricsAddr = ":9090"
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "snooze"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("SCHEDULE_ACTION"); v != "" {
		cfg.Schedule.Action = v
	}
	if v := getenv("AWS_REGIONS"); v != "" {
		cfg.Schedule.Regions = SplitRegions(v)
	}
	if v := getenv("RESOURCE_TAGS"); v != "" {
		var tags resource.Tags
		if err := json.Unmarshal([]byte(v), &tags); err != nil {
			return fmt.Errorf("parse RESOURCE_TAGS: %w", err)
		}
		cfg.Schedule.Tags = tags
	}
	if v := getenv("TAG_MATCH_MODE"); v != "" {
		cfg.Schedule.MatchMode = v
	}
	if v := getenv("SCHEDULE_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse SCHEDULE_CONCURRENCY %q: %w", v, err)
		}
		cfg.Schedule.Concurrency = n
	}
	envFlag(getenv, "DRY_RUN", &cfg.Schedule.DryRun)

	envFlag(getenv, "AUTOSCALING_SCHEDULE", &cfg.Services.AutoScaling)
	envFlag(getenv, "SPOT_SCHEDULE", &cfg.Services.Spot)
	envFlag(getenv, "EC2_SCHEDULE", &cfg.Services.EC2)
	envFlag(getenv, "RDS_SCHEDULE", &cfg.Services.RDS)
	envFlag(getenv, "AURORA_SCHEDULE", &cfg.Services.Aurora)
	envFlag(getenv, "REDSHIFT_SCHEDULE", &cfg.Services.Redshift)
	envFlag(getenv, "CLOUDWATCH_ALARM_SCHEDULE", &cfg.Services.CloudWatchAlarm)

	if v := getenv("REPORT_QUEUE_URL"); v != "" {
		cfg.Report.QueueURL = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return nil
}

// envFlag sets dst when the variable is present. Only the exact string
// "true" enables; any other value disables.
func envFlag(getenv func(string) string, name string, dst *bool) {
	if v := getenv(name); v != "" {
		*dst = v == "true"
	}
}

// SplitRegions splits a comma-separated region list, dropping whitespace
// and empty entries.
func SplitRegions(s string) []string {
	s = strings.Join(strings.Fields(s), "")
	var regions []string
	for _, r := range strings.Split(s, ",") {
		if r != "" {
			regions = append(regions, r)
		}
	}
	return regions
}

// Enabled reports whether the named service is switched on.
func (s ServicesConfig) Enabled(name string) bool {
	switch name {
	case "autoscaling":
		return s.AutoScaling
	case "spot":
		return s.Spot
	case "ec2":
		return s.EC2
	case "rds":
		return s.RDS
	case "aurora":
		return s.Aurora
	case "redshift":
		return s.Redshift
	case "cloudwatch_alarm":
		return s.CloudWatchAlarm
	default:
		return false
	}
}

// SchedulerOptions returns the options every scheduler is built with.
// Call after Validate.
func (c *Config) SchedulerOptions() scheduler.Options {
	mode, _ := filter.ParseMode(c.Schedule.MatchMode)
	return scheduler.Options{MatchMode: mode, DryRun: c.Schedule.DryRun}
}

// Validate checks the configuration is usable for a run. The action is not
// checked here since the daemon supplies it per trigger.
func (c *Config) Validate() error {
	if len(c.Schedule.Regions) == 0 {
		return fmt.Errorf("schedule: at least one region required")
	}
	if len(c.Schedule.Tags) == 0 {
		return fmt.Errorf("schedule: %w", scheduler.ErrNoResourceTags)
	}
	if _, err := filter.ParseMode(c.Schedule.MatchMode); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	if c.Schedule.Concurrency < 1 {
		return fmt.Errorf("schedule: concurrency must be at least 1 (got %d)", c.Schedule.Concurrency)
	}
	if c.OTEL.Traces.SampleRate < 0.0 || c.OTEL.Traces.SampleRate > 1.0 {
		return fmt.Errorf("otel: traces.sample_rate must be between 0.0 and 1.0 (got %v)", c.OTEL.Traces.SampleRate)
	}
	return nil
}

// ValidateDaemon checks the settings only the daemon needs.
func (c *Config) ValidateDaemon() error {
	if c.Daemon.StopSchedule == "" && c.Daemon.StartSchedule == "" {
		return fmt.Errorf("daemon: stop_schedule or start_schedule required")
	}
	if c.Daemon.Timezone != "" {
		if _, err := time.LoadLocation(c.Daemon.Timezone); err != nil {
			return fmt.Errorf("daemon: timezone %q: %w", c.Daemon.Timezone, err)
		}
	}
	return nil
}
