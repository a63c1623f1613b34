package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/snooze/internal/daemon"
	"github.com/yairfalse/snooze/internal/scheduler"
	"github.com/yairfalse/snooze/internal/telemetry"
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run stop and start on cron schedules",
	Long: `Run Snooze as a long-lived process firing stop and start runs from
cron expressions (daemon.stop_schedule, daemon.start_schedule), evaluated
in daemon.timezone.

Features:
- Runs never overlap; a start firing during a long stop waits
- Prometheus metrics on /metrics
- Health on /healthz, readiness on /readyz
- Graceful shutdown on SIGTERM/SIGINT`,
	Example: `  snooze daemon --config snooze.toml

  # snooze.toml
  [daemon]
  stop_schedule = "0 19 * * 1-5"
  start_schedule = "0 7 * * 1-5"
  timezone = "Europe/Berlin"`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.ValidateDaemon(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := cmd.Context()
	registry := prometheus.NewRegistry()

	tel, err := telemetry.NewProvider(ctx, cfg.OTEL, telemetry.WithPrometheus(registry))
	if err != nil {
		return fmt.Errorf("failed to create telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	metrics, err := daemon.NewDaemonMetrics()
	if err != nil {
		return fmt.Errorf("failed to create daemon metrics: %w", err)
	}

	emit, err := newEmitter(ctx, cfg, cmd.OutOrStdout(), false, true)
	if err != nil {
		return fmt.Errorf("failed to create emitter: %w", err)
	}
	defer func() { _ = emit.Close() }()

	a := newApp(cfg, tel, emit)
	d, err := daemon.NewDaemon(daemon.Config{
		StopSchedule:  cfg.Daemon.StopSchedule,
		StartSchedule: cfg.Daemon.StartSchedule,
		Timezone:      cfg.Daemon.Timezone,
	}, a.trigger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Daemon.MetricsAddr,
		Handler:           newMux(registry, d),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var g run.Group
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			log.Info().
				Str("stop_schedule", cfg.Daemon.StopSchedule).
				Str("start_schedule", cfg.Daemon.StartSchedule).
				Str("timezone", cfg.Daemon.Timezone).
				Msg("snooze daemon starting")
			return d.Start(ctx)
		}, func(error) {
			cancel()
		})
	}
	g.Add(func() error {
		log.Info().Str("addr", srv.Addr).Msg("starting metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})

	err = g.Run()
	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		log.Info().Str("signal", sigErr.Signal.String()).Msg("daemon stopped")
		return nil
	}
	return err
}

// healthReporter is the part of the daemon the HTTP endpoints need.
type healthReporter interface {
	Health() daemon.HealthStatus
}

func newMux(registry *prometheus.Registry, health healthReporter) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	mux.HandleFunc("/healthz", handleHealthz(health))
	mux.HandleFunc("/readyz", handleReadyz)
	return mux
}

// handleHealthz reports daemon health. A degraded daemon is still live.
func handleHealthz(health healthReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		body, err := json.Marshal(health.Health())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

func handleReadyz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if len(scheduler.Names()) == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no schedulers registered"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
