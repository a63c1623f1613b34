// Package daemon fires scheduled stop and start runs from cron expressions.
package daemon

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/snooze/pkg/resource"
)

// Trigger runs the schedule for one action.
type Trigger func(ctx context.Context, action resource.Action) error

// Config holds daemon configuration
type Config struct {
	StopSchedule  string
	StartSchedule string
	Timezone      string
}

// Daemon fires the trigger on the configured cron schedules
type Daemon struct {
	cron      *cron.Cron
	trigger   Trigger
	metrics   *DaemonMetrics
	entries   map[resource.Action]cron.EntryID
	startTime time.Time

	// one run at a time; a start firing during a long stop waits
	runMu sync.Mutex

	mu      sync.RWMutex
	ctx     context.Context
	lastRun time.Time
	lastErr error

	triggerCount atomic.Int64
	failureCount atomic.Int64
}

// NewDaemon creates a new daemon instance
func NewDaemon(config Config, trigger Trigger, metrics *DaemonMetrics) (*Daemon, error) {
	loc := time.Local
	if config.Timezone != "" {
		l, err := time.LoadLocation(config.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", config.Timezone, err)
		}
		loc = l
	}

	d := &Daemon{
		cron:      cron.New(cron.WithLocation(loc)),
		trigger:   trigger,
		metrics:   metrics,
		entries:   make(map[resource.Action]cron.EntryID),
		startTime: time.Now(),
		ctx:       context.Background(),
	}

	schedules := map[resource.Action]string{
		resource.ActionStop:  config.StopSchedule,
		resource.ActionStart: config.StartSchedule,
	}
	for action, spec := range schedules {
		if spec == "" {
			continue
		}
		id, err := d.cron.AddFunc(spec, func() {
			_ = d.Fire(d.runContext(), action)
		})
		if err != nil {
			return nil, fmt.Errorf("parse %s schedule %q: %w", action, spec, err)
		}
		d.entries[action] = id
	}
	if len(d.entries) == 0 {
		return nil, fmt.Errorf("no schedule configured")
	}

	return d, nil
}

// Start runs the cron scheduler until ctx is cancelled, then waits for a
// running trigger to finish.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	d.ctx = ctx
	d.mu.Unlock()

	d.cron.Start()
	for action := range d.entries {
		log.Info().Str("action", string(action)).Time("next", d.Next(action)).Msg("schedule armed")
	}

	<-ctx.Done()
	<-d.cron.Stop().Done()
	return nil
}

func (d *Daemon) runContext() context.Context {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ctx
}

// Fire runs the trigger for action now. Runs never overlap.
func (d *Daemon) Fire(ctx context.Context, action resource.Action) error {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	d.triggerCount.Add(1)
	start := time.Now()
	log.Info().Str("action", string(action)).Msg("scheduled run starting")

	err := d.trigger(ctx, action)

	status := "success"
	if err != nil {
		status = "failed"
		d.failureCount.Add(1)
		log.Error().Err(err).Str("action", string(action)).Msg("scheduled run failed")
	}
	if d.metrics != nil {
		d.metrics.RecordTrigger(ctx, string(action), status)
		d.metrics.RecordTriggerDuration(ctx, time.Since(start).Seconds(), string(action))
	}

	d.mu.Lock()
	d.lastRun = start
	d.lastErr = err
	d.mu.Unlock()
	return err
}

// Next returns when action fires next, or the zero time when it has no
// schedule or the daemon is not started.
func (d *Daemon) Next(action resource.Action) time.Time {
	id, ok := d.entries[action]
	if !ok {
		return time.Time{}
	}
	return d.cron.Entry(id).Next
}

// Health returns daemon health status
func (d *Daemon) Health() HealthStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := HealthStatus{
		Status:   "healthy",
		Uptime:   int64(time.Since(d.startTime).Seconds()),
		Triggers: d.triggerCount.Load(),
		Failures: d.failureCount.Load(),
		LastRun:  d.lastRun,
	}
	if d.lastErr != nil {
		status.Status = "degraded"
		status.LastError = d.lastErr.Error()
	}
	return status
}

// HealthStatus represents daemon health
type HealthStatus struct {
	Status    string    `json:"status"`
	Uptime    int64     `json:"uptime_seconds"`
	Triggers  int64     `json:"triggers"`
	Failures  int64     `json:"failures"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
}

// TriggerCount returns total runs fired
func (d *Daemon) TriggerCount() int64 {
	return d.triggerCount.Load()
}
