package daemon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/snooze/pkg/resource"
)

// recordingTrigger records every action it is fired with.
type recordingTrigger struct {
	mu      sync.Mutex
	actions []resource.Action
	err     error
}

func (r *recordingTrigger) fire(_ context.Context, action resource.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
	return r.err
}

func (r *recordingTrigger) fired() []resource.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]resource.Action(nil), r.actions...)
}

func TestNewDaemon(t *testing.T) {
	trigger := &recordingTrigger{}

	d, err := NewDaemon(Config{
		StopSchedule:  "0 19 * * 1-5",
		StartSchedule: "0 7 * * 1-5",
		Timezone:      "Europe/Berlin",
	}, trigger.fire, nil)

	require.NoError(t, err)
	assert.Len(t, d.entries, 2)
	assert.Equal(t, "Europe/Berlin", d.cron.Location().String())
}

func TestNewDaemon_StopOnly(t *testing.T) {
	d, err := NewDaemon(Config{StopSchedule: "@daily"}, (&recordingTrigger{}).fire, nil)

	require.NoError(t, err)
	assert.Contains(t, d.entries, resource.ActionStop)
	assert.NotContains(t, d.entries, resource.ActionStart)
	assert.True(t, d.Next(resource.ActionStart).IsZero())
}

func TestNewDaemon_Errors(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:    "no schedules",
			config:  Config{},
			wantErr: "no schedule configured",
		},
		{
			name:    "bad stop schedule",
			config:  Config{StopSchedule: "every evening"},
			wantErr: "parse stop schedule",
		},
		{
			name:    "bad start schedule",
			config:  Config{StopSchedule: "0 19 * * *", StartSchedule: "61 * * * *"},
			wantErr: "parse start schedule",
		},
		{
			name:    "bad timezone",
			config:  Config{StopSchedule: "0 19 * * *", Timezone: "Mars/Olympus"},
			wantErr: "load timezone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDaemon(tt.config, (&recordingTrigger{}).fire, nil)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDaemon_Fire(t *testing.T) {
	trigger := &recordingTrigger{}
	d, err := NewDaemon(Config{StopSchedule: "@daily"}, trigger.fire, nil)
	require.NoError(t, err)

	require.NoError(t, d.Fire(context.Background(), resource.ActionStop))
	require.NoError(t, d.Fire(context.Background(), resource.ActionStart))

	assert.Equal(t, []resource.Action{resource.ActionStop, resource.ActionStart}, trigger.fired())
	assert.Equal(t, int64(2), d.TriggerCount())

	health := d.Health()
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, int64(2), health.Triggers)
	assert.Zero(t, health.Failures)
	assert.False(t, health.LastRun.IsZero())
}

func TestDaemon_FireFailure(t *testing.T) {
	trigger := &recordingTrigger{err: errors.New("2 schedulers failed")}
	d, err := NewDaemon(Config{StopSchedule: "@daily"}, trigger.fire, nil)
	require.NoError(t, err)

	err = d.Fire(context.Background(), resource.ActionStop)

	require.Error(t, err)
	health := d.Health()
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, int64(1), health.Failures)
	assert.Equal(t, "2 schedulers failed", health.LastError)
}

func TestDaemon_FireRecoversHealth(t *testing.T) {
	trigger := &recordingTrigger{err: errors.New("throttled")}
	d, err := NewDaemon(Config{StopSchedule: "@daily"}, trigger.fire, nil)
	require.NoError(t, err)

	_ = d.Fire(context.Background(), resource.ActionStop)
	trigger.mu.Lock()
	trigger.err = nil
	trigger.mu.Unlock()
	require.NoError(t, d.Fire(context.Background(), resource.ActionStop))

	health := d.Health()
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, int64(1), health.Failures)
	assert.Empty(t, health.LastError)
}

func TestDaemon_FireNeverOverlaps(t *testing.T) {
	var mu sync.Mutex
	running, peak := 0, 0
	trigger := func(context.Context, resource.Action) error {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		return nil
	}
	d, err := NewDaemon(Config{StopSchedule: "@daily"}, trigger, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Fire(context.Background(), resource.ActionStop)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, peak)
	assert.Equal(t, int64(4), d.TriggerCount())
}

func TestDaemon_Start(t *testing.T) {
	trigger := &recordingTrigger{}
	d, err := NewDaemon(Config{StopSchedule: "@every 1s"}, trigger.fire, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Start(ctx)
	}()

	assert.Eventually(t, func() bool {
		return len(trigger.fired()) > 0
	}, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, resource.ActionStop, trigger.fired()[0])
	assert.False(t, d.Next(resource.ActionStop).IsZero())

	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestDaemon_StartPassesContext(t *testing.T) {
	type key struct{}
	seen := make(chan any, 1)
	trigger := func(ctx context.Context, _ resource.Action) error {
		select {
		case seen <- ctx.Value(key{}):
		default:
		}
		return nil
	}
	d, err := NewDaemon(Config{StartSchedule: "@every 1s"}, trigger, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), key{}, "daemon"))
	go func() { _ = d.Start(ctx) }()
	defer cancel()

	select {
	case v := <-seen:
		assert.Equal(t, "daemon", v)
	case <-time.After(3 * time.Second):
		t.Fatal("trigger not fired")
	}
}
