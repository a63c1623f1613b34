// Package emitter sends run summaries to output backends.
package emitter

import (
	"context"
	"time"

	"github.com/yairfalse/snooze/pkg/resource"
)

// Summary aggregates the reports of one run across services and regions.
type Summary struct {
	Action    resource.Action    `json:"action"`
	StartTime time.Time          `json:"start_time"`
	EndTime   time.Time          `json:"end_time"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Skipped   int                `json:"skipped"`
	DryRun    int                `json:"dry_run"`
	Aborted   int                `json:"aborted"` // reports with a run-level error
	Reports   []*resource.Report `json:"reports"`
}

// NewSummary totals reports. Nil reports are ignored.
func NewSummary(action resource.Action, reports []*resource.Report) *Summary {
	s := &Summary{Action: action, Reports: make([]*resource.Report, 0, len(reports))}
	for _, r := range reports {
		if r == nil {
			continue
		}
		s.Reports = append(s.Reports, r)
		s.Succeeded += r.Succeeded()
		s.Failed += r.Failed()
		s.Skipped += r.Skipped()
		s.DryRun += r.Count(resource.StatusDryRun)
		if r.Err != "" {
			s.Aborted++
		}
		if s.StartTime.IsZero() || r.StartTime.Before(s.StartTime) {
			s.StartTime = r.StartTime
		}
		if r.EndTime.After(s.EndTime) {
			s.EndTime = r.EndTime
		}
	}
	return s
}

// HasFailures reports whether any report aborted or any resource failed.
func (s *Summary) HasFailures() bool {
	return s.Failed > 0 || s.Aborted > 0
}

// Emitter outputs run summaries to a backend.
type Emitter interface {
	// Emit sends the summary to the backend.
	Emit(ctx context.Context, summary *Summary) error

	// Close cleans up resources.
	Close() error
}

// MultiEmitter fans out to multiple emitters.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter creates an emitter that sends to multiple backends.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters}
}

// Emit sends to all emitters, returns first error.
func (m *MultiEmitter) Emit(ctx context.Context, summary *Summary) error {
	for _, e := range m.emitters {
		if err := e.Emit(ctx, summary); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all emitters.
func (m *MultiEmitter) Close() error {
	for _, e := range m.emitters {
		if err := e.Close(); err != nil {
			return err
		}
	}
	return nil
}
