// Package resource defines the tag, action and outcome model shared by all schedulers.
package resource

import (
	"fmt"
	"strings"
	"time"
)

// Tag is a key/value label attached to a cloud resource.
type Tag struct {
	Key   string `json:"Key" toml:"key" yaml:"key"`
	Value string `json:"Value" toml:"value" yaml:"value"`
}

// Tags is an ordered tag collection.
type Tags []Tag

// Get returns the value for key and whether it was present.
func (t Tags) Get(key string) (string, bool) {
	for _, tag := range t {
		if tag.Key == key {
			return tag.Value, true
		}
	}
	return "", false
}

// String renders tags as k=v pairs for logging.
func (t Tags) String() string {
	parts := make([]string, len(t))
	for i, tag := range t {
		parts[i] = tag.Key + "=" + tag.Value
	}
	return strings.Join(parts, ",")
}

// Action selects which handler a scheduler runs.
type Action string

const (
	ActionStart Action = "start"
	ActionStop  Action = "stop"
)

// ParseAction converts a configuration string to an Action.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionStart, ActionStop:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q (want start or stop)", s)
	}
}

// Kind identifies the resource type an outcome refers to.
type Kind string

const (
	KindEC2             Kind = "ec2"
	KindSpot            Kind = "spot"
	KindRDS             Kind = "rds"
	KindAutoScaling     Kind = "autoscaling"
	KindAurora          Kind = "aurora"
	KindRedshift        Kind = "redshift"
	KindCloudWatchAlarm Kind = "cloudwatch_alarm"
)

// Operation is the provider call that was issued for a resource.
type Operation string

const (
	OpStop           Operation = "stop"
	OpStart          Operation = "start"
	OpTerminate      Operation = "terminate"
	OpSuspend        Operation = "suspend"
	OpResume         Operation = "resume"
	OpPause          Operation = "pause"
	OpDisableActions Operation = "disable_actions"
	OpEnableActions  Operation = "enable_actions"
)

// Status is the result of acting on one resource.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusDryRun  Status = "dry_run"
)

// Outcome records what happened to a single resource during a run.
type Outcome struct {
	Kind       Kind      `json:"kind"`
	ID         string    `json:"id"`
	Region     string    `json:"region"`
	Action     Action    `json:"action"`
	Operation  Operation `json:"operation,omitempty"`
	Status     Status    `json:"status"`
	SkipReason string    `json:"skip_reason,omitempty"`
	Error      string    `json:"error,omitempty"`
	ErrorCode  string    `json:"error_code,omitempty"`
	Fallback   bool      `json:"fallback,omitempty"` // stop failed, terminate used
}

// Report is the result of one scheduler run in one region.
type Report struct {
	Scheduler string        `json:"scheduler"`
	Region    string        `json:"region"`
	Action    Action        `json:"action"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Outcomes  []Outcome     `json:"outcomes"`
	Err       string        `json:"error,omitempty"` // run-level abort reason
}

// NewReport starts a report for a run.
func NewReport(scheduler, region string, action Action) *Report {
	return &Report{
		Scheduler: scheduler,
		Region:    region,
		Action:    action,
		StartTime: time.Now(),
		Outcomes:  []Outcome{},
	}
}

// Add appends outcomes.
func (r *Report) Add(o ...Outcome) {
	r.Outcomes = append(r.Outcomes, o...)
}

// Abort records the error that stopped the run.
func (r *Report) Abort(err error) {
	if err != nil {
		r.Err = err.Error()
	}
}

// Finish stamps end time and duration.
func (r *Report) Finish() *Report {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	return r
}

// Count returns the number of outcomes with the given status.
func (r *Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

func (r *Report) Succeeded() int { return r.Count(StatusSuccess) }
func (r *Report) Failed() int    { return r.Count(StatusFailed) }
func (r *Report) Skipped() int   { return r.Count(StatusSkipped) }

// HasFailures reports whether the run aborted or any resource failed.
func (r *Report) HasFailures() bool {
	return r.Err != "" || r.Failed() > 0
}
