package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/yairfalse/snooze/internal/scheduler"
	"github.com/yairfalse/snooze/pkg/resource"
)

// AlarmScheduler silences tagged CloudWatch alarms while their resources
// are stopped: stop disables alarm actions, start enables them again.
type AlarmScheduler struct {
	base
	cw       CloudWatchAPI
	handlers map[resource.Action]instanceHandler
}

// NewAlarmScheduler creates a CloudWatch alarm scheduler.
func NewAlarmScheduler(region string, client CloudWatchAPI, opts scheduler.Options) *AlarmScheduler {
	s := &AlarmScheduler{
		base: base{name: "cloudwatch_alarm", kind: resource.KindCloudWatchAlarm, region: region, opts: opts},
		cw:   client,
	}
	s.handlers = map[resource.Action]instanceHandler{
		resource.ActionStop:  s.Stop,
		resource.ActionStart: s.Start,
	}
	return s
}

// Run lists metric alarms, fetches their tags and toggles the actions of
// the matching ones. Per-alarm failures are recorded and the loop continues.
func (s *AlarmScheduler) Run(ctx context.Context, action resource.Action, tags resource.Tags) (*resource.Report, error) {
	handler, ok := s.handlers[action]
	if err := s.validate(action, tags, ok); err != nil {
		return nil, err
	}

	report := resource.NewReport(s.name, s.region, action)
	input := &cloudwatch.DescribeAlarmsInput{}

	for {
		output, err := s.cw.DescribeAlarms(ctx, input)
		if err != nil {
			err = fmt.Errorf("describe alarms: %w", err)
			s.logger(ctx).Error().Err(err).Msg("cloudwatch alarm run aborted")
			report.Abort(err)
			break
		}

		for _, alarm := range output.MetricAlarms {
			s.apply(ctx, action, handler, alarm, tags, report)
		}

		if output.NextToken == nil {
			break
		}
		input.NextToken = output.NextToken
	}

	return report.Finish(), nil
}

func (s *AlarmScheduler) apply(ctx context.Context, action resource.Action, handler instanceHandler, alarm cwtypes.MetricAlarm, required resource.Tags, report *resource.Report) {
	name := aws.ToString(alarm.AlarmName)
	o := s.outcome(name, action)

	tagOutput, err := s.cw.ListTagsForResource(ctx, &cloudwatch.ListTagsForResourceInput{
		ResourceARN: alarm.AlarmArn,
	})
	if err != nil {
		err = fmt.Errorf("list tags for alarm %s: %w", name, err)
		s.logger(ctx).Error().Err(err).Str("alarm", name).Msg("cloudwatch alarm failed")
		report.Add(failed(o, "", err))
		return
	}

	if !s.opts.MatchMode.Match(convertTags(tagOutput.Tags), required) {
		return
	}

	if s.opts.DryRun {
		report.Add(dryRun(o, alarmOperation(action)))
		return
	}

	op, err := handler(ctx, name)
	if err != nil {
		s.logger(ctx).Error().Err(err).Str("alarm", name).Msg("cloudwatch alarm failed")
		report.Add(failed(o, op, err))
		return
	}

	report.Add(succeeded(o, op))
	s.logger(ctx).Info().Str("alarm", name).Str("operation", string(op)).Msg("cloudwatch alarm")
}

func alarmOperation(action resource.Action) resource.Operation {
	if action == resource.ActionStart {
		return resource.OpEnableActions
	}
	return resource.OpDisableActions
}

// Stop disables the actions of an alarm.
func (s *AlarmScheduler) Stop(ctx context.Context, name string) (resource.Operation, error) {
	_, err := s.cw.DisableAlarmActions(ctx, &cloudwatch.DisableAlarmActionsInput{AlarmNames: []string{name}})
	if err != nil {
		return resource.OpDisableActions, fmt.Errorf("disable alarm actions %s: %w", name, err)
	}
	return resource.OpDisableActions, nil
}

// Start enables the actions of an alarm.
func (s *AlarmScheduler) Start(ctx context.Context, name string) (resource.Operation, error) {
	_, err := s.cw.EnableAlarmActions(ctx, &cloudwatch.EnableAlarmActionsInput{AlarmNames: []string{name}})
	if err != nil {
		return resource.OpEnableActions, fmt.Errorf("enable alarm actions %s: %w", name, err)
	}
	return resource.OpEnableActions, nil
}
