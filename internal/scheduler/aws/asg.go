package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	asgtypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/yairfalse/snooze/internal/scheduler"
	"github.com/yairfalse/snooze/pkg/resource"
)

type groupHandler func(ctx context.Context, group asgtypes.AutoScalingGroup) ([]resource.Outcome, error)

// AutoScalingScheduler suspends or resumes tagged auto-scaling groups and
// stops or starts their member instances.
type AutoScalingScheduler struct {
	base
	ec2      EC2API
	asg      AutoScalingAPI
	handlers map[resource.Action]groupHandler
}

// NewAutoScalingScheduler creates an auto-scaling group scheduler.
func NewAutoScalingScheduler(region string, ec2Client EC2API, asgClient AutoScalingAPI, opts scheduler.Options) *AutoScalingScheduler {
	s := &AutoScalingScheduler{
		base: base{name: "autoscaling", kind: resource.KindAutoScaling, region: region, opts: opts},
		ec2:  ec2Client,
		asg:  asgClient,
	}
	s.handlers = map[resource.Action]groupHandler{
		resource.ActionStop:  s.Stop,
		resource.ActionStart: s.Start,
	}
	return s
}

// Run applies action to every tagged group that matches. An error from a
// group handler aborts the remaining groups.
func (s *AutoScalingScheduler) Run(ctx context.Context, action resource.Action, tags resource.Tags) (*resource.Report, error) {
	handler, ok := s.handlers[action]
	if err := s.validate(action, tags, ok); err != nil {
		return nil, err
	}

	report := resource.NewReport(s.name, s.region, action)
	if err := s.run(ctx, action, handler, tags, report); err != nil {
		s.logger(ctx).Error().Err(err).Msg("autoscaling run aborted")
		report.Abort(err)
	}
	return report.Finish(), nil
}

func (s *AutoScalingScheduler) run(ctx context.Context, action resource.Action, handler groupHandler, tags resource.Tags, report *resource.Report) error {
	input := &autoscaling.DescribeAutoScalingGroupsInput{}

	for {
		output, err := s.asg.DescribeAutoScalingGroups(ctx, input)
		if err != nil {
			return fmt.Errorf("describe auto scaling groups: %w", err)
		}

		for _, group := range output.AutoScalingGroups {
			if len(group.Tags) == 0 || !s.opts.MatchMode.MatchGroup(convertTags(group.Tags), tags) {
				continue
			}

			if s.opts.DryRun {
				report.Add(s.dryRunGroup(ctx, group, action)...)
				continue
			}

			outcomes, err := handler(ctx, group)
			report.Add(outcomes...)
			if err != nil {
				return err
			}
		}

		if output.NextToken == nil {
			return nil
		}
		input.NextToken = output.NextToken
	}
}

func (s *AutoScalingScheduler) dryRunGroup(ctx context.Context, group asgtypes.AutoScalingGroup, action resource.Action) []resource.Outcome {
	name := aws.ToString(group.AutoScalingGroupName)
	groupOp, instanceOp := resource.OpSuspend, resource.OpStop
	if action == resource.ActionStart {
		groupOp, instanceOp = resource.OpResume, resource.OpStart
	}

	outcomes := []resource.Outcome{dryRun(s.outcome(name, action), groupOp)}
	for _, instance := range group.Instances {
		outcomes = append(outcomes, dryRun(s.memberOutcome(aws.ToString(instance.InstanceId), action), instanceOp))
	}
	s.logger(ctx).Info().Str("group", name).Int("instances", len(group.Instances)).Msgf("dry run: %s autoscaling group", action)
	return outcomes
}

func (s *AutoScalingScheduler) memberOutcome(instanceID string, action resource.Action) resource.Outcome {
	o := s.outcome(instanceID, action)
	o.Kind = resource.KindEC2
	return o
}

// Stop suspends all scaling processes of the group, then stops every member
// instance. An instance that cannot be stopped (spot-backed members) is
// terminated instead. Instance failures do not abort the other instances.
func (s *AutoScalingScheduler) Stop(ctx context.Context, group asgtypes.AutoScalingGroup) ([]resource.Outcome, error) {
	name := aws.ToString(group.AutoScalingGroupName)
	groupOutcome := s.outcome(name, resource.ActionStop)

	_, err := s.asg.SuspendProcesses(ctx, &autoscaling.SuspendProcessesInput{
		AutoScalingGroupName: group.AutoScalingGroupName,
	})
	if err != nil {
		err = fmt.Errorf("suspend processes %s: %w", name, err)
		return []resource.Outcome{failed(groupOutcome, resource.OpSuspend, err)}, err
	}
	s.logger(ctx).Info().Str("group", name).Msg("suspend autoscaling group")

	outcomes := []resource.Outcome{succeeded(groupOutcome, resource.OpSuspend)}
	for _, instance := range group.Instances {
		outcomes = append(outcomes, s.stopMember(ctx, aws.ToString(instance.InstanceId)))
	}
	return outcomes, nil
}

func (s *AutoScalingScheduler) stopMember(ctx context.Context, instanceID string) resource.Outcome {
	o := s.memberOutcome(instanceID, resource.ActionStop)
	ids := []string{instanceID}

	_, stopErr := s.ec2.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: ids})
	if stopErr == nil {
		s.logger(ctx).Info().Str("instance_id", instanceID).Msg("stop ec2 instance")
		return succeeded(o, resource.OpStop)
	}

	// A failed stop means the instance cannot be stopped; terminate it.
	s.logger(ctx).Debug().Err(stopErr).Str("instance_id", instanceID).Msg("stop refused, terminating")
	o.Fallback = true

	if _, err := s.ec2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: ids}); err != nil {
		err = fmt.Errorf("terminate instance %s: %w", instanceID, err)
		s.logger(ctx).Error().Err(err).Str("instance_id", instanceID).Msg("autoscaling member failed")
		return failed(o, resource.OpTerminate, err)
	}

	s.logger(ctx).Info().Str("instance_id", instanceID).Msg("terminate ec2 instance")
	return succeeded(o, resource.OpTerminate)
}

// Start resumes all scaling processes of the group, then starts every
// member instance without checking its state first.
func (s *AutoScalingScheduler) Start(ctx context.Context, group asgtypes.AutoScalingGroup) ([]resource.Outcome, error) {
	name := aws.ToString(group.AutoScalingGroupName)
	groupOutcome := s.outcome(name, resource.ActionStart)

	_, err := s.asg.ResumeProcesses(ctx, &autoscaling.ResumeProcessesInput{
		AutoScalingGroupName: group.AutoScalingGroupName,
	})
	if err != nil {
		err = fmt.Errorf("resume processes %s: %w", name, err)
		return []resource.Outcome{failed(groupOutcome, resource.OpResume, err)}, err
	}
	s.logger(ctx).Info().Str("group", name).Msg("resume autoscaling group")

	outcomes := []resource.Outcome{succeeded(groupOutcome, resource.OpResume)}
	for _, instance := range group.Instances {
		id := aws.ToString(instance.InstanceId)
		o := s.memberOutcome(id, resource.ActionStart)

		if _, err := s.ec2.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: []string{id}}); err != nil {
			err = fmt.Errorf("start instance %s: %w", id, err)
			return append(outcomes, failed(o, resource.OpStart, err)), err
		}

		s.logger(ctx).Info().Str("instance_id", id).Msg("start ec2 instance")
		outcomes = append(outcomes, succeeded(o, resource.OpStart))
	}
	return outcomes, nil
}
