package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/yairfalse/snooze/internal/scheduler"
	"github.com/yairfalse/snooze/pkg/resource"
)

// actionableInstanceStates are the states an instance can be started or stopped from.
var actionableInstanceStates = []string{"pending", "running", "stopping", "stopped"}

type instanceHandler func(ctx context.Context, instanceID string) (resource.Operation, error)

// EC2Scheduler stops and starts tagged EC2 instances that are not part of
// an auto-scaling group.
type EC2Scheduler struct {
	base
	ec2      EC2API
	asg      AutoScalingAPI
	handlers map[resource.Action]instanceHandler
}

// NewEC2Scheduler creates an EC2 instance scheduler.
func NewEC2Scheduler(region string, ec2Client EC2API, asgClient AutoScalingAPI, opts scheduler.Options) *EC2Scheduler {
	s := &EC2Scheduler{
		base: base{name: "ec2", kind: resource.KindEC2, region: region, opts: opts},
		ec2:  ec2Client,
		asg:  asgClient,
	}
	s.handlers = map[resource.Action]instanceHandler{
		resource.ActionStop:  s.Stop,
		resource.ActionStart: s.Start,
	}
	return s
}

// Run applies action to every matching instance. The first provider error
// aborts the remaining instances; it is logged and recorded on the report.
func (s *EC2Scheduler) Run(ctx context.Context, action resource.Action, tags resource.Tags) (*resource.Report, error) {
	handler, ok := s.handlers[action]
	if err := s.validate(action, tags, ok); err != nil {
		return nil, err
	}

	report := resource.NewReport(s.name, s.region, action)
	if err := s.run(ctx, action, handler, tags, report); err != nil {
		s.logger(ctx).Error().Err(err).Msg("ec2 run aborted")
		report.Abort(err)
	}
	return report.Finish(), nil
}

func (s *EC2Scheduler) run(ctx context.Context, action resource.Action, handler instanceHandler, tags resource.Tags, report *resource.Report) error {
	input := &ec2.DescribeInstancesInput{
		Filters: ec2Filters("instance-state-name", actionableInstanceStates, tags),
	}

	for {
		output, err := s.ec2.DescribeInstances(ctx, input)
		if err != nil {
			return fmt.Errorf("describe instances: %w", err)
		}

		for _, reservation := range output.Reservations {
			for _, instance := range reservation.Instances {
				if err := s.apply(ctx, action, handler, aws.ToString(instance.InstanceId), report); err != nil {
					return err
				}
			}
		}

		if output.NextToken == nil {
			return nil
		}
		input.NextToken = output.NextToken
	}
}

func (s *EC2Scheduler) apply(ctx context.Context, action resource.Action, handler instanceHandler, id string, report *resource.Report) error {
	o := s.outcome(id, action)

	member, err := isAutoScalingMember(ctx, s.asg, id)
	if err != nil {
		report.Add(failed(o, "", err))
		return err
	}
	if member {
		report.Add(skipped(o, "autoscaling group member"))
		return nil
	}

	if s.opts.DryRun {
		report.Add(dryRun(o, resource.Operation(action)))
		s.logger(ctx).Info().Str("instance_id", id).Msgf("dry run: %s ec2 instance", action)
		return nil
	}

	op, err := handler(ctx, id)
	if err != nil {
		report.Add(failed(o, op, err))
		return err
	}

	report.Add(succeeded(o, op))
	s.logger(ctx).Info().Str("instance_id", id).Msgf("%s ec2 instance", action)
	return nil
}

// Stop stops an instance by ID.
func (s *EC2Scheduler) Stop(ctx context.Context, instanceID string) (resource.Operation, error) {
	_, err := s.ec2.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{instanceID}})
	if err != nil {
		return resource.OpStop, fmt.Errorf("stop instance %s: %w", instanceID, err)
	}
	return resource.OpStop, nil
}

// Start starts an instance by ID.
func (s *EC2Scheduler) Start(ctx context.Context, instanceID string) (resource.Operation, error) {
	_, err := s.ec2.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: []string{instanceID}})
	if err != nil {
		return resource.OpStart, fmt.Errorf("start instance %s: %w", instanceID, err)
	}
	return resource.OpStart, nil
}
