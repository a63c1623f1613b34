package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/yairfalse/snooze/internal/scheduler"
	"github.com/yairfalse/snooze/pkg/resource"
)

var actionableSpotStates = []string{"open", "active", "disabled"}

type spotHandler func(ctx context.Context, request ec2types.SpotInstanceRequest) (resource.Operation, error)

// SpotScheduler stops, terminates and starts instances behind tagged spot
// requests. One-time requests cannot be stopped, only terminated.
type SpotScheduler struct {
	base
	ec2      EC2API
	asg      AutoScalingAPI
	handlers map[resource.Action]spotHandler
}

// NewSpotScheduler creates a spot request scheduler.
func NewSpotScheduler(region string, ec2Client EC2API, asgClient AutoScalingAPI, opts scheduler.Options) *SpotScheduler {
	s := &SpotScheduler{
		base: base{name: "spot", kind: resource.KindSpot, region: region, opts: opts},
		ec2:  ec2Client,
		asg:  asgClient,
	}
	s.handlers = map[resource.Action]spotHandler{
		resource.ActionStop:  s.Stop,
		resource.ActionStart: s.Start,
	}
	return s
}

// Run applies action to the instance of every matching spot request.
// Per-request failures are recorded and the loop continues.
func (s *SpotScheduler) Run(ctx context.Context, action resource.Action, tags resource.Tags) (*resource.Report, error) {
	handler, ok := s.handlers[action]
	if err := s.validate(action, tags, ok); err != nil {
		return nil, err
	}

	report := resource.NewReport(s.name, s.region, action)
	input := &ec2.DescribeSpotInstanceRequestsInput{
		Filters: ec2Filters("state", actionableSpotStates, tags),
	}

	for {
		output, err := s.ec2.DescribeSpotInstanceRequests(ctx, input)
		if err != nil {
			err = fmt.Errorf("describe spot instance requests: %w", err)
			s.logger(ctx).Error().Err(err).Msg("spot run aborted")
			report.Abort(err)
			break
		}

		for _, request := range output.SpotInstanceRequests {
			s.apply(ctx, action, handler, request, report)
		}

		if output.NextToken == nil {
			break
		}
		input.NextToken = output.NextToken
	}

	return report.Finish(), nil
}

func (s *SpotScheduler) apply(ctx context.Context, action resource.Action, handler spotHandler, request ec2types.SpotInstanceRequest, report *resource.Report) {
	requestID := aws.ToString(request.SpotInstanceRequestId)
	instanceID := aws.ToString(request.InstanceId)
	o := s.outcome(requestID, action)

	if instanceID == "" {
		report.Add(skipped(o, "no instance"))
		return
	}

	member, err := isAutoScalingMember(ctx, s.asg, instanceID)
	if err != nil {
		s.logger(ctx).Error().Err(err).Str("spot_request_id", requestID).Msg("spot request failed")
		report.Add(failed(o, "", err))
		return
	}
	if member {
		report.Add(skipped(o, "autoscaling group member"))
		return
	}

	if s.opts.DryRun {
		report.Add(dryRun(o, spotStopOperation(request, action)))
		s.logger(ctx).Info().Str("instance_id", instanceID).Msgf("dry run: %s ec2 spot instance", action)
		return
	}

	op, err := handler(ctx, request)
	if err != nil {
		s.logger(ctx).Error().Err(err).Str("spot_request_id", requestID).Msg("spot request failed")
		report.Add(failed(o, op, err))
		return
	}

	report.Add(succeeded(o, op))
	s.logger(ctx).Info().Str("instance_id", instanceID).Str("operation", string(op)).Msgf("%s ec2 spot instance", action)
}

// spotStopOperation returns the call a request needs for action.
func spotStopOperation(request ec2types.SpotInstanceRequest, action resource.Action) resource.Operation {
	if action == resource.ActionStart {
		return resource.OpStart
	}
	if request.Type == ec2types.SpotInstanceTypePersistent {
		return resource.OpStop
	}
	return resource.OpTerminate
}

// Stop stops the instance of a persistent request and terminates the
// instance of any other request type.
func (s *SpotScheduler) Stop(ctx context.Context, request ec2types.SpotInstanceRequest) (resource.Operation, error) {
	ids := []string{aws.ToString(request.InstanceId)}

	if spotStopOperation(request, resource.ActionStop) == resource.OpStop {
		if _, err := s.ec2.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: ids}); err != nil {
			return resource.OpStop, fmt.Errorf("stop spot instance %s: %w", ids[0], err)
		}
		return resource.OpStop, nil
	}

	if _, err := s.ec2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: ids}); err != nil {
		return resource.OpTerminate, fmt.Errorf("terminate spot instance %s: %w", ids[0], err)
	}
	return resource.OpTerminate, nil
}

// Start starts the instance of a request.
func (s *SpotScheduler) Start(ctx context.Context, request ec2types.SpotInstanceRequest) (resource.Operation, error) {
	id := aws.ToString(request.InstanceId)
	if _, err := s.ec2.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: []string{id}}); err != nil {
		return resource.OpStart, fmt.Errorf("start spot instance %s: %w", id, err)
	}
	return resource.OpStart, nil
}
