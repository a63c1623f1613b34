package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/yairfalse/snooze/internal/scheduler"
	"github.com/yairfalse/snooze/pkg/resource"
)

// RDSScheduler stops and starts tagged RDS DB instances.
type RDSScheduler struct {
	base
	rds      RDSAPI
	handlers map[resource.Action]instanceHandler
}

// NewRDSScheduler creates an RDS instance scheduler.
func NewRDSScheduler(region string, rdsClient RDSAPI, opts scheduler.Options) *RDSScheduler {
	s := &RDSScheduler{
		base: base{name: "rds", kind: resource.KindRDS, region: region, opts: opts},
		rds:  rdsClient,
	}
	s.handlers = map[resource.Action]instanceHandler{
		resource.ActionStop:  s.Stop,
		resource.ActionStart: s.Start,
	}
	return s
}

// Run lists every DB instance, fetches its tags and applies action to the
// matching ones. Per-instance failures are recorded and the loop continues.
func (s *RDSScheduler) Run(ctx context.Context, action resource.Action, tags resource.Tags) (*resource.Report, error) {
	handler, ok := s.handlers[action]
	if err := s.validate(action, tags, ok); err != nil {
		return nil, err
	}

	report := resource.NewReport(s.name, s.region, action)
	input := &rds.DescribeDBInstancesInput{}

	for {
		output, err := s.rds.DescribeDBInstances(ctx, input)
		if err != nil {
			err = fmt.Errorf("describe db instances: %w", err)
			s.logger(ctx).Error().Err(err).Msg("rds run aborted")
			report.Abort(err)
			break
		}

		for _, instance := range output.DBInstances {
			s.apply(ctx, action, handler, instance, tags, report)
		}

		if output.Marker == nil {
			break
		}
		input.Marker = output.Marker
	}

	return report.Finish(), nil
}

func (s *RDSScheduler) apply(ctx context.Context, action resource.Action, handler instanceHandler, instance rdstypes.DBInstance, required resource.Tags, report *resource.Report) {
	id := aws.ToString(instance.DBInstanceIdentifier)
	o := s.outcome(id, action)

	tagOutput, err := s.rds.ListTagsForResource(ctx, &rds.ListTagsForResourceInput{
		ResourceName: instance.DBInstanceArn,
	})
	if err != nil {
		err = fmt.Errorf("list tags for db instance %s: %w", id, err)
		s.logger(ctx).Error().Err(err).Str("db_instance", id).Msg("rds instance failed")
		report.Add(failed(o, "", err))
		return
	}

	if !s.opts.MatchMode.Match(convertTags(tagOutput.TagList), required) {
		return
	}

	if s.opts.DryRun {
		report.Add(dryRun(o, resource.Operation(action)))
		s.logger(ctx).Info().Str("db_instance", id).Msgf("dry run: %s rds instance", action)
		return
	}

	op, err := handler(ctx, id)
	if err != nil {
		s.logger(ctx).Error().Err(err).Str("db_instance", id).Msg("rds instance failed")
		report.Add(failed(o, op, err))
		return
	}

	report.Add(succeeded(o, op))
	s.logger(ctx).Info().Str("db_instance", id).Msgf("%s rds instance", action)
}

// Stop stops a DB instance by identifier.
func (s *RDSScheduler) Stop(ctx context.Context, identifier string) (resource.Operation, error) {
	_, err := s.rds.StopDBInstance(ctx, &rds.StopDBInstanceInput{DBInstanceIdentifier: aws.String(identifier)})
	if err != nil {
		return resource.OpStop, fmt.Errorf("stop db instance %s: %w", identifier, err)
	}
	return resource.OpStop, nil
}

// Start starts a DB instance by identifier.
func (s *RDSScheduler) Start(ctx context.Context, identifier string) (resource.Operation, error) {
	_, err := s.rds.StartDBInstance(ctx, &rds.StartDBInstanceInput{DBInstanceIdentifier: aws.String(identifier)})
	if err != nil {
		return resource.OpStart, fmt.Errorf("start db instance %s: %w", identifier, err)
	}
	return resource.OpStart, nil
}
