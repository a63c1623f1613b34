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

// AuroraScheduler stops and starts tagged RDS DB clusters.
type AuroraScheduler struct {
	base
	rds      RDSAPI
	handlers map[resource.Action]instanceHandler
}

// NewAuroraScheduler creates a DB cluster scheduler.
func NewAuroraScheduler(region string, rdsClient RDSAPI, opts scheduler.Options) *AuroraScheduler {
	s := &AuroraScheduler{
		base: base{name: "aurora", kind: resource.KindAurora, region: region, opts: opts},
		rds:  rdsClient,
	}
	s.handlers = map[resource.Action]instanceHandler{
		resource.ActionStop:  s.Stop,
		resource.ActionStart: s.Start,
	}
	return s
}

// Run applies action to every matching DB cluster. Cluster tags come with
// the listing, so no per-cluster tag call is made.
func (s *AuroraScheduler) Run(ctx context.Context, action resource.Action, tags resource.Tags) (*resource.Report, error) {
	handler, ok := s.handlers[action]
	if err := s.validate(action, tags, ok); err != nil {
		return nil, err
	}

	report := resource.NewReport(s.name, s.region, action)
	input := &rds.DescribeDBClustersInput{}

	for {
		output, err := s.rds.DescribeDBClusters(ctx, input)
		if err != nil {
			err = fmt.Errorf("describe db clusters: %w", err)
			s.logger(ctx).Error().Err(err).Msg("aurora run aborted")
			report.Abort(err)
			break
		}

		for _, cluster := range output.DBClusters {
			s.apply(ctx, action, handler, cluster, tags, report)
		}

		if output.Marker == nil {
			break
		}
		input.Marker = output.Marker
	}

	return report.Finish(), nil
}

func (s *AuroraScheduler) apply(ctx context.Context, action resource.Action, handler instanceHandler, cluster rdstypes.DBCluster, required resource.Tags, report *resource.Report) {
	id := aws.ToString(cluster.DBClusterIdentifier)
	if !s.opts.MatchMode.Match(convertTags(cluster.TagList), required) {
		return
	}

	o := s.outcome(id, action)
	if s.opts.DryRun {
		report.Add(dryRun(o, resource.Operation(action)))
		return
	}

	op, err := handler(ctx, id)
	if err != nil {
		s.logger(ctx).Error().Err(err).Str("db_cluster", id).Msg("db cluster failed")
		report.Add(failed(o, op, err))
		return
	}

	report.Add(succeeded(o, op))
	s.logger(ctx).Info().Str("db_cluster", id).Msgf("%s db cluster", action)
}

// Stop stops a DB cluster by identifier.
func (s *AuroraScheduler) Stop(ctx context.Context, identifier string) (resource.Operation, error) {
	_, err := s.rds.StopDBCluster(ctx, &rds.StopDBClusterInput{DBClusterIdentifier: aws.String(identifier)})
	if err != nil {
		return resource.OpStop, fmt.Errorf("stop db cluster %s: %w", identifier, err)
	}
	return resource.OpStop, nil
}

// Start starts a DB cluster by identifier.
func (s *AuroraScheduler) Start(ctx context.Context, identifier string) (resource.Operation, error) {
	_, err := s.rds.StartDBCluster(ctx, &rds.StartDBClusterInput{DBClusterIdentifier: aws.String(identifier)})
	if err != nil {
		return resource.OpStart, fmt.Errorf("start db cluster %s: %w", identifier, err)
	}
	return resource.OpStart, nil
}
