package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	redshifttypes "github.com/aws/aws-sdk-go-v2/service/redshift/types"

	"github.com/yairfalse/snooze/internal/scheduler"
	"github.com/yairfalse/snooze/pkg/resource"
)

// Redshift only accepts pause from available and resume from paused.
var redshiftRequiredStatus = map[resource.Action]string{
	resource.ActionStop:  "available",
	resource.ActionStart: "paused",
}

// RedshiftScheduler pauses and resumes tagged Redshift clusters.
type RedshiftScheduler struct {
	base
	redshift RedshiftAPI
	handlers map[resource.Action]instanceHandler
}

// NewRedshiftScheduler creates a Redshift cluster scheduler.
func NewRedshiftScheduler(region string, client RedshiftAPI, opts scheduler.Options) *RedshiftScheduler {
	s := &RedshiftScheduler{
		base:     base{name: "redshift", kind: resource.KindRedshift, region: region, opts: opts},
		redshift: client,
	}
	s.handlers = map[resource.Action]instanceHandler{
		resource.ActionStop:  s.Stop,
		resource.ActionStart: s.Start,
	}
	return s
}

// Run applies action to every matching cluster in a state that allows it.
func (s *RedshiftScheduler) Run(ctx context.Context, action resource.Action, tags resource.Tags) (*resource.Report, error) {
	handler, ok := s.handlers[action]
	if err := s.validate(action, tags, ok); err != nil {
		return nil, err
	}

	report := resource.NewReport(s.name, s.region, action)
	input := &redshift.DescribeClustersInput{}

	for {
		output, err := s.redshift.DescribeClusters(ctx, input)
		if err != nil {
			err = fmt.Errorf("describe redshift clusters: %w", err)
			s.logger(ctx).Error().Err(err).Msg("redshift run aborted")
			report.Abort(err)
			break
		}

		for _, cluster := range output.Clusters {
			s.apply(ctx, action, handler, cluster, tags, report)
		}

		if output.Marker == nil {
			break
		}
		input.Marker = output.Marker
	}

	return report.Finish(), nil
}

func (s *RedshiftScheduler) apply(ctx context.Context, action resource.Action, handler instanceHandler, cluster redshifttypes.Cluster, required resource.Tags, report *resource.Report) {
	id := aws.ToString(cluster.ClusterIdentifier)
	if !s.opts.MatchMode.Match(convertTags(cluster.Tags), required) {
		return
	}

	o := s.outcome(id, action)
	if status := aws.ToString(cluster.ClusterStatus); status != redshiftRequiredStatus[action] {
		report.Add(skipped(o, "cluster status "+status))
		return
	}

	op := resource.OpPause
	if action == resource.ActionStart {
		op = resource.OpResume
	}
	if s.opts.DryRun {
		report.Add(dryRun(o, op))
		return
	}

	op, err := handler(ctx, id)
	if err != nil {
		s.logger(ctx).Error().Err(err).Str("cluster", id).Msg("redshift cluster failed")
		report.Add(failed(o, op, err))
		return
	}

	report.Add(succeeded(o, op))
	s.logger(ctx).Info().Str("cluster", id).Str("operation", string(op)).Msg("redshift cluster")
}

// Stop pauses a cluster.
func (s *RedshiftScheduler) Stop(ctx context.Context, identifier string) (resource.Operation, error) {
	_, err := s.redshift.PauseCluster(ctx, &redshift.PauseClusterInput{ClusterIdentifier: aws.String(identifier)})
	if err != nil {
		return resource.OpPause, fmt.Errorf("pause cluster %s: %w", identifier, err)
	}
	return resource.OpPause, nil
}

// Start resumes a cluster.
func (s *RedshiftScheduler) Start(ctx context.Context, identifier string) (resource.Operation, error) {
	_, err := s.redshift.ResumeCluster(ctx, &redshift.ResumeClusterInput{ClusterIdentifier: aws.String(identifier)})
	if err != nil {
		return resource.OpResume, fmt.Errorf("resume cluster %s: %w", identifier, err)
	}
	return resource.OpResume, nil
}
