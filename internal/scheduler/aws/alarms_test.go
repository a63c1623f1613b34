package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/snooze/internal/scheduler"
	"github.com/yairfalse/snooze/pkg/resource"
)

func alarmClient(tagsByArn map[string]resource.Tags, names ...string) *mockCloudWatchClient {
	return &mockCloudWatchClient{
		DescribeAlarmsFunc: func(_ context.Context, _ *cloudwatch.DescribeAlarmsInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.DescribeAlarmsOutput, error) {
			alarms := make([]cwtypes.MetricAlarm, len(names))
			for i, name := range names {
				alarms[i] = cwtypes.MetricAlarm{
					AlarmName: aws.String(name),
					AlarmArn:  aws.String("arn:aws:cloudwatch:eu-central-1:123456789012:alarm:" + name),
				}
			}
			return &cloudwatch.DescribeAlarmsOutput{MetricAlarms: alarms}, nil
		},
		ListTagsForResourceFunc: func(_ context.Context, params *cloudwatch.ListTagsForResourceInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.ListTagsForResourceOutput, error) {
			arn := aws.ToString(params.ResourceARN)
			tags, ok := tagsByArn[arn]
			if !ok {
				return nil, errors.New("resource not found: " + arn)
			}
			out := make([]cwtypes.Tag, len(tags))
			for i, tag := range tags {
				out[i] = cwtypes.Tag{Key: aws.String(tag.Key), Value: aws.String(tag.Value)}
			}
			return &cloudwatch.ListTagsForResourceOutput{Tags: out}, nil
		},
	}
}

func alarmArn(name string) string {
	return "arn:aws:cloudwatch:eu-central-1:123456789012:alarm:" + name
}

func TestAlarmScheduler_Run(t *testing.T) {
	client := alarmClient(map[string]resource.Tags{
		alarmArn("cpu-high"):  testTags,
		alarmArn("disk-full"): {{Key: "Team", Value: "ops"}},
	}, "cpu-high", "disk-full")
	s := NewAlarmScheduler("eu-central-1", client, scheduler.Options{})

	report, err := s.Run(context.Background(), resource.ActionStop, testTags)
	require.NoError(t, err)
	require.Len(t, client.disableCalls, 1)
	assert.Equal(t, []string{"cpu-high"}, client.disableCalls[0].AlarmNames)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, resource.OpDisableActions, report.Outcomes[0].Operation)
	assert.Equal(t, resource.KindCloudWatchAlarm, report.Outcomes[0].Kind)

	report, err = s.Run(context.Background(), resource.ActionStart, testTags)
	require.NoError(t, err)
	require.Len(t, client.enableCalls, 1)
	assert.Equal(t, []string{"cpu-high"}, client.enableCalls[0].AlarmNames)
	assert.Equal(t, resource.OpEnableActions, report.Outcomes[0].Operation)
}

func TestAlarmScheduler_Run_TagLookupFailure(t *testing.T) {
	client := alarmClient(map[string]resource.Tags{alarmArn("ok"): testTags}, "missing", "ok")
	s := NewAlarmScheduler("eu-central-1", client, scheduler.Options{})

	report, err := s.Run(context.Background(), resource.ActionStop, testTags)

	require.NoError(t, err)
	assert.Len(t, client.disableCalls, 1)
	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, 1, report.Succeeded())
}

func TestAlarmScheduler_Run_DryRun(t *testing.T) {
	client := alarmClient(map[string]resource.Tags{alarmArn("cpu-high"): testTags}, "cpu-high")
	s := NewAlarmScheduler("eu-central-1", client, scheduler.Options{DryRun: true})

	report, err := s.Run(context.Background(), resource.ActionStart, testTags)

	require.NoError(t, err)
	assert.Empty(t, client.enableCalls)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, resource.StatusDryRun, report.Outcomes[0].Status)
	assert.Equal(t, resource.OpEnableActions, report.Outcomes[0].Operation)
}

func TestAlarmScheduler_Run_ListError(t *testing.T) {
	client := &mockCloudWatchClient{
		DescribeAlarmsFunc: func(_ context.Context, _ *cloudwatch.DescribeAlarmsInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.DescribeAlarmsOutput, error) {
			return nil, errors.New("throttled")
		},
	}
	s := NewAlarmScheduler("eu-central-1", client, scheduler.Options{})

	report, err := s.Run(context.Background(), resource.ActionStop, testTags)

	require.NoError(t, err)
	assert.Contains(t, report.Err, "describe alarms")
}
