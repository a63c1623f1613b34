package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
)

// mockEC2Client implements EC2API for testing and records action calls.
type mockEC2Client struct {
	DescribeInstancesFunc            func(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeSpotInstanceRequestsFunc func(ctx context.Context, params *ec2.DescribeSpotInstanceRequestsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSpotInstanceRequestsOutput, error)
	StopInstancesFunc                func(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
	StartInstancesFunc               func(ctx context.Context, params *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	TerminateInstancesFunc           func(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)

	describeCalls  []*ec2.DescribeInstancesInput
	stopCalls      []*ec2.StopInstancesInput
	startCalls     []*ec2.StartInstancesInput
	terminateCalls []*ec2.TerminateInstancesInput
}

func (m *mockEC2Client) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	m.describeCalls = append(m.describeCalls, params)
	if m.DescribeInstancesFunc != nil {
		return m.DescribeInstancesFunc(ctx, params, optFns...)
	}
	return &ec2.DescribeInstancesOutput{}, nil
}

func (m *mockEC2Client) DescribeSpotInstanceRequests(ctx context.Context, params *ec2.DescribeSpotInstanceRequestsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSpotInstanceRequestsOutput, error) {
	if m.DescribeSpotInstanceRequestsFunc != nil {
		return m.DescribeSpotInstanceRequestsFunc(ctx, params, optFns...)
	}
	return &ec2.DescribeSpotInstanceRequestsOutput{}, nil
}

func (m *mockEC2Client) StopInstances(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error) {
	m.stopCalls = append(m.stopCalls, params)
	if m.StopInstancesFunc != nil {
		return m.StopInstancesFunc(ctx, params, optFns...)
	}
	return &ec2.StopInstancesOutput{}, nil
}

func (m *mockEC2Client) StartInstances(ctx context.Context, params *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error) {
	m.startCalls = append(m.startCalls, params)
	if m.StartInstancesFunc != nil {
		return m.StartInstancesFunc(ctx, params, optFns...)
	}
	return &ec2.StartInstancesOutput{}, nil
}

func (m *mockEC2Client) TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	m.terminateCalls = append(m.terminateCalls, params)
	if m.TerminateInstancesFunc != nil {
		return m.TerminateInstancesFunc(ctx, params, optFns...)
	}
	return &ec2.TerminateInstancesOutput{}, nil
}

func (m *mockEC2Client) actionCalls() int {
	return len(m.stopCalls) + len(m.startCalls) + len(m.terminateCalls)
}

// mockASGClient implements AutoScalingAPI for testing.
type mockASGClient struct {
	DescribeAutoScalingInstancesFunc func(ctx context.Context, params *autoscaling.DescribeAutoScalingInstancesInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingInstancesOutput, error)
	DescribeAutoScalingGroupsFunc    func(ctx context.Context, params *autoscaling.DescribeAutoScalingGroupsInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error)
	SuspendProcessesFunc             func(ctx context.Context, params *autoscaling.SuspendProcessesInput, optFns ...func(*autoscaling.Options)) (*autoscaling.SuspendProcessesOutput, error)
	ResumeProcessesFunc              func(ctx context.Context, params *autoscaling.ResumeProcessesInput, optFns ...func(*autoscaling.Options)) (*autoscaling.ResumeProcessesOutput, error)

	membershipCalls []*autoscaling.DescribeAutoScalingInstancesInput
	suspendCalls    []*autoscaling.SuspendProcessesInput
	resumeCalls     []*autoscaling.ResumeProcessesInput
}

func (m *mockASGClient) DescribeAutoScalingInstances(ctx context.Context, params *autoscaling.DescribeAutoScalingInstancesInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingInstancesOutput, error) {
	m.membershipCalls = append(m.membershipCalls, params)
	if m.DescribeAutoScalingInstancesFunc != nil {
		return m.DescribeAutoScalingInstancesFunc(ctx, params, optFns...)
	}
	return &autoscaling.DescribeAutoScalingInstancesOutput{}, nil
}

func (m *mockASGClient) DescribeAutoScalingGroups(ctx context.Context, params *autoscaling.DescribeAutoScalingGroupsInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error) {
	if m.DescribeAutoScalingGroupsFunc != nil {
		return m.DescribeAutoScalingGroupsFunc(ctx, params, optFns...)
	}
	return &autoscaling.DescribeAutoScalingGroupsOutput{}, nil
}

func (m *mockASGClient) SuspendProcesses(ctx context.Context, params *autoscaling.SuspendProcessesInput, optFns ...func(*autoscaling.Options)) (*autoscaling.SuspendProcessesOutput, error) {
	m.suspendCalls = append(m.suspendCalls, params)
	if m.SuspendProcessesFunc != nil {
		return m.SuspendProcessesFunc(ctx, params, optFns...)
	}
	return &autoscaling.SuspendProcessesOutput{}, nil
}

func (m *mockASGClient) ResumeProcesses(ctx context.Context, params *autoscaling.ResumeProcessesInput, optFns ...func(*autoscaling.Options)) (*autoscaling.ResumeProcessesOutput, error) {
	m.resumeCalls = append(m.resumeCalls, params)
	if m.ResumeProcessesFunc != nil {
		return m.ResumeProcessesFunc(ctx, params, optFns...)
	}
	return &autoscaling.ResumeProcessesOutput{}, nil
}

// mockRDSClient implements RDSAPI for testing.
type mockRDSClient struct {
	DescribeDBInstancesFunc func(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
	ListTagsForResourceFunc func(ctx context.Context, params *rds.ListTagsForResourceInput, optFns ...func(*rds.Options)) (*rds.ListTagsForResourceOutput, error)
	StopDBInstanceFunc      func(ctx context.Context, params *rds.StopDBInstanceInput, optFns ...func(*rds.Options)) (*rds.StopDBInstanceOutput, error)
	StartDBInstanceFunc     func(ctx context.Context, params *rds.StartDBInstanceInput, optFns ...func(*rds.Options)) (*rds.StartDBInstanceOutput, error)
	DescribeDBClustersFunc  func(ctx context.Context, params *rds.DescribeDBClustersInput, optFns ...func(*rds.Options)) (*rds.DescribeDBClustersOutput, error)
	StopDBClusterFunc       func(ctx context.Context, params *rds.StopDBClusterInput, optFns ...func(*rds.Options)) (*rds.StopDBClusterOutput, error)

	describeCalls       int
	listTagsCalls       []*rds.ListTagsForResourceInput
	stopCalls           []*rds.StopDBInstanceInput
	startCalls          []*rds.StartDBInstanceInput
	stopClusterCalls    []*rds.StopDBClusterInput
	startClusterCalls   []*rds.StartDBClusterInput
	describeClusterCall int
}

func (m *mockRDSClient) DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
	m.describeCalls++
	if m.DescribeDBInstancesFunc != nil {
		return m.DescribeDBInstancesFunc(ctx, params, optFns...)
	}
	return &rds.DescribeDBInstancesOutput{}, nil
}

func (m *mockRDSClient) ListTagsForResource(ctx context.Context, params *rds.ListTagsForResourceInput, optFns ...func(*rds.Options)) (*rds.ListTagsForResourceOutput, error) {
	m.listTagsCalls = append(m.listTagsCalls, params)
	if m.ListTagsForResourceFunc != nil {
		return m.ListTagsForResourceFunc(ctx, params, optFns...)
	}
	return &rds.ListTagsForResourceOutput{}, nil
}

func (m *mockRDSClient) StopDBInstance(ctx context.Context, params *rds.StopDBInstanceInput, optFns ...func(*rds.Options)) (*rds.StopDBInstanceOutput, error) {
	m.stopCalls = append(m.stopCalls, params)
	if m.StopDBInstanceFunc != nil {
		return m.StopDBInstanceFunc(ctx, params, optFns...)
	}
	return &rds.StopDBInstanceOutput{}, nil
}

func (m *mockRDSClient) StartDBInstance(ctx context.Context, params *rds.StartDBInstanceInput, optFns ...func(*rds.Options)) (*rds.StartDBInstanceOutput, error) {
	m.startCalls = append(m.startCalls, params)
	if m.StartDBInstanceFunc != nil {
		return m.StartDBInstanceFunc(ctx, params, optFns...)
	}
	return &rds.StartDBInstanceOutput{}, nil
}

func (m *mockRDSClient) DescribeDBClusters(ctx context.Context, params *rds.DescribeDBClustersInput, optFns ...func(*rds.Options)) (*rds.DescribeDBClustersOutput, error) {
	m.describeClusterCall++
	if m.DescribeDBClustersFunc != nil {
		return m.DescribeDBClustersFunc(ctx, params, optFns...)
	}
	return &rds.DescribeDBClustersOutput{}, nil
}

func (m *mockRDSClient) StopDBCluster(ctx context.Context, params *rds.StopDBClusterInput, optFns ...func(*rds.Options)) (*rds.StopDBClusterOutput, error) {
	m.stopClusterCalls = append(m.stopClusterCalls, params)
	if m.StopDBClusterFunc != nil {
		return m.StopDBClusterFunc(ctx, params, optFns...)
	}
	return &rds.StopDBClusterOutput{}, nil
}

func (m *mockRDSClient) StartDBCluster(_ context.Context, params *rds.StartDBClusterInput, _ ...func(*rds.Options)) (*rds.StartDBClusterOutput, error) {
	m.startClusterCalls = append(m.startClusterCalls, params)
	return &rds.StartDBClusterOutput{}, nil
}

// mockRedshiftClient implements RedshiftAPI for testing.
type mockRedshiftClient struct {
	DescribeClustersFunc func(ctx context.Context, params *redshift.DescribeClustersInput, optFns ...func(*redshift.Options)) (*redshift.DescribeClustersOutput, error)
	PauseClusterFunc     func(ctx context.Context, params *redshift.PauseClusterInput, optFns ...func(*redshift.Options)) (*redshift.PauseClusterOutput, error)

	pauseCalls  []*redshift.PauseClusterInput
	resumeCalls []*redshift.ResumeClusterInput
}

func (m *mockRedshiftClient) DescribeClusters(ctx context.Context, params *redshift.DescribeClustersInput, optFns ...func(*redshift.Options)) (*redshift.DescribeClustersOutput, error) {
	if m.DescribeClustersFunc != nil {
		return m.DescribeClustersFunc(ctx, params, optFns...)
	}
	return &redshift.DescribeClustersOutput{}, nil
}

func (m *mockRedshiftClient) PauseCluster(ctx context.Context, params *redshift.PauseClusterInput, optFns ...func(*redshift.Options)) (*redshift.PauseClusterOutput, error) {
	m.pauseCalls = append(m.pauseCalls, params)
	if m.PauseClusterFunc != nil {
		return m.PauseClusterFunc(ctx, params, optFns...)
	}
	return &redshift.PauseClusterOutput{}, nil
}

func (m *mockRedshiftClient) ResumeCluster(_ context.Context, params *redshift.ResumeClusterInput, _ ...func(*redshift.Options)) (*redshift.ResumeClusterOutput, error) {
	m.resumeCalls = append(m.resumeCalls, params)
	return &redshift.ResumeClusterOutput{}, nil
}

// mockCloudWatchClient implements CloudWatchAPI for testing.
type mockCloudWatchClient struct {
	DescribeAlarmsFunc      func(ctx context.Context, params *cloudwatch.DescribeAlarmsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.DescribeAlarmsOutput, error)
	ListTagsForResourceFunc func(ctx context.Context, params *cloudwatch.ListTagsForResourceInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.ListTagsForResourceOutput, error)

	disableCalls []*cloudwatch.DisableAlarmActionsInput
	enableCalls  []*cloudwatch.EnableAlarmActionsInput
}

func (m *mockCloudWatchClient) DescribeAlarms(ctx context.Context, params *cloudwatch.DescribeAlarmsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.DescribeAlarmsOutput, error) {
	if m.DescribeAlarmsFunc != nil {
		return m.DescribeAlarmsFunc(ctx, params, optFns...)
	}
	return &cloudwatch.DescribeAlarmsOutput{}, nil
}

func (m *mockCloudWatchClient) ListTagsForResource(ctx context.Context, params *cloudwatch.ListTagsForResourceInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.ListTagsForResourceOutput, error) {
	if m.ListTagsForResourceFunc != nil {
		return m.ListTagsForResourceFunc(ctx, params, optFns...)
	}
	return &cloudwatch.ListTagsForResourceOutput{}, nil
}

func (m *mockCloudWatchClient) DisableAlarmActions(_ context.Context, params *cloudwatch.DisableAlarmActionsInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.DisableAlarmActionsOutput, error) {
	m.disableCalls = append(m.disableCalls, params)
	return &cloudwatch.DisableAlarmActionsOutput{}, nil
}

func (m *mockCloudWatchClient) EnableAlarmActions(_ context.Context, params *cloudwatch.EnableAlarmActionsInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.EnableAlarmActionsOutput, error) {
	m.enableCalls = append(m.enableCalls, params)
	return &cloudwatch.EnableAlarmActionsOutput{}, nil
}
