package aws

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/snooze/internal/scheduler"
	"github.com/yairfalse/snooze/pkg/resource"
)

// base carries what every scheduler needs: identity, region and options.
type base struct {
	name   string
	kind   resource.Kind
	region string
	opts   scheduler.Options
}

// Name returns the service name.
func (b *base) Name() string {
	return b.name
}

// Region returns the region the scheduler was built for.
func (b *base) Region() string {
	return b.region
}

func (b *base) logger(ctx context.Context) *zerolog.Logger {
	l := log.With().Ctx(ctx).Str("scheduler", b.name).Str("region", b.region).Logger()
	return &l
}

// validate rejects runs that would act on everything or on nothing.
func (b *base) validate(action resource.Action, tags resource.Tags, known bool) error {
	if len(tags) == 0 {
		return scheduler.ErrNoResourceTags
	}
	if !known {
		return fmt.Errorf("%w %q for %s", scheduler.ErrUnknownAction, action, b.name)
	}
	return nil
}

func (b *base) outcome(id string, action resource.Action) resource.Outcome {
	return resource.Outcome{
		Kind:   b.kind,
		ID:     id,
		Region: b.region,
		Action: action,
	}
}

func skipped(o resource.Outcome, reason string) resource.Outcome {
	o.Status = resource.StatusSkipped
	o.SkipReason = reason
	return o
}

func dryRun(o resource.Outcome, op resource.Operation) resource.Outcome {
	o.Operation = op
	o.Status = resource.StatusDryRun
	return o
}

func succeeded(o resource.Outcome, op resource.Operation) resource.Outcome {
	o.Operation = op
	o.Status = resource.StatusSuccess
	return o
}

func failed(o resource.Outcome, op resource.Operation, err error) resource.Outcome {
	o.Operation = op
	o.Status = resource.StatusFailed
	o.Error = err.Error()
	o.ErrorCode = errorCode(err)
	return o
}

// errorCode extracts the AWS API error code, if any.
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// isAutoScalingMember reports whether the instance is managed by an
// auto-scaling group. Group members are left to the group scheduler.
func isAutoScalingMember(ctx context.Context, client AutoScalingAPI, instanceID string) (bool, error) {
	output, err := client.DescribeAutoScalingInstances(ctx, &autoscaling.DescribeAutoScalingInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return false, fmt.Errorf("describe auto scaling instances %s: %w", instanceID, err)
	}
	return len(output.AutoScalingInstances) > 0, nil
}

// ec2Filters builds a state filter plus one exact tag filter per required
// tag. EC2 ANDs filters, so only resources carrying every tag are returned.
func ec2Filters(stateFilter string, states []string, tags resource.Tags) []ec2types.Filter {
	filters := make([]ec2types.Filter, 0, len(tags)+1)
	filters = append(filters, ec2types.Filter{
		Name:   aws.String(stateFilter),
		Values: states,
	})
	for _, tag := range tags {
		filters = append(filters, ec2types.Filter{
			Name:   aws.String("tag:" + tag.Key),
			Values: []string{tag.Value},
		})
	}
	return filters
}

// convertTags converts any AWS SDK tag slice (ec2, autoscaling, rds,
// redshift, cloudwatch) to resource tags. Every SDK tag type carries Key
// and Value fields as *string, so one reflective walk serves them all.
func convertTags(tags interface{}) resource.Tags {
	result := resource.Tags{}
	if tags == nil {
		return result
	}

	v := reflect.ValueOf(tags)
	if v.Kind() != reflect.Slice {
		return result
	}

	for i := 0; i < v.Len(); i++ {
		key, value := extractTagKeyValue(v.Index(i).Interface())
		result = append(result, resource.Tag{Key: key, Value: value})
	}
	return result
}

// extractTagKeyValue extracts Key and Value fields from an AWS tag struct.
func extractTagKeyValue(tag interface{}) (string, string) {
	v := reflect.ValueOf(tag)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return "", ""
	}

	var key, value string
	if f := v.FieldByName("Key"); f.IsValid() {
		key = extractStringValue(f.Interface())
	}
	if f := v.FieldByName("Value"); f.IsValid() {
		value = extractStringValue(f.Interface())
	}
	return key, value
}

// extractStringValue handles *string and string types.
func extractStringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case *string:
		return aws.ToString(val)
	default:
		return ""
	}
}
