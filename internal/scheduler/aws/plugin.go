// Package aws implements the AWS schedulers for snooze.
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/redshift"

	"github.com/yairfalse/snooze/internal/scheduler"
)

// Service names, also used as configuration keys.
const (
	ServiceAutoScaling     = "autoscaling"
	ServiceSpot            = "spot"
	ServiceEC2             = "ec2"
	ServiceRDS             = "rds"
	ServiceAurora          = "aurora"
	ServiceRedshift        = "redshift"
	ServiceCloudWatchAlarm = "cloudwatch_alarm"
)

// Services lists every scheduler in the order a run dispatches them.
var Services = []string{
	ServiceAutoScaling,
	ServiceSpot,
	ServiceEC2,
	ServiceRDS,
	ServiceAurora,
	ServiceRedshift,
	ServiceCloudWatchAlarm,
}

// LoadConfig loads the AWS SDK configuration. An empty region falls back
// to the SDK's default resolution (environment, shared config).
func LoadConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

type builder func(region string, cfg aws.Config, opts scheduler.Options) scheduler.Scheduler

var builders = map[string]builder{
	ServiceAutoScaling: func(region string, cfg aws.Config, opts scheduler.Options) scheduler.Scheduler {
		return NewAutoScalingScheduler(region, ec2.NewFromConfig(cfg), autoscaling.NewFromConfig(cfg), opts)
	},
	ServiceSpot: func(region string, cfg aws.Config, opts scheduler.Options) scheduler.Scheduler {
		return NewSpotScheduler(region, ec2.NewFromConfig(cfg), autoscaling.NewFromConfig(cfg), opts)
	},
	ServiceEC2: func(region string, cfg aws.Config, opts scheduler.Options) scheduler.Scheduler {
		return NewEC2Scheduler(region, ec2.NewFromConfig(cfg), autoscaling.NewFromConfig(cfg), opts)
	},
	ServiceRDS: func(region string, cfg aws.Config, opts scheduler.Options) scheduler.Scheduler {
		return NewRDSScheduler(region, rds.NewFromConfig(cfg), opts)
	},
	ServiceAurora: func(region string, cfg aws.Config, opts scheduler.Options) scheduler.Scheduler {
		return NewAuroraScheduler(region, rds.NewFromConfig(cfg), opts)
	},
	ServiceRedshift: func(region string, cfg aws.Config, opts scheduler.Options) scheduler.Scheduler {
		return NewRedshiftScheduler(region, redshift.NewFromConfig(cfg), opts)
	},
	ServiceCloudWatchAlarm: func(region string, cfg aws.Config, opts scheduler.Options) scheduler.Scheduler {
		return NewAlarmScheduler(region, cloudwatch.NewFromConfig(cfg), opts)
	},
}

func factory(b builder) scheduler.Factory {
	return func(ctx context.Context, region string, opts scheduler.Options) (scheduler.Scheduler, error) {
		cfg, err := LoadConfig(ctx, region)
		if err != nil {
			return nil, err
		}
		if region == "" {
			region = cfg.Region
		}
		return b(region, cfg, opts), nil
	}
}

// Register adds every AWS scheduler factory to the scheduler registry.
func Register() {
	for name, b := range builders {
		scheduler.Register(name, factory(b))
	}
}
