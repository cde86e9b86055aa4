package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/ferry/internal/retry"
	"github.com/yairfalse/ferry/pkg/instance"
)

// Instances lists every instance in every reservation, following all pages.
func (p *Provider) Instances(ctx context.Context) ([]instance.Instance, error) {
	var instances []instance.Instance
	var nextToken *string

	for {
		output, err := retry.Do(ctx, p.retry, "describe instances", func(ctx context.Context) (*ec2.DescribeInstancesOutput, error) {
			return p.ec2Client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{NextToken: nextToken})
		})
		if err != nil {
			return nil, err
		}

		for _, reservation := range output.Reservations {
			for _, inst := range reservation.Instances {
				instances = append(instances, convertInstance(inst))
			}
		}

		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}

	log.Debug().Int("count", len(instances)).Msg("instances listed")
	return instances, nil
}

// StartInstance issues a start request for one instance.
func (p *Provider) StartInstance(ctx context.Context, id string) error {
	output, err := retry.Do(ctx, p.retry, "start instance", func(ctx context.Context) (*ec2.StartInstancesOutput, error) {
		return p.ec2Client.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: []string{id}})
	})
	if err != nil {
		return err
	}

	for _, change := range output.StartingInstances {
		log.Info().
			Str("instance_id", aws.ToString(change.InstanceId)).
			Str("from", translateState(change.PreviousState).String()).
			Str("to", translateState(change.CurrentState).String()).
			Msg("instance state change")
	}
	return nil
}

// AvailabilityZones returns the zone names visible to the account in this region.
func (p *Provider) AvailabilityZones(ctx context.Context) ([]string, error) {
	output, err := retry.Do(ctx, p.retry, "describe availability zones", func(ctx context.Context) (*ec2.DescribeAvailabilityZonesOutput, error) {
		return p.ec2Client.DescribeAvailabilityZones(ctx, &ec2.DescribeAvailabilityZonesInput{})
	})
	if err != nil {
		return nil, err
	}

	zones := make([]string, 0, len(output.AvailabilityZones))
	for _, az := range output.AvailabilityZones {
		zones = append(zones, aws.ToString(az.ZoneName))
	}
	return zones, nil
}

func convertInstance(inst ec2types.Instance) instance.Instance {
	i := instance.Instance{
		ID:    aws.ToString(inst.InstanceId),
		State: translateState(inst.State),
		Tags:  make(map[string]string, len(inst.Tags)),
		Type:  string(inst.InstanceType),
	}
	for _, tag := range inst.Tags {
		i.Tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	if inst.Placement != nil {
		i.Zone = aws.ToString(inst.Placement.AvailabilityZone)
	}
	if inst.LaunchTime != nil {
		i.LaunchTime = *inst.LaunchTime
	}
	return i
}

// EC2 state codes; only the low byte is meaningful.
var stateByCode = map[int32]instance.LifecycleState{
	0:  instance.Pending,
	16: instance.Running,
	32: instance.ShuttingDown,
	48: instance.Terminated,
	64: instance.Stopping,
	80: instance.Stopped,
}

// translateState maps the EC2 state to a LifecycleState, by name first, then by code.
func translateState(state *ec2types.InstanceState) instance.LifecycleState {
	if state == nil {
		return instance.Unknown
	}
	// EC2 state names match instance.LifecycleState names
	if s := instance.ParseState(string(state.Name)); s != instance.Unknown {
		return s
	}
	if state.Code != nil {
		if s, ok := stateByCode[aws.ToInt32(state.Code)&0xff]; ok {
			return s
		}
	}
	return instance.Unknown
}
