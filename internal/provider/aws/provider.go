// Package aws is ferry's boundary to EC2, S3 and SQS.
// Every call is retried on transient failures and returns errors classified by package fault.
package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/ferry/internal/fault"
	"github.com/yairfalse/ferry/internal/retry"
)

// ErrNoCredentials is returned by New when no credential source resolves.
var ErrNoCredentials = errors.New("no aws credentials configured")

// Provider talks to EC2, S3 and SQS in one region.
type Provider struct {
	region string
	retry  retry.Policy

	// AWS clients (interfaces for testability)
	ec2Client EC2API
	s3Client  S3API
	sqsClient SQSAPI
}

// Config holds AWS provider configuration.
type Config struct {
	Region  string
	Profile string
	Retry   retry.Policy
}

// New loads credentials and builds the three service clients.
// Credential failures are returned as fault.ClientError; nothing else can work without them.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fault.Classify("load aws config", err)
	}

	if awsCfg.Credentials == nil {
		return nil, fault.Classify("load credentials", ErrNoCredentials)
	}
	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		return nil, &fault.ClientError{
			Op:  "load credentials",
			Err: fmt.Errorf("check the shared credentials file or environment: %w", err),
		}
	}

	log.Debug().Str("region", cfg.Region).Str("profile", cfg.Profile).Msg("aws credentials resolved")

	return NewWithClients(cfg.Region, cfg.Retry,
		ec2.NewFromConfig(awsCfg),
		s3.NewFromConfig(awsCfg),
		sqs.NewFromConfig(awsCfg),
	), nil
}

// NewWithClients builds a Provider from existing clients.
func NewWithClients(region string, policy retry.Policy, ec2Client EC2API, s3Client S3API, sqsClient SQSAPI) *Provider {
	return &Provider{
		region:    region,
		retry:     policy,
		ec2Client: ec2Client,
		s3Client:  s3Client,
		sqsClient: sqsClient,
	}
}

// Region returns the region the clients were built for.
func (p *Provider) Region() string {
	return p.region
}
