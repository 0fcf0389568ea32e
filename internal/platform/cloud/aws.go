// Package cloud builds AWS SDK clients shared by ingest, publishing and database auth.
package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// LoadConfig resolves credentials from the default chain. A non-empty profile selects a
// shared config profile, which is mostly useful on developer machines.
func LoadConfig(ctx context.Context, region, profile string) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("platform/cloud: load aws config: %w", err)
	}
	return cfg, nil
}

// NewS3 returns an S3 client for cfg.
func NewS3(cfg aws.Config) *s3.Client {
	return s3.NewFromConfig(cfg)
}
