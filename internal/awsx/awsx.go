// Package awsx loads the shared AWS configuration used by the S3 and
// DynamoDB stores.
package awsx

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

// Options selects the region and, for local development against an
// emulator, static credentials.
type Options struct {
	Region string

	// StaticKey and StaticSecret, when both set, replace the default
	// credential chain.
	StaticKey    string
	StaticSecret string
}

// Load resolves the default AWS config chain and instruments every client
// built from it with OpenTelemetry spans.
func Load(ctx context.Context, opts Options) (aws.Config, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.StaticKey != "" && opts.StaticSecret != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.StaticKey, opts.StaticSecret, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	otelaws.AppendMiddlewares(&cfg.APIOptions)
	return cfg, nil
}
