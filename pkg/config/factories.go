package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/skonto/filesource/internal/logger"
	"github.com/skonto/filesource/pkg/catalog"
	catalogBadger "github.com/skonto/filesource/pkg/catalog/badger"
	catalogMemory "github.com/skonto/filesource/pkg/catalog/memory"
	"github.com/skonto/filesource/pkg/fs"
	fsLocal "github.com/skonto/filesource/pkg/fs/local"
	fsMemory "github.com/skonto/filesource/pkg/fs/memory"
	fsS3 "github.com/skonto/filesource/pkg/fs/s3"
)

// CreateFilesystemFactory builds the filesystem factory named by the
// configuration. The type selector picks the implementation; its section
// is decoded into that implementation's own option struct.
func CreateFilesystemFactory(ctx context.Context, cfg *FilesystemConfig) (fs.Factory, error) {
	switch cfg.Type {
	case "local":
		return fsLocal.NewFactory(), nil
	case "memory":
		return fsMemory.New(), nil
	case "s3":
		return createS3Factory(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown filesystem type: %q (supported: local, memory, s3)", cfg.Type)
	}
}

// createS3Factory builds an S3-backed filesystem factory.
func createS3Factory(ctx context.Context, options map[string]any) (fs.Factory, error) {
	type S3Options struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var opts S3Options
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode S3 filesystem config: %w", err)
	}

	if opts.Bucket == "" {
		return nil, fmt.Errorf("S3 filesystem: bucket is required")
	}
	if opts.Region == "" {
		return nil, fmt.Errorf("S3 filesystem: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(opts.Region))

	// Custom endpoint support for MinIO, Localstack and friends.
	if opts.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               opts.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Static credentials if provided, otherwise the default chain.
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID,
			opts.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Path-style addressing for S3-compatible endpoints.
		if opts.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	fsys, err := fsS3.New(ctx, fsS3.Config{
		Client:    client,
		Bucket:    opts.Bucket,
		KeyPrefix: opts.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 filesystem: %w", err)
	}

	logger.Info("S3 filesystem initialized: bucket=%s, region=%s, prefix=%s",
		opts.Bucket, opts.Region, opts.KeyPrefix)

	return fsS3.NewFactory(fsys), nil
}

// CreateCatalog builds the catalog named by the configuration. Callers
// should close catalogs that implement io.Closer on shutdown.
func CreateCatalog(ctx context.Context, cfg *CatalogConfig) (catalog.Catalog, error) {
	switch cfg.Type {
	case "memory":
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return catalogMemory.New(), nil
	case "badger":
		return createBadgerCatalog(ctx, cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown catalog type: %q (supported: memory, badger)", cfg.Type)
	}
}

// createBadgerCatalog builds a BadgerDB-backed catalog.
func createBadgerCatalog(ctx context.Context, options map[string]any) (catalog.Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type BadgerOptions struct {
		DBPath   string `mapstructure:"db_path"`
		InMemory bool   `mapstructure:"in_memory"`
	}

	var opts BadgerOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode badger catalog config: %w", err)
	}

	cat, err := catalogBadger.New(ctx, catalogBadger.Config{
		DBPath:   opts.DBPath,
		InMemory: opts.InMemory,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger catalog: %w", err)
	}

	logger.Info("badger catalog initialized: path=%s, in_memory=%v", opts.DBPath, opts.InMemory)
	return cat, nil
}
