package registry

import (
	"cmp"
	"context"
	"fmt"
	"os"

	"github.com/banquet-labs/banquet/lib/awslib"
	"github.com/banquet-labs/banquet/lib/config"
	"github.com/banquet-labs/banquet/lib/environ"
)

type s3Store struct {
	bucket string
	key    string
	region string

	// Set when the registry role is assumed via STS, nil otherwise.
	credentials *awslib.Credentials
}

func newS3Store(ctx context.Context, cfg config.Registry) (*s3Store, error) {
	bucket, key, err := awslib.ParseS3URI(cfg.Path)
	if err != nil {
		return nil, err
	}

	store := &s3Store{
		bucket: bucket,
		key:    key,
		region: cmp.Or(cfg.S3Region, os.Getenv("AWS_REGION")),
	}

	if cfg.RoleARN != "" {
		if err := environ.MustGetEnv("AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY"); err != nil {
			return nil, err
		}

		credentials, err := awslib.GenerateSTSCredentials(ctx,
			os.Getenv("AWS_ACCESS_KEY_ID"),
			os.Getenv("AWS_SECRET_ACCESS_KEY"),
			cfg.RoleARN,
			"banquet-registry",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to assume registry role: %w", err)
		}

		store.credentials = &credentials
	}

	return store, nil
}

func (s *s3Store) client(ctx context.Context) (awslib.S3Client, error) {
	if s.credentials != nil {
		creds, err := s.credentials.BuildCredentials(ctx)
		if err != nil {
			return awslib.S3Client{}, err
		}

		return awslib.NewS3Client(awslib.NewConfigWithCredentialsAndRegion(creds, s.region)), nil
	}

	cfg, err := awslib.NewDefaultConfig(ctx, s.region)
	if err != nil {
		return awslib.S3Client{}, err
	}

	return awslib.NewS3Client(cfg), nil
}

func (s *s3Store) Load(ctx context.Context) ([]byte, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	data, err := client.ReadObject(ctx, s.bucket, s.key)
	if err != nil {
		if awslib.IsObjectNotFound(err) {
			return nil, ErrStateNotFound
		}

		return nil, fmt.Errorf("failed to read registry from s3: %w", err)
	}

	return data, nil
}

func (s *s3Store) Save(ctx context.Context, data []byte) error {
	client, err := s.client(ctx)
	if err != nil {
		return err
	}

	if err := client.WriteObject(ctx, s.bucket, s.key, data); err != nil {
		return fmt.Errorf("failed to write registry to s3: %w", err)
	}

	return nil
}

func (s *s3Store) Teardown(ctx context.Context) error {
	client, err := s.client(ctx)
	if err != nil {
		return err
	}

	if err := client.DeleteObject(ctx, s.bucket, s.key); err != nil && !awslib.IsObjectNotFound(err) {
		return fmt.Errorf("failed to delete registry from s3: %w", err)
	}

	return nil
}
