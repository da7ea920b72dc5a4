package gcslib

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type GCSClient struct {
	client *storage.Client
}

func NewGCSClient(ctx context.Context, pathToCredentials string) (GCSClient, error) {
	var opts []option.ClientOption
	if pathToCredentials != "" {
		opts = append(opts, option.WithCredentialsFile(pathToCredentials))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return GCSClient{}, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return GCSClient{client: client}, nil
}

// ParseGCSURI splits a gs://bucket/key URI into its bucket and object key.
func ParseGCSURI(uri string) (string, string, error) {
	trimmed, found := strings.CutPrefix(uri, "gs://")
	if !found {
		return "", "", fmt.Errorf("invalid GCS URI %q, missing gs:// prefix", uri)
	}

	bucket, key, found := strings.Cut(trimmed, "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid GCS URI %q, expected gs://bucket/key", uri)
	}

	return bucket, key, nil
}

func IsObjectNotFound(err error) bool {
	return errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist)
}

func (g GCSClient) ReadObject(ctx context.Context, bucket, key string) ([]byte, error) {
	reader, err := g.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, err
	}

	defer reader.Close()
	return io.ReadAll(reader)
}

func (g GCSClient) WriteObject(ctx context.Context, bucket, key string, body []byte) error {
	writer := g.client.Bucket(bucket).Object(key).NewWriter(ctx)
	if _, err := writer.Write(body); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write object to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}

	return nil
}

func (g GCSClient) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := g.client.Bucket(bucket).Object(key).Delete(ctx); err != nil && !IsObjectNotFound(err) {
		return fmt.Errorf("failed to delete object %q: %w", key, err)
	}

	return nil
}
