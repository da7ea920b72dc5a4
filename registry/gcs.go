package registry

import (
	"context"
	"fmt"

	"github.com/banquet-labs/banquet/lib/config"
	"github.com/banquet-labs/banquet/lib/gcslib"
)

type gcsStore struct {
	bucket string
	key    string
	client gcslib.GCSClient
}

func newGCSStore(ctx context.Context, cfg config.Registry) (*gcsStore, error) {
	bucket, key, err := gcslib.ParseGCSURI(cfg.Path)
	if err != nil {
		return nil, err
	}

	client, err := gcslib.NewGCSClient(ctx, cfg.PathToCredentials)
	if err != nil {
		return nil, err
	}

	return &gcsStore{bucket: bucket, key: key, client: client}, nil
}

func (g *gcsStore) Load(ctx context.Context) ([]byte, error) {
	data, err := g.client.ReadObject(ctx, g.bucket, g.key)
	if err != nil {
		if gcslib.IsObjectNotFound(err) {
			return nil, ErrStateNotFound
		}

		return nil, fmt.Errorf("failed to read registry from gcs: %w", err)
	}

	return data, nil
}

func (g *gcsStore) Save(ctx context.Context, data []byte) error {
	if err := g.client.WriteObject(ctx, g.bucket, g.key, data); err != nil {
		return fmt.Errorf("failed to write registry to gcs: %w", err)
	}

	return nil
}

func (g *gcsStore) Teardown(ctx context.Context) error {
	return g.client.DeleteObject(ctx, g.bucket, g.key)
}
