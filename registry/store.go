package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/banquet-labs/banquet/lib/config"
)

// ErrStateNotFound is returned by a [Store] when no registry has been written yet.
var ErrStateNotFound = errors.New("registry state does not exist")

// Store persists the serialized registry state.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Teardown(ctx context.Context) error
}

func LoadStore(ctx context.Context, cfg config.Registry) (Store, error) {
	switch {
	case strings.HasPrefix(cfg.Path, "s3://"):
		return newS3Store(ctx, cfg)
	case strings.HasPrefix(cfg.Path, "gs://"):
		return newGCSStore(ctx, cfg)
	case cfg.Path != "":
		return &fileStore{path: cfg.Path}, nil
	default:
		return nil, fmt.Errorf("registry path is empty")
	}
}
