package online

import (
	"context"

	"github.com/banquet-labs/banquet/models"
)

// Store is a low-latency key-value backend serving materialized feature values.
//
// OnlineRead returns one row per requested entity key, in order, with a nil
// entry when the key has never been written. Writes are last-write-wins by
// event timestamp: a row older than what is already stored is skipped.
type Store interface {
	OnlineWrite(ctx context.Context, view models.FeatureView, rows []models.FeatureRow) (int, error)
	OnlineRead(ctx context.Context, view models.FeatureView, keys []models.EntityKey) ([]*models.FeatureRow, error)
	// Update provisions state for new feature views and removes state for deleted ones.
	Update(ctx context.Context, toKeep []models.FeatureView, toDelete []models.FeatureView) error
	Teardown(ctx context.Context, views []models.FeatureView) error
}
