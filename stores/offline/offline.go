package offline

import (
	"context"
	"time"

	"github.com/banquet-labs/banquet/models"
)

// Store reads and writes historical feature data in a batch source. Backends
// only pull raw rows; point-in-time correctness is layered on top by this
// package so every backend behaves identically.
type Store interface {
	// Pull returns all rows from the source whose timestamp field falls within
	// [start, end). A zero start or end leaves that side unbounded. Field
	// mapping is the caller's concern.
	Pull(ctx context.Context, source models.DataSource, fields []string, start, end time.Time) ([]map[string]any, error)
	WriteBatch(ctx context.Context, source models.DataSource, fields []string, rows []map[string]any) error
}
