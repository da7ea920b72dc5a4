package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/banquet-labs/banquet/models"
)

const testCSV = `driver_id,conv_rate,event_timestamp
1001,0.85,2024-01-01T10:00:00Z
1001,0.91,2024-01-02T10:00:00Z
1002,0.40,2024-01-01T12:00:00Z
`

func testSource(t *testing.T) (models.DataSource, string) {
	dir := t.TempDir()
	path := filepath.Join(dir, "driver_stats.csv")
	assert.NoError(t, os.WriteFile(path, []byte(testCSV), 0o644))

	return models.DataSource{
		Name:           "driver_stats_source",
		Type:           models.FileSource,
		TimestampField: "event_timestamp",
		Path:           "driver_stats.csv",
	}, dir
}

func TestStore_Pull(t *testing.T) {
	ctx := context.Background()
	source, dir := testSource(t)
	store := NewStore(dir)

	fields := []string{"driver_id", "conv_rate", "event_timestamp"}
	{
		// Unbounded pull returns everything
		rows, err := store.Pull(ctx, source, fields, time.Time{}, time.Time{})
		assert.NoError(t, err)
		assert.Len(t, rows, 3)
		assert.Equal(t, "1001", rows[0]["driver_id"])
		assert.Equal(t, "0.85", rows[0]["conv_rate"])
	}
	{
		// [start, end) filtering on the timestamp column
		start := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
		end := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
		rows, err := store.Pull(ctx, source, fields, start, end)
		assert.NoError(t, err)
		assert.Len(t, rows, 1)
		assert.Equal(t, "1002", rows[0]["driver_id"])
	}
	{
		// Unknown column
		_, err := store.Pull(ctx, source, []string{"nope"}, time.Time{}, time.Time{})
		assert.ErrorContains(t, err, `missing column "nope"`)
	}
	{
		// A missing file reads as empty, not an error
		source.Path = "does_not_exist.csv"
		rows, err := store.Pull(ctx, source, fields, time.Time{}, time.Time{})
		assert.NoError(t, err)
		assert.Empty(t, rows)
	}
}

func TestStore_WriteBatch(t *testing.T) {
	ctx := context.Background()
	source, dir := testSource(t)
	store := NewStore(dir)

	fields := []string{"driver_id", "conv_rate", "event_timestamp"}
	err := store.WriteBatch(ctx, source, fields, []map[string]any{
		{
			"driver_id":       int64(1003),
			"conv_rate":       0.77,
			"event_timestamp": time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		},
	})
	assert.NoError(t, err)

	rows, err := store.Pull(ctx, source, fields, time.Time{}, time.Time{})
	assert.NoError(t, err)
	assert.Len(t, rows, 4)
	assert.Equal(t, "1003", rows[3]["driver_id"])
	assert.Equal(t, "2024-01-03T00:00:00Z", rows[3]["event_timestamp"])
}

func TestStore_WriteBatch_CreatesFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewStore(dir)

	source := models.DataSource{
		Name:           "fresh",
		Type:           models.FileSource,
		TimestampField: "event_timestamp",
		Path:           "nested/fresh.csv",
	}

	fields := []string{"driver_id", "event_timestamp"}
	err := store.WriteBatch(ctx, source, fields, []map[string]any{
		{"driver_id": int64(1), "event_timestamp": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	})
	assert.NoError(t, err)

	rows, err := store.Pull(ctx, source, fields, time.Time{}, time.Time{})
	assert.NoError(t, err)
	assert.Len(t, rows, 1)
}
