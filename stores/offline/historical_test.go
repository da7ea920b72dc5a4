package offline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/banquet-labs/banquet/lib/typing"
	"github.com/banquet-labs/banquet/models"
	"github.com/banquet-labs/banquet/stores/offline"
	"github.com/banquet-labs/banquet/stores/offline/file"
)

const driverStatsCSV = `driver_id,conv_rate,trips,event_timestamp,created
1001,0.80,10,2024-01-01T00:00:00Z,2024-01-01T01:00:00Z
1001,0.85,12,2024-01-02T00:00:00Z,2024-01-02T01:00:00Z
1001,0.86,12,2024-01-02T00:00:00Z,2024-01-02T02:00:00Z
1002,0.40,3,2024-01-01T06:00:00Z,2024-01-01T07:00:00Z
`

func testStore(t *testing.T) (*file.Store, models.FeatureView) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "driver_stats.csv"), []byte(driverStatsCSV), 0o644))

	view := models.FeatureView{
		Name:     "driver_hourly_stats",
		Entities: []string{"driver"},
		Features: []models.Feature{
			{Name: "conv_rate", ValueType: typing.Float64},
			{Name: "trips", ValueType: typing.Int64},
		},
		Online: true,
		BatchSource: models.DataSource{
			Name:                   "driver_stats_source",
			Type:                   models.FileSource,
			TimestampField:         "event_timestamp",
			CreatedTimestampColumn: "created",
			Path:                   "driver_stats.csv",
		},
	}

	return file.NewStore(dir), view
}

func TestPullLatest(t *testing.T) {
	ctx := context.Background()
	store, view := testStore(t)

	rows, err := offline.PullLatest(ctx, store, view, []string{"driver_id"}, time.Time{}, time.Time{})
	assert.NoError(t, err)
	assert.Len(t, rows, 2)

	byDriver := make(map[string]models.FeatureRow)
	for _, row := range rows {
		byDriver[row.EntityKey.Serialize()] = row
	}

	{
		// Duplicate event timestamps resolve by created timestamp
		row := byDriver["driver_id=1001"]
		assert.Equal(t, 0.86, row.Values["conv_rate"])
		assert.Equal(t, int64(12), row.Values["trips"])
	}
	{
		row := byDriver["driver_id=1002"]
		assert.Equal(t, 0.40, row.Values["conv_rate"])
	}
}

func TestPullLatest_WindowExcludesOlderRows(t *testing.T) {
	ctx := context.Background()
	store, view := testStore(t)

	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	rows, err := offline.PullLatest(ctx, store, view, []string{"driver_id"}, start, end)
	assert.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, "driver_id=1001", rows[0].EntityKey.Serialize())
}

func TestGetHistoricalFeatures(t *testing.T) {
	ctx := context.Background()
	store, view := testStore(t)

	entityRows := []map[string]any{
		{"driver_id": "1001", "event_timestamp": "2024-01-01T12:00:00Z"},
		{"driver_id": "1001", "event_timestamp": "2024-01-03T00:00:00Z"},
		{"driver_id": "1002", "event_timestamp": "2024-01-01T00:00:00Z"},
	}

	join := offline.ViewJoin{
		View:     view,
		JoinKeys: []string{"driver_id"},
		Features: []string{"conv_rate"},
	}

	job, err := offline.GetHistoricalFeatures(ctx, store, entityRows, []offline.ViewJoin{join})
	assert.NoError(t, err)
	assert.Equal(t, []string{"conv_rate"}, job.FeatureColumns)

	rows := job.Rows()
	assert.Len(t, rows, 3)

	// As of Jan 1 noon, only the Jan 1 row qualifies.
	assert.Equal(t, 0.80, rows[0]["conv_rate"])
	// As of Jan 3, the freshest Jan 2 row wins (created breaks the tie).
	assert.Equal(t, 0.86, rows[1]["conv_rate"])
	// Driver 1002 has no data at or before Jan 1 midnight.
	assert.Nil(t, rows[2]["conv_rate"])
}

func TestGetHistoricalFeatures_TTLBound(t *testing.T) {
	ctx := context.Background()
	store, view := testStore(t)
	view.TTL = 6 * time.Hour

	entityRows := []map[string]any{
		// 12 hours after the Jan 1 row: outside the TTL lookback.
		{"driver_id": "1001", "event_timestamp": "2024-01-01T12:00:00Z"},
		// 2 hours after: inside.
		{"driver_id": "1001", "event_timestamp": "2024-01-01T02:00:00Z"},
	}

	join := offline.ViewJoin{
		View:     view,
		JoinKeys: []string{"driver_id"},
		Features: []string{"conv_rate"},
	}

	job, err := offline.GetHistoricalFeatures(ctx, store, entityRows, []offline.ViewJoin{join})
	assert.NoError(t, err)

	rows := job.Rows()
	assert.Nil(t, rows[0]["conv_rate"])
	assert.Equal(t, 0.80, rows[1]["conv_rate"])
}

func TestGetHistoricalFeatures_FullFeatureNames(t *testing.T) {
	ctx := context.Background()
	store, view := testStore(t)

	entityRows := []map[string]any{
		{"driver_id": "1001", "event_timestamp": "2024-01-03T00:00:00Z"},
	}

	join := offline.ViewJoin{
		View:         view,
		JoinKeys:     []string{"driver_id"},
		Features:     []string{"conv_rate", "trips"},
		OutputPrefix: "driver_hourly_stats__",
	}

	job, err := offline.GetHistoricalFeatures(ctx, store, entityRows, []offline.ViewJoin{join})
	assert.NoError(t, err)
	assert.Equal(t, []string{"driver_hourly_stats__conv_rate", "driver_hourly_stats__trips"}, job.FeatureColumns)
	assert.Equal(t, 0.86, job.Rows()[0]["driver_hourly_stats__conv_rate"])
}

func TestGetHistoricalFeatures_JoinKeyMap(t *testing.T) {
	ctx := context.Background()
	store, view := testStore(t)

	entityRows := []map[string]any{
		{"courier_id": "1001", "event_timestamp": "2024-01-03T00:00:00Z"},
	}

	join := offline.ViewJoin{
		View:       view,
		JoinKeys:   []string{"driver_id"},
		JoinKeyMap: map[string]string{"courier_id": "driver_id"},
		Features:   []string{"conv_rate"},
	}

	job, err := offline.GetHistoricalFeatures(ctx, store, entityRows, []offline.ViewJoin{join})
	assert.NoError(t, err)
	assert.Equal(t, 0.86, job.Rows()[0]["conv_rate"])
}

func TestGetHistoricalFeatures_MissingTimestamp(t *testing.T) {
	ctx := context.Background()
	store, _ := testStore(t)

	_, err := offline.GetHistoricalFeatures(ctx, store, []map[string]any{{"driver_id": "1001"}}, nil)
	assert.ErrorContains(t, err, `missing the "event_timestamp" column`)
}
