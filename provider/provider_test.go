package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/banquet-labs/banquet/lib/telemetry/metrics"
	"github.com/banquet-labs/banquet/lib/typing"
	"github.com/banquet-labs/banquet/models"
	"github.com/banquet-labs/banquet/registry"
	"github.com/banquet-labs/banquet/stores/offline/file"
	"github.com/banquet-labs/banquet/stores/online/memory"
)

const driverStatsCSV = `driver_id,conv_rate,event_timestamp
1001,0.80,2024-01-01T00:00:00Z
1001,0.85,2024-01-02T00:00:00Z
1002,0.40,2024-01-01T06:00:00Z
`

func testProvider(t *testing.T) (*Provider, models.FeatureView) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "driver_stats.csv"), []byte(driverStatsCSV), 0o644))

	source := models.DataSource{
		Name:           "driver_stats_source",
		Type:           models.FileSource,
		TimestampField: "event_timestamp",
		Path:           "driver_stats.csv",
	}
	view := models.FeatureView{
		Name:        "driver_hourly_stats",
		Entities:    []string{"driver"},
		Features:    []models.Feature{{Name: "conv_rate", ValueType: typing.Float64}},
		Online:      true,
		BatchSource: source,
	}

	reg := registry.NewWithStore("rideshare", registry.NewFileStore(filepath.Join(dir, "registry.json")), 0)
	ctx := context.Background()
	_, err := reg.Apply(ctx, models.RepoContents{
		Project:      "rideshare",
		Entities:     []models.Entity{{Name: "driver", JoinKey: "driver_id", ValueType: typing.String}},
		DataSources:  []models.DataSource{source},
		FeatureViews: []models.FeatureView{view},
	}, false)
	assert.NoError(t, err)

	return New(reg, memory.NewStore(), file.NewStore(dir), metrics.NullMetricsProvider{}), view
}

func TestProvider_MaterializeThenRead(t *testing.T) {
	ctx := context.Background()
	provider, view := testProvider(t)

	written, err := provider.MaterializeView(ctx, view, time.Time{}, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	assert.NoError(t, err)
	assert.Equal(t, 2, written)

	key1 := models.NewEntityKey(map[string]any{"driver_id": "1001"})
	key2 := models.NewEntityKey(map[string]any{"driver_id": "1002"})
	missing := models.NewEntityKey(map[string]any{"driver_id": "9999"})

	// Duplicate keys in the request are collapsed before hitting the store.
	rows, err := provider.OnlineRead(ctx, view, []models.EntityKey{key1, key2, key1, missing})
	assert.NoError(t, err)
	assert.Len(t, rows, 4)
	assert.Equal(t, 0.85, rows[0].Values["conv_rate"])
	assert.Equal(t, 0.40, rows[1].Values["conv_rate"])
	assert.Equal(t, rows[0], rows[2])
	assert.Nil(t, rows[3])
}

func TestProvider_MaterializeRecordsInterval(t *testing.T) {
	ctx := context.Background()
	provider, view := testProvider(t)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	_, err := provider.MaterializeView(ctx, view, start, end)
	assert.NoError(t, err)

	stored, err := provider.registry.GetFeatureView(ctx, view.Name)
	assert.NoError(t, err)
	mostRecent, found := stored.MostRecentEndTime()
	assert.True(t, found)
	assert.Equal(t, end, mostRecent)
}

func TestProvider_MaterializeOfflineViewRejected(t *testing.T) {
	ctx := context.Background()
	provider, view := testProvider(t)
	view.Online = false

	_, err := provider.MaterializeView(ctx, view, time.Time{}, time.Now())
	assert.ErrorContains(t, err, "not online-enabled")
}

func TestProvider_IngestRows(t *testing.T) {
	ctx := context.Background()
	provider, view := testProvider(t)

	written, err := provider.IngestRows(ctx, view, []models.FeatureRow{
		{
			EntityKey:      models.NewEntityKey(map[string]any{"driver_id": "1003"}),
			Values:         map[string]any{"conv_rate": 0.99},
			EventTimestamp: time.Now(),
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, written)

	rows, err := provider.OnlineRead(ctx, view, []models.EntityKey{models.NewEntityKey(map[string]any{"driver_id": "1003"})})
	assert.NoError(t, err)
	assert.Equal(t, 0.99, rows[0].Values["conv_rate"])
}
