package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/banquet-labs/banquet/lib/typing"
	"github.com/banquet-labs/banquet/models"
)

func testView() models.FeatureView {
	return models.FeatureView{
		Name:     "driver_hourly_stats",
		Entities: []string{"driver"},
		Features: []models.Feature{
			{Name: "conv_rate", ValueType: typing.Float64},
			{Name: "trips", ValueType: typing.Int64},
		},
		Online: true,
	}
}

func TestStore_WriteThenRead(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	view := testView()

	key := models.NewEntityKey(map[string]any{"driver_id": int64(1001)})
	written, err := store.OnlineWrite(ctx, view, []models.FeatureRow{
		{
			EntityKey:      key,
			Values:         map[string]any{"conv_rate": 0.85, "trips": int64(42)},
			EventTimestamp: time.Now(),
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, written)

	missingKey := models.NewEntityKey(map[string]any{"driver_id": int64(9999)})
	rows, err := store.OnlineRead(ctx, view, []models.EntityKey{key, missingKey})
	assert.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.NotNil(t, rows[0])
	assert.Equal(t, 0.85, rows[0].Values["conv_rate"])
	assert.Equal(t, int64(42), rows[0].Values["trips"])
	assert.Nil(t, rows[1])
}

func TestStore_StaleWriteSkipped(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	view := testView()
	key := models.NewEntityKey(map[string]any{"driver_id": int64(1001)})

	now := time.Now()
	written, err := store.OnlineWrite(ctx, view, []models.FeatureRow{
		{EntityKey: key, Values: map[string]any{"trips": int64(10)}, EventTimestamp: now},
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, written)

	// An older row must not clobber the fresher one.
	written, err = store.OnlineWrite(ctx, view, []models.FeatureRow{
		{EntityKey: key, Values: map[string]any{"trips": int64(5)}, EventTimestamp: now.Add(-time.Hour)},
	})
	assert.NoError(t, err)
	assert.Zero(t, written)

	rows, err := store.OnlineRead(ctx, view, []models.EntityKey{key})
	assert.NoError(t, err)
	assert.Equal(t, int64(10), rows[0].Values["trips"])
}

func TestStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	view := testView()
	view.TTL = time.Hour
	key := models.NewEntityKey(map[string]any{"driver_id": int64(1001)})

	_, err := store.OnlineWrite(ctx, view, []models.FeatureRow{
		{EntityKey: key, Values: map[string]any{"trips": int64(10)}, EventTimestamp: time.Now().Add(-2 * time.Hour)},
	})
	assert.NoError(t, err)

	rows, err := store.OnlineRead(ctx, view, []models.EntityKey{key})
	assert.NoError(t, err)
	assert.Nil(t, rows[0])
}

func TestStore_Teardown(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	view := testView()
	key := models.NewEntityKey(map[string]any{"driver_id": int64(1001)})

	_, err := store.OnlineWrite(ctx, view, []models.FeatureRow{
		{EntityKey: key, Values: map[string]any{"trips": int64(10)}, EventTimestamp: time.Now()},
	})
	assert.NoError(t, err)
	assert.NoError(t, store.Teardown(ctx, []models.FeatureView{view}))

	rows, err := store.OnlineRead(ctx, view, []models.EntityKey{key})
	assert.NoError(t, err)
	assert.Nil(t, rows[0])
}
