package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/banquet-labs/banquet/lib/typing"
	"github.com/banquet-labs/banquet/models"
)

func testRegistry(t *testing.T) *Registry {
	path := filepath.Join(t.TempDir(), "registry.json")
	return NewWithStore("rideshare", &fileStore{path: path}, 0)
}

func testContents() models.RepoContents {
	source := models.DataSource{
		Name:           "driver_stats_source",
		Type:           models.FileSource,
		TimestampField: "event_timestamp",
		Path:           "/data/driver_stats.csv",
	}

	return models.RepoContents{
		Project: "rideshare",
		Entities: []models.Entity{
			{Name: "driver", JoinKey: "driver_id", ValueType: typing.Int64},
		},
		DataSources: []models.DataSource{source},
		FeatureViews: []models.FeatureView{
			{
				Name:        "driver_hourly_stats",
				Entities:    []string{"driver"},
				Features:    []models.Feature{{Name: "conv_rate", ValueType: typing.Float64}},
				TTL:         time.Hour,
				Online:      true,
				BatchSource: source,
			},
		},
		FeatureServices: []models.FeatureService{
			{
				Name: "driver_activity",
				Projections: []models.FeatureViewProjection{
					{Name: "driver_hourly_stats", Features: []string{"conv_rate"}},
				},
			},
		},
	}
}

func TestRegistry_ApplyAndGet(t *testing.T) {
	ctx := context.Background()
	reg := testRegistry(t)

	diff, err := reg.Apply(ctx, testContents(), false)
	assert.NoError(t, err)
	assert.Len(t, diff.Changed(), 4)
	for _, obj := range diff.Changed() {
		assert.Equal(t, TransitionCreate, obj.Transition)
	}

	{
		// Everything is retrievable after apply
		entity, err := reg.GetEntity(ctx, "driver")
		assert.NoError(t, err)
		assert.Equal(t, "driver_id", entity.JoinKey)

		view, err := reg.GetFeatureView(ctx, "driver_hourly_stats")
		assert.NoError(t, err)
		assert.Equal(t, time.Hour, view.TTL)

		service, err := reg.GetFeatureService(ctx, "driver_activity")
		assert.NoError(t, err)
		assert.Len(t, service.Projections, 1)
	}
	{
		// Missing objects surface a typed not found error
		_, err := reg.GetFeatureView(ctx, "does_not_exist")
		assert.True(t, IsNotFound(err))
		assert.ErrorContains(t, err, `feature view "does_not_exist" does not exist in project "rideshare"`)
	}
}

func TestRegistry_ApplyIdempotent(t *testing.T) {
	ctx := context.Background()
	reg := testRegistry(t)

	_, err := reg.Apply(ctx, testContents(), false)
	assert.NoError(t, err)

	// Re-applying identical contents reports no changes.
	diff, err := reg.Apply(ctx, testContents(), false)
	assert.NoError(t, err)
	assert.Empty(t, diff.Changed())
	assert.Equal(t, "no changes", diff.String())
}

func TestRegistry_FullApplyDeletesMissing(t *testing.T) {
	ctx := context.Background()
	reg := testRegistry(t)

	_, err := reg.Apply(ctx, testContents(), false)
	assert.NoError(t, err)

	contents := testContents()
	contents.FeatureServices = nil

	{
		// Partial apply leaves objects absent from the repo untouched
		diff, err := reg.Apply(ctx, contents, true)
		assert.NoError(t, err)
		assert.Empty(t, diff.Changed())

		_, err = reg.GetFeatureService(ctx, "driver_activity")
		assert.NoError(t, err)
	}
	{
		// Full apply deletes them
		diff, err := reg.Apply(ctx, contents, false)
		assert.NoError(t, err)
		assert.Len(t, diff.Changed(), 1)
		assert.Equal(t, TransitionDelete, diff.Changed()[0].Transition)

		_, err = reg.GetFeatureService(ctx, "driver_activity")
		assert.True(t, IsNotFound(err))
	}
}

func TestRegistry_PlanDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	reg := testRegistry(t)

	diff, err := reg.Plan(ctx, testContents(), false)
	assert.NoError(t, err)
	assert.Len(t, diff.Changed(), 4)

	_, err = reg.GetEntity(ctx, "driver")
	assert.True(t, IsNotFound(err))
}

func TestRegistry_MaterializationSurvivesApply(t *testing.T) {
	ctx := context.Background()
	reg := testRegistry(t)

	_, err := reg.Apply(ctx, testContents(), false)
	assert.NoError(t, err)

	interval := models.TimeRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	assert.NoError(t, reg.ApplyMaterialization(ctx, "driver_hourly_stats", interval))

	{
		// An unchanged view with materialization progress does not show as an update
		diff, err := reg.Plan(ctx, testContents(), false)
		assert.NoError(t, err)
		assert.Empty(t, diff.Changed())
	}
	{
		// Progress survives a re-apply
		_, err := reg.Apply(ctx, testContents(), false)
		assert.NoError(t, err)

		view, err := reg.GetFeatureView(ctx, "driver_hourly_stats")
		assert.NoError(t, err)
		assert.Equal(t, []models.TimeRange{interval}, view.MaterializedRanges)

		end, found := view.MostRecentEndTime()
		assert.True(t, found)
		assert.Equal(t, interval.End, end)
	}

	assert.True(t, IsNotFound(reg.ApplyMaterialization(ctx, "missing_view", interval)))
}

func TestRegistry_PersistenceAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "registry.json")

	reg := NewWithStore("rideshare", &fileStore{path: path}, 0)
	_, err := reg.Apply(ctx, testContents(), false)
	assert.NoError(t, err)

	// A fresh registry against the same file sees the committed state.
	other := NewWithStore("rideshare", &fileStore{path: path}, 0)
	views, err := other.ListFeatureViews(ctx)
	assert.NoError(t, err)
	assert.Len(t, views, 1)

	// A registry bound to a different project refuses to read it.
	wrongProject := NewWithStore("delivery", &fileStore{path: path}, 0)
	_, err = wrongProject.ListFeatureViews(ctx)
	assert.ErrorContains(t, err, `registry holds project "rideshare"`)
}

func TestRegistry_Teardown(t *testing.T) {
	ctx := context.Background()
	reg := testRegistry(t)

	_, err := reg.Apply(ctx, testContents(), false)
	assert.NoError(t, err)
	assert.NoError(t, reg.Teardown(ctx))

	entities, err := reg.ListEntities(ctx)
	assert.NoError(t, err)
	assert.Empty(t, entities)
}
