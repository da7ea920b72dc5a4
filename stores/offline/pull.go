package offline

import (
	"context"
	"fmt"
	"time"

	"github.com/banquet-labs/banquet/lib/typing"
	"github.com/banquet-labs/banquet/models"
)

// pullFields lists the source columns needed to reconstruct feature rows for a view.
func pullFields(view models.FeatureView, joinKeys []string) []string {
	source := view.BatchSource
	fields := make([]string, 0, len(joinKeys)+len(view.Features)+2)
	for _, joinKey := range joinKeys {
		fields = append(fields, source.ColumnForField(joinKey))
	}
	for _, feature := range view.Features {
		fields = append(fields, source.ColumnForField(feature.Name))
	}

	fields = append(fields, source.TimestampField)
	if source.CreatedTimestampColumn != "" {
		fields = append(fields, source.CreatedTimestampColumn)
	}

	return fields
}

// rowToFeatureRow maps one raw source row into a typed [models.FeatureRow].
func rowToFeatureRow(view models.FeatureView, joinKeys []string, raw map[string]any) (models.FeatureRow, error) {
	source := view.BatchSource

	keyValues := make(map[string]any, len(joinKeys))
	for _, joinKey := range joinKeys {
		keyValues[joinKey] = raw[source.ColumnForField(joinKey)]
	}
	if len(keyValues) == 0 {
		keyValues[models.DummyEntityKey] = models.DummyEntityVal
	}

	values := make(map[string]any, len(view.Features))
	for _, feature := range view.Features {
		rawValue := raw[source.ColumnForField(feature.Name)]
		if rawValue == nil {
			values[feature.Name] = nil
			continue
		}

		value, err := typing.CastValue(rawValue, feature.ValueType)
		if err != nil {
			return models.FeatureRow{}, fmt.Errorf("failed to cast feature %q: %w", feature.Name, err)
		}

		values[feature.Name] = value
	}

	eventTS, err := typing.ParseTimestamp(raw[source.TimestampField])
	if err != nil {
		return models.FeatureRow{}, fmt.Errorf("failed to parse timestamp field %q: %w", source.TimestampField, err)
	}

	row := models.FeatureRow{
		EntityKey:      models.NewEntityKey(keyValues),
		Values:         values,
		EventTimestamp: eventTS,
	}

	if source.CreatedTimestampColumn != "" {
		if rawCreated := raw[source.CreatedTimestampColumn]; rawCreated != nil {
			if row.Created, err = typing.ParseTimestamp(rawCreated); err != nil {
				return models.FeatureRow{}, fmt.Errorf("failed to parse created timestamp column %q: %w", source.CreatedTimestampColumn, err)
			}
		}
	}

	return row, nil
}

func newerThan(candidate, current models.FeatureRow) bool {
	if !candidate.EventTimestamp.Equal(current.EventTimestamp) {
		return candidate.EventTimestamp.After(current.EventTimestamp)
	}

	return candidate.Created.After(current.Created)
}

// PullLatest reads the view's batch source over [start, end) and returns the
// single freshest row per entity key. This is the read side of materialization.
func PullLatest(ctx context.Context, store Store, view models.FeatureView, joinKeys []string, start, end time.Time) ([]models.FeatureRow, error) {
	rawRows, err := store.Pull(ctx, view.BatchSource, pullFields(view, joinKeys), start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to pull from source %q: %w", view.BatchSource.Name, err)
	}

	latest := make(map[string]models.FeatureRow)
	var order []string
	for _, raw := range rawRows {
		row, err := rowToFeatureRow(view, joinKeys, raw)
		if err != nil {
			return nil, err
		}

		hash := row.EntityKey.Hash()
		existing, found := latest[hash]
		if !found {
			order = append(order, hash)
			latest[hash] = row
			continue
		}

		if newerThan(row, existing) {
			latest[hash] = row
		}
	}

	out := make([]models.FeatureRow, 0, len(latest))
	for _, hash := range order {
		out = append(out, latest[hash])
	}

	return out, nil
}
