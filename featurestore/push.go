package featurestore

import (
	"context"
	"fmt"
	"time"

	"github.com/banquet-labs/banquet/lib/typing"
	"github.com/banquet-labs/banquet/models"
	"github.com/banquet-labs/banquet/stores/offline"
)

// PushMode selects which stores a push lands in.
type PushMode string

const (
	PushModeOnline           PushMode = "online"
	PushModeOffline          PushMode = "offline"
	PushModeOnlineAndOffline PushMode = "online_and_offline"
)

func (p PushMode) Valid() bool {
	switch p {
	case PushModeOnline, PushModeOffline, PushModeOnlineAndOffline:
		return true
	default:
		return false
	}
}

func (p PushMode) online() bool {
	return p == PushModeOnline || p == PushModeOnlineAndOffline
}

func (p PushMode) offline() bool {
	return p == PushModeOffline || p == PushModeOnlineAndOffline
}

// timestampFieldFor picks the event timestamp column for incoming rows.
func timestampFieldFor(source models.DataSource) string {
	if source.TimestampField != "" {
		return source.TimestampField
	}

	return offline.EntityTimestampField
}

// convertRows turns raw pushed rows into typed feature rows for the view.
func (f *FeatureStore) convertRows(ctx context.Context, view models.FeatureView, source models.DataSource, rows []map[string]any) ([]models.FeatureRow, error) {
	joinKeys, err := f.provider.JoinKeysForView(ctx, view)
	if err != nil {
		return nil, err
	}

	tsField := timestampFieldFor(source)
	out := make([]models.FeatureRow, 0, len(rows))
	for _, raw := range rows {
		keyValues := make(map[string]any, len(joinKeys))
		for _, joinKey := range joinKeys {
			value, found := raw[source.ColumnForField(joinKey)]
			if !found {
				return nil, fmt.Errorf("row is missing join key %q", joinKey)
			}

			keyValues[joinKey] = value
		}
		if len(keyValues) == 0 {
			keyValues[models.DummyEntityKey] = models.DummyEntityVal
		}

		values := make(map[string]any, len(view.Features))
		for _, feature := range view.Features {
			rawValue, found := raw[source.ColumnForField(feature.Name)]
			if !found || rawValue == nil {
				continue
			}

			value, err := typing.CastValue(rawValue, feature.ValueType)
			if err != nil {
				return nil, fmt.Errorf("failed to cast feature %q: %w", feature.Name, err)
			}

			values[feature.Name] = value
		}

		row := models.FeatureRow{
			EntityKey:      models.NewEntityKey(keyValues),
			Values:         values,
			EventTimestamp: time.Now().UTC(),
		}

		if rawTS, found := raw[tsField]; found && rawTS != nil {
			if row.EventTimestamp, err = typing.ParseTimestamp(rawTS); err != nil {
				return nil, fmt.Errorf("failed to parse %q: %w", tsField, err)
			}
		}

		out = append(out, row)
	}

	return out, nil
}

// streamViewsForSource finds the feature views fed by the named push or stream source.
func (f *FeatureStore) streamViewsForSource(ctx context.Context, sourceName string) ([]models.FeatureView, error) {
	views, err := f.registry.ListFeatureViews(ctx)
	if err != nil {
		return nil, err
	}

	var matched []models.FeatureView
	for _, view := range views {
		if view.IsStream() && view.StreamSource.Name == sourceName {
			matched = append(matched, view)
		}
	}

	if len(matched) == 0 {
		return nil, fmt.Errorf("no feature view ingests from source %q", sourceName)
	}

	return matched, nil
}

// Push fans pushed rows out to every feature view fed by the named source,
// writing to the online store, the batch source, or both depending on mode.
func (f *FeatureStore) Push(ctx context.Context, sourceName string, rows []map[string]any, mode PushMode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid push mode: %q", mode)
	}

	views, err := f.streamViewsForSource(ctx, sourceName)
	if err != nil {
		return err
	}

	for _, view := range views {
		if mode.online() {
			featureRows, err := f.convertRows(ctx, view, *view.StreamSource, rows)
			if err != nil {
				return fmt.Errorf("failed to convert rows for view %q: %w", view.Name, err)
			}

			if _, err = f.provider.IngestRows(ctx, view, featureRows); err != nil {
				return err
			}
		}

		if mode.offline() {
			if err := f.writeRowsToBatchSource(ctx, view, rows); err != nil {
				return err
			}
		}
	}

	return nil
}

// WriteToOnlineStore writes rows for one feature view straight to the online
// store, bypassing materialization.
func (f *FeatureStore) WriteToOnlineStore(ctx context.Context, viewName string, rows []map[string]any) error {
	view, err := f.registry.GetFeatureView(ctx, viewName)
	if err != nil {
		return err
	}

	source := view.BatchSource
	if view.StreamSource != nil {
		source = *view.StreamSource
	}

	featureRows, err := f.convertRows(ctx, view, source, rows)
	if err != nil {
		return err
	}

	written, err := f.provider.IngestRows(ctx, view, featureRows)
	if err != nil {
		return err
	}

	if written < len(featureRows) {
		// The online store silently drops rows older than what it holds.
		f.metrics.Count("write_online.skipped", int64(len(featureRows)-written), map[string]string{"view": viewName})
	}

	return nil
}

// WriteToOfflineStore appends rows to a feature view's batch source after
// checking they carry exactly the source's columns.
func (f *FeatureStore) WriteToOfflineStore(ctx context.Context, viewName string, rows []map[string]any) error {
	view, err := f.registry.GetFeatureView(ctx, viewName)
	if err != nil {
		return err
	}

	return f.writeRowsToBatchSource(ctx, view, rows)
}

// expectedColumns is the batch source schema for a view: join keys, features
// and timestamp columns, in source column names.
func (f *FeatureStore) expectedColumns(ctx context.Context, view models.FeatureView) ([]string, error) {
	joinKeys, err := f.provider.JoinKeysForView(ctx, view)
	if err != nil {
		return nil, err
	}

	source := view.BatchSource
	columns := make([]string, 0, len(joinKeys)+len(view.Features)+2)
	for _, joinKey := range joinKeys {
		columns = append(columns, source.ColumnForField(joinKey))
	}
	for _, feature := range view.Features {
		columns = append(columns, source.ColumnForField(feature.Name))
	}

	columns = append(columns, source.TimestampField)
	if source.CreatedTimestampColumn != "" {
		columns = append(columns, source.CreatedTimestampColumn)
	}

	return columns, nil
}

func (f *FeatureStore) writeRowsToBatchSource(ctx context.Context, view models.FeatureView, rows []map[string]any) error {
	columns, err := f.expectedColumns(ctx, view)
	if err != nil {
		return err
	}

	expected := make(map[string]bool, len(columns))
	for _, column := range columns {
		expected[column] = true
	}

	for _, row := range rows {
		for column := range row {
			if !expected[column] {
				return fmt.Errorf("row has column %q which is not part of view %q's batch source schema", column, view.Name)
			}
		}
	}

	if err = f.provider.OfflineStore().WriteBatch(ctx, view.BatchSource, columns, rows); err != nil {
		return fmt.Errorf("failed to write to batch source of view %q: %w", view.Name, err)
	}

	return nil
}
