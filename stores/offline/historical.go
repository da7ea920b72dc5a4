package offline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/banquet-labs/banquet/lib/typing"
	"github.com/banquet-labs/banquet/models"
)

// EntityTimestampField is the column in the caller's entity rows that anchors
// the point-in-time join.
const EntityTimestampField = "event_timestamp"

// ViewJoin describes how one feature view joins against the entity rows.
type ViewJoin struct {
	View models.FeatureView
	// JoinKeys are the view's entity join keys, in source order.
	JoinKeys []string
	// JoinKeyMap renames entity-row columns to the view's join keys
	// (entity row column -> join key), used by feature service projections.
	JoinKeyMap map[string]string
	// Features is the subset of the view's features requested.
	Features []string
	// OutputPrefix is prepended to output column names when full feature
	// names are requested, e.g. "driver_hourly_stats__".
	OutputPrefix string
}

// RetrievalJob holds the result of a historical retrieval. Rows carry the
// original entity columns plus one column per requested feature.
type RetrievalJob struct {
	FeatureColumns []string
	rows           []map[string]any

	MinEventTimestamp time.Time
	MaxEventTimestamp time.Time
}

func (r *RetrievalJob) Rows() []map[string]any {
	return r.rows
}

// entityKeyForRow builds the view's entity key from one entity row, honoring
// the projection's join key remapping.
func entityKeyForRow(join ViewJoin, entityRow map[string]any) (models.EntityKey, error) {
	if len(join.JoinKeys) == 0 {
		return models.NewEntityKey(map[string]any{models.DummyEntityKey: models.DummyEntityVal}), nil
	}

	values := make(map[string]any, len(join.JoinKeys))
	for _, joinKey := range join.JoinKeys {
		rowColumn := joinKey
		for column, mapped := range join.JoinKeyMap {
			if mapped == joinKey {
				rowColumn = column
				break
			}
		}

		value, found := entityRow[rowColumn]
		if !found {
			return models.EntityKey{}, fmt.Errorf("entity row is missing join key %q", rowColumn)
		}

		values[joinKey] = value
	}

	return models.NewEntityKey(values), nil
}

// GetHistoricalFeatures performs a point-in-time join of the requested views
// onto the entity rows: for each entity row, each feature column takes the
// freshest source value at or before the row's event timestamp, looking back
// at most the view's TTL.
func GetHistoricalFeatures(ctx context.Context, store Store, entityRows []map[string]any, joins []ViewJoin) (*RetrievalJob, error) {
	if len(entityRows) == 0 {
		return &RetrievalJob{}, nil
	}

	timestamps := make([]time.Time, len(entityRows))
	minTS, maxTS := time.Time{}, time.Time{}
	for idx, entityRow := range entityRows {
		raw, found := entityRow[EntityTimestampField]
		if !found {
			return nil, fmt.Errorf("entity row is missing the %q column", EntityTimestampField)
		}

		ts, err := typing.ParseTimestamp(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %q: %w", EntityTimestampField, err)
		}

		timestamps[idx] = ts
		if minTS.IsZero() || ts.Before(minTS) {
			minTS = ts
		}
		if ts.After(maxTS) {
			maxTS = ts
		}
	}

	job := &RetrievalJob{
		rows:              make([]map[string]any, len(entityRows)),
		MinEventTimestamp: minTS,
		MaxEventTimestamp: maxTS,
	}
	for idx, entityRow := range entityRows {
		row := make(map[string]any, len(entityRow))
		for column, value := range entityRow {
			row[column] = value
		}

		job.rows[idx] = row
	}

	for _, join := range joins {
		if err := joinView(ctx, store, job, join, timestamps); err != nil {
			return nil, err
		}
	}

	return job, nil
}

func joinView(ctx context.Context, store Store, job *RetrievalJob, join ViewJoin, timestamps []time.Time) error {
	minTS, maxTS := job.MinEventTimestamp, job.MaxEventTimestamp

	// Pull enough history to cover the TTL lookback of the earliest entity row.
	start := time.Time{}
	if join.View.TTL > 0 {
		start = minTS.Add(-join.View.TTL)
	}

	sourceRows, err := PullAll(ctx, store, join.View, join.JoinKeys, start, maxTS.Add(time.Nanosecond))
	if err != nil {
		return err
	}

	grouped := make(map[string][]models.FeatureRow)
	for _, sourceRow := range sourceRows {
		hash := sourceRow.EntityKey.Hash()
		grouped[hash] = append(grouped[hash], sourceRow)
	}
	for hash := range grouped {
		sort.Slice(grouped[hash], func(i, j int) bool {
			return newerThan(grouped[hash][j], grouped[hash][i])
		})
	}

	for _, featureName := range join.Features {
		job.FeatureColumns = append(job.FeatureColumns, join.OutputPrefix+featureName)
	}

	for idx, row := range job.rows {
		entityKey, err := entityKeyForRow(join, row)
		if err != nil {
			return err
		}

		match, found := matchAsOf(grouped[entityKey.Hash()], timestamps[idx], join.View.TTL)
		for _, featureName := range join.Features {
			column := join.OutputPrefix + featureName
			if found {
				row[column] = match.Values[featureName]
			} else {
				row[column] = nil
			}
		}
	}

	return nil
}

// matchAsOf returns the freshest row at or before asOf within the TTL lookback.
// Rows are expected oldest first.
func matchAsOf(rows []models.FeatureRow, asOf time.Time, ttl time.Duration) (models.FeatureRow, bool) {
	for idx := len(rows) - 1; idx >= 0; idx-- {
		row := rows[idx]
		if row.EventTimestamp.After(asOf) {
			continue
		}

		if ttl > 0 && asOf.Sub(row.EventTimestamp) > ttl {
			return models.FeatureRow{}, false
		}

		return row, true
	}

	return models.FeatureRow{}, false
}

// PullAll reads every row of the view's batch source over [start, end) as
// typed feature rows, without deduplication.
func PullAll(ctx context.Context, store Store, view models.FeatureView, joinKeys []string, start, end time.Time) ([]models.FeatureRow, error) {
	rawRows, err := store.Pull(ctx, view.BatchSource, pullFields(view, joinKeys), start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to pull from source %q: %w", view.BatchSource.Name, err)
	}

	rows := make([]models.FeatureRow, 0, len(rawRows))
	for _, raw := range rawRows {
		row, err := rowToFeatureRow(view, joinKeys, raw)
		if err != nil {
			return nil, err
		}

		rows = append(rows, row)
	}

	return rows, nil
}
