package featurestore

import (
	"context"
	"fmt"
	"time"

	"github.com/banquet-labs/banquet/models"
	"github.com/banquet-labs/banquet/stores/offline"
)

// HistoricalFeaturesRequest asks for point-in-time correct feature values for
// a set of entity rows, each carrying its join key values, an event_timestamp
// column, and any request data needed by on demand transforms.
type HistoricalFeaturesRequest struct {
	EntityRows       []map[string]any
	Features         []string
	FeatureService   string
	FullFeatureNames bool
}

// GetHistoricalFeatures joins the requested features onto the entity rows as
// of each row's event timestamp, bounded by each view's TTL. The result feeds
// model training; nothing is read from or written to the online store.
func (f *FeatureStore) GetHistoricalFeatures(ctx context.Context, req HistoricalFeaturesRequest) (*offline.RetrievalJob, error) {
	startedAt := time.Now()
	defer func() {
		f.metrics.Timing("get_historical_features.duration", time.Since(startedAt), nil)
	}()

	viewRequests, odfvRequests, err := f.resolveFeatures(ctx, OnlineFeaturesRequest{
		Features:         req.Features,
		FeatureService:   req.FeatureService,
		FullFeatureNames: req.FullFeatureNames,
	})
	if err != nil {
		return nil, err
	}

	joins := make([]offline.ViewJoin, 0, len(viewRequests))
	for _, request := range viewRequests {
		joinKeys, err := f.provider.JoinKeysForView(ctx, request.view)
		if err != nil {
			return nil, err
		}

		var prefix string
		if req.FullFeatureNames {
			prefix = request.outputName + "__"
		}

		joins = append(joins, offline.ViewJoin{
			View:         request.view,
			JoinKeys:     joinKeys,
			JoinKeyMap:   request.joinKeyMap,
			Features:     request.features,
			OutputPrefix: prefix,
		})
	}

	job, err := offline.GetHistoricalFeatures(ctx, f.provider.OfflineStore(), req.EntityRows, joins)
	if err != nil {
		return nil, err
	}

	for _, odfv := range odfvRequests {
		if err = applyOnDemandToJob(odfv, req.FullFeatureNames, job); err != nil {
			return nil, err
		}
	}

	return job, nil
}

// applyOnDemandToJob runs an on demand transform over every joined row, using
// the row's columns (joined features and request data alike) as inputs.
func applyOnDemandToJob(request odfvRequest, fullFeatureNames bool, job *offline.RetrievalJob) error {
	transform, err := lookupTransform(request.view.TransformName)
	if err != nil {
		return fmt.Errorf("on demand feature view %q: %w", request.view.Name, err)
	}

	for _, field := range request.view.RequestFields() {
		for _, row := range job.Rows() {
			if _, found := row[field]; !found {
				return fmt.Errorf("on demand feature view %q requires request data %q in every entity row", request.view.Name, field)
			}
		}
	}

	columns := make([]string, 0, len(request.features))
	for _, featureName := range request.features {
		column := featureName
		if fullFeatureNames {
			column = models.FeatureRef{ViewName: request.view.Name, FeatureName: featureName}.FullName()
		}

		columns = append(columns, column)
	}

	for _, row := range job.Rows() {
		outputs, err := transform(row)
		if err != nil {
			return fmt.Errorf("transform %q failed: %w", request.view.TransformName, err)
		}

		for idx, featureName := range request.features {
			row[columns[idx]] = outputs[featureName]
		}
	}

	job.FeatureColumns = append(job.FeatureColumns, columns...)
	return nil
}

// SaveDatasetArgs names and places a retrieval result for later reuse.
type SaveDatasetArgs struct {
	Name             string
	Job              *offline.RetrievalJob
	Storage          models.DataSource
	JoinKeys         []string
	FeatureService   string
	FullFeatureNames bool
	Tags             map[string]string
}

// SaveDataset persists a retrieval job's rows to the given storage source and
// registers the dataset.
func (f *FeatureStore) SaveDataset(ctx context.Context, args SaveDatasetArgs) (models.SavedDataset, error) {
	if args.Name == "" {
		return models.SavedDataset{}, fmt.Errorf("saved dataset name is empty")
	}
	if args.Job == nil {
		return models.SavedDataset{}, fmt.Errorf("saved dataset job is nil")
	}

	fields := make([]string, 0, len(args.JoinKeys)+1+len(args.Job.FeatureColumns))
	fields = append(fields, args.JoinKeys...)
	fields = append(fields, offline.EntityTimestampField)
	fields = append(fields, args.Job.FeatureColumns...)

	if err := f.provider.OfflineStore().WriteBatch(ctx, args.Storage, fields, args.Job.Rows()); err != nil {
		return models.SavedDataset{}, fmt.Errorf("failed to persist saved dataset %q: %w", args.Name, err)
	}

	dataset := models.SavedDataset{
		Name:              args.Name,
		Features:          args.Job.FeatureColumns,
		JoinKeys:          args.JoinKeys,
		FullFeatureNames:  args.FullFeatureNames,
		Storage:           args.Storage,
		Tags:              args.Tags,
		FeatureService:    args.FeatureService,
		MinEventTimestamp: args.Job.MinEventTimestamp,
		MaxEventTimestamp: args.Job.MaxEventTimestamp,
		CreatedAt:         time.Now().UTC(),
	}

	if err := f.registry.ApplySavedDataset(ctx, dataset, true); err != nil {
		return models.SavedDataset{}, err
	}

	return dataset, nil
}
