package featurestore

import (
	"context"
	"fmt"
	"time"

	"github.com/banquet-labs/banquet/models"
	"github.com/banquet-labs/banquet/registry"
)

type FeatureStatus string

const (
	StatusPresent  FeatureStatus = "PRESENT"
	StatusNotFound FeatureStatus = "NOT_FOUND"
)

// OnlineFeaturesRequest asks for feature values for a batch of entities.
// Exactly one of Features (view:feature references) or FeatureService must be
// set. Entities maps join keys (or entity names) to one value per output row;
// RequestData feeds on demand transforms the same way.
type OnlineFeaturesRequest struct {
	Features         []string
	FeatureService   string
	Entities         map[string][]any
	RequestData      map[string][]any
	FullFeatureNames bool
}

// FeatureVector is the column of values for one feature across all rows.
type FeatureVector struct {
	Values          []any
	Statuses        []FeatureStatus
	EventTimestamps []time.Time
}

type OnlineResponse struct {
	FeatureNames []string
	Results      []FeatureVector
}

// viewRequest is one regular feature view resolved from the request.
type viewRequest struct {
	view       models.FeatureView
	features   []string
	joinKeyMap map[string]string
	outputName string
}

type odfvRequest struct {
	view     models.OnDemandFeatureView
	features []string
}

// resolveFeatures expands the request into per-view feature lists, looking up
// each reference in the registry.
func (f *FeatureStore) resolveFeatures(ctx context.Context, req OnlineFeaturesRequest) ([]viewRequest, []odfvRequest, error) {
	if (len(req.Features) == 0) == (req.FeatureService == "") {
		return nil, nil, fmt.Errorf("exactly one of features or a feature service must be requested")
	}

	var projections []models.FeatureViewProjection
	if req.FeatureService != "" {
		service, err := f.registry.GetFeatureService(ctx, req.FeatureService)
		if err != nil {
			return nil, nil, err
		}

		projections = service.Projections
	} else {
		grouped := make(map[string][]string)
		var order []string
		for _, raw := range req.Features {
			ref, err := models.ParseFeatureRef(raw)
			if err != nil {
				return nil, nil, err
			}

			if _, found := grouped[ref.ViewName]; !found {
				order = append(order, ref.ViewName)
			}

			grouped[ref.ViewName] = append(grouped[ref.ViewName], ref.FeatureName)
		}

		for _, viewName := range order {
			projections = append(projections, models.FeatureViewProjection{Name: viewName, Features: grouped[viewName]})
		}
	}

	var viewRequests []viewRequest
	var odfvRequests []odfvRequest
	var refs []models.FeatureRef
	for _, projection := range projections {
		view, err := f.registry.GetFeatureView(ctx, projection.Name)
		if err == nil {
			features := projection.Features
			if len(features) == 0 {
				features = view.FeatureNames()
			}

			for _, featureName := range features {
				if _, found := view.Feature(featureName); !found {
					return nil, nil, fmt.Errorf("feature view %q has no feature %q", view.Name, featureName)
				}

				refs = append(refs, models.FeatureRef{ViewName: projection.NameToUse(), FeatureName: featureName})
			}

			viewRequests = append(viewRequests, viewRequest{
				view:       view,
				features:   features,
				joinKeyMap: projection.JoinKeyMap,
				outputName: projection.NameToUse(),
			})
			continue
		}

		if !registry.IsNotFound(err) {
			return nil, nil, err
		}

		odfv, odfvErr := f.registry.GetOnDemandFeatureView(ctx, projection.Name)
		if odfvErr != nil {
			return nil, nil, fmt.Errorf("%q is neither a feature view nor an on demand feature view", projection.Name)
		}

		features := projection.Features
		if len(features) == 0 {
			features = odfv.FeatureNames()
		}

		for _, featureName := range features {
			if _, found := odfv.Feature(featureName); !found {
				return nil, nil, fmt.Errorf("on demand feature view %q has no feature %q", odfv.Name, featureName)
			}

			refs = append(refs, models.FeatureRef{ViewName: odfv.Name, FeatureName: featureName})
		}

		odfvRequests = append(odfvRequests, odfvRequest{view: odfv, features: features})
	}

	if err := models.ValidateFeatureRefs(refs, req.FullFeatureNames); err != nil {
		return nil, nil, err
	}

	return viewRequests, odfvRequests, nil
}

// entityKeysForRequest builds one entity key per row for the given view,
// resolving each join key against the request's entity columns. A column may be
// keyed by join key or by entity name; projections remap via joinKeyMap.
func (f *FeatureStore) entityKeysForRequest(ctx context.Context, request viewRequest, entities map[string][]any, numRows int) ([]models.EntityKey, error) {
	joinKeys, err := f.provider.JoinKeysForView(ctx, request.view)
	if err != nil {
		return nil, err
	}

	if len(joinKeys) == 0 {
		keys := make([]models.EntityKey, numRows)
		for idx := range keys {
			keys[idx] = models.NewEntityKey(map[string]any{models.DummyEntityKey: models.DummyEntityVal})
		}

		return keys, nil
	}

	columns := make(map[string][]any, len(joinKeys))
	for _, joinKey := range joinKeys {
		requestColumn := joinKey
		for column, mapped := range request.joinKeyMap {
			if mapped == joinKey {
				requestColumn = column
				break
			}
		}

		values, found := entities[requestColumn]
		if !found {
			// Fall back to the entity's name for callers keying by entity
			// rather than join key.
			for _, entityName := range request.view.Entities {
				entity, entityErr := f.registry.GetEntity(ctx, entityName)
				if entityErr == nil && entity.JoinKey == joinKey {
					values, found = entities[entity.Name]
					break
				}
			}
		}

		if !found {
			return nil, fmt.Errorf("request is missing entity values for join key %q", requestColumn)
		}

		if len(values) != numRows {
			return nil, fmt.Errorf("entity %q has %d values, expected %d", requestColumn, len(values), numRows)
		}

		columns[joinKey] = values
	}

	keys := make([]models.EntityKey, numRows)
	for idx := range keys {
		keyValues := make(map[string]any, len(joinKeys))
		for _, joinKey := range joinKeys {
			keyValues[joinKey] = columns[joinKey][idx]
		}

		keys[idx] = models.NewEntityKey(keyValues)
	}

	return keys, nil
}

func requestNumRows(req OnlineFeaturesRequest) (int, error) {
	numRows := -1
	check := func(column string, values []any) error {
		if numRows == -1 {
			numRows = len(values)
		} else if len(values) != numRows {
			return fmt.Errorf("column %q has %d values, expected %d", column, len(values), numRows)
		}

		return nil
	}

	for column, values := range req.Entities {
		if err := check(column, values); err != nil {
			return 0, err
		}
	}
	for column, values := range req.RequestData {
		if err := check(column, values); err != nil {
			return 0, err
		}
	}

	if numRows <= 0 {
		return 0, fmt.Errorf("request has no entity rows")
	}

	return numRows, nil
}

// GetOnlineFeatures serves the latest feature values for a batch of entities,
// running any requested on demand transforms over the fetched values and the
// request data.
func (f *FeatureStore) GetOnlineFeatures(ctx context.Context, req OnlineFeaturesRequest) (*OnlineResponse, error) {
	startedAt := time.Now()
	defer func() {
		f.metrics.Timing("get_online_features.duration", time.Since(startedAt), nil)
	}()

	viewRequests, odfvRequests, err := f.resolveFeatures(ctx, req)
	if err != nil {
		return nil, err
	}

	numRows, err := requestNumRows(req)
	if err != nil {
		return nil, err
	}

	response := &OnlineResponse{}

	// rowInputs accumulates bare-named feature values per row for on demand
	// transforms.
	rowInputs := make([]map[string]any, numRows)
	for idx := range rowInputs {
		rowInputs[idx] = make(map[string]any)
	}

	appendView := func(request viewRequest, emit bool) error {
		keys, err := f.entityKeysForRequest(ctx, request, req.Entities, numRows)
		if err != nil {
			return err
		}

		rows, err := f.provider.OnlineRead(ctx, request.view, keys)
		if err != nil {
			return err
		}

		for _, featureName := range request.features {
			vector := FeatureVector{
				Values:          make([]any, numRows),
				Statuses:        make([]FeatureStatus, numRows),
				EventTimestamps: make([]time.Time, numRows),
			}

			for idx, row := range rows {
				if row == nil {
					vector.Statuses[idx] = StatusNotFound
					continue
				}

				value, found := row.Values[featureName]
				if !found || value == nil {
					vector.Statuses[idx] = StatusNotFound
					continue
				}

				vector.Values[idx] = value
				vector.Statuses[idx] = StatusPresent
				vector.EventTimestamps[idx] = row.EventTimestamp
				rowInputs[idx][featureName] = value
			}

			if emit {
				name := featureName
				if req.FullFeatureNames {
					name = models.FeatureRef{ViewName: request.outputName, FeatureName: featureName}.FullName()
				}

				response.FeatureNames = append(response.FeatureNames, name)
				response.Results = append(response.Results, vector)
			}
		}

		return nil
	}

	for _, request := range viewRequests {
		if err = appendView(request, true); err != nil {
			return nil, err
		}
	}

	// Fetch on demand source views that were not requested directly; their
	// values feed the transforms but are dropped from the response.
	requested := make(map[string]bool, len(viewRequests))
	for _, request := range viewRequests {
		requested[request.view.Name] = true
	}

	for _, odfv := range odfvRequests {
		for _, source := range odfv.view.Sources {
			if requested[source.Name] {
				continue
			}

			view, err := f.registry.GetFeatureView(ctx, source.Name)
			if err != nil {
				return nil, err
			}

			features := source.Features
			if len(features) == 0 {
				features = view.FeatureNames()
			}

			requested[source.Name] = true
			if err = appendView(viewRequest{view: view, features: features, joinKeyMap: source.JoinKeyMap}, false); err != nil {
				return nil, err
			}
		}
	}

	for _, odfv := range odfvRequests {
		if err = f.appendOnDemand(odfv, req, rowInputs, numRows, response); err != nil {
			return nil, err
		}
	}

	return response, nil
}

func (f *FeatureStore) appendOnDemand(request odfvRequest, req OnlineFeaturesRequest, rowInputs []map[string]any, numRows int, response *OnlineResponse) error {
	transform, err := lookupTransform(request.view.TransformName)
	if err != nil {
		return fmt.Errorf("on demand feature view %q: %w", request.view.Name, err)
	}

	for _, field := range request.view.RequestFields() {
		if _, found := req.RequestData[field]; !found {
			return fmt.Errorf("on demand feature view %q requires request data %q", request.view.Name, field)
		}
	}

	evaluatedAt := time.Now()
	outputs := make([]map[string]any, numRows)
	for idx := 0; idx < numRows; idx++ {
		inputs := make(map[string]any, len(rowInputs[idx])+len(req.RequestData))
		for name, value := range rowInputs[idx] {
			inputs[name] = value
		}
		for field, values := range req.RequestData {
			inputs[field] = values[idx]
		}

		if outputs[idx], err = transform(inputs); err != nil {
			return fmt.Errorf("transform %q failed: %w", request.view.TransformName, err)
		}
	}

	for _, featureName := range request.features {
		vector := FeatureVector{
			Values:          make([]any, numRows),
			Statuses:        make([]FeatureStatus, numRows),
			EventTimestamps: make([]time.Time, numRows),
		}

		for idx := range outputs {
			value, found := outputs[idx][featureName]
			if !found || value == nil {
				vector.Statuses[idx] = StatusNotFound
				continue
			}

			vector.Values[idx] = value
			vector.Statuses[idx] = StatusPresent
			vector.EventTimestamps[idx] = evaluatedAt
		}

		name := featureName
		if req.FullFeatureNames {
			name = models.FeatureRef{ViewName: request.view.Name, FeatureName: featureName}.FullName()
		}

		response.FeatureNames = append(response.FeatureNames, name)
		response.Results = append(response.Results, vector)
	}

	return nil
}
