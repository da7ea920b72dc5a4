package registry

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/banquet-labs/banquet/lib/jsonutil"
	"github.com/banquet-labs/banquet/models"
)

type TransitionType string

const (
	TransitionCreate    TransitionType = "create"
	TransitionUpdate    TransitionType = "update"
	TransitionDelete    TransitionType = "delete"
	TransitionUnchanged TransitionType = "unchanged"
)

type ObjectDiff struct {
	Kind       string
	Name       string
	Transition TransitionType
}

type Diff struct {
	Objects []ObjectDiff
}

// Changed returns the subset of the diff that is not unchanged.
func (d Diff) Changed() []ObjectDiff {
	var changed []ObjectDiff
	for _, obj := range d.Objects {
		if obj.Transition != TransitionUnchanged {
			changed = append(changed, obj)
		}
	}

	return changed
}

func (d Diff) String() string {
	changed := d.Changed()
	if len(changed) == 0 {
		return "no changes"
	}

	var sb strings.Builder
	for _, obj := range changed {
		sb.WriteString(fmt.Sprintf("%s %s %q\n", obj.Transition, obj.Kind, obj.Name))
	}

	return strings.TrimSuffix(sb.String(), "\n")
}

// diffObjects compares the current and desired sets of one object kind by their
// serialized form. When partial is set, current objects absent from desired are
// left alone instead of being marked for deletion.
func diffObjects[T any](kind string, current, desired []T, name func(T) string, partial bool) ([]ObjectDiff, error) {
	currentByName := make(map[string][]byte)
	for _, item := range current {
		data, err := jsonutil.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s %q: %w", kind, name(item), err)
		}

		currentByName[name(item)] = data
	}

	var diffs []ObjectDiff
	seen := make(map[string]bool)
	for _, item := range desired {
		data, err := jsonutil.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s %q: %w", kind, name(item), err)
		}

		seen[name(item)] = true
		existing, found := currentByName[name(item)]
		switch {
		case !found:
			diffs = append(diffs, ObjectDiff{Kind: kind, Name: name(item), Transition: TransitionCreate})
		case !bytes.Equal(existing, data):
			diffs = append(diffs, ObjectDiff{Kind: kind, Name: name(item), Transition: TransitionUpdate})
		default:
			diffs = append(diffs, ObjectDiff{Kind: kind, Name: name(item), Transition: TransitionUnchanged})
		}
	}

	if !partial {
		for _, item := range current {
			if !seen[name(item)] {
				diffs = append(diffs, ObjectDiff{Kind: kind, Name: name(item), Transition: TransitionDelete})
			}
		}
	}

	return diffs, nil
}

func diffState(current *State, desired models.RepoContents, partial bool) (Diff, error) {
	var diff Diff
	entityDiffs, err := diffObjects(KindEntity, current.Entities, desired.Entities, entityName, partial)
	if err != nil {
		return Diff{}, err
	}

	sourceDiffs, err := diffObjects(KindDataSource, current.DataSources, desired.DataSources, dataSourceName, partial)
	if err != nil {
		return Diff{}, err
	}

	viewDiffs, err := diffObjects(KindFeatureView, stripMaterializedRanges(current.FeatureViews), desired.FeatureViews, featureViewName, partial)
	if err != nil {
		return Diff{}, err
	}

	odfvDiffs, err := diffObjects(KindOnDemandFeatureView, current.OnDemandFeatureViews, desired.OnDemandFeatureViews, odfvName, partial)
	if err != nil {
		return Diff{}, err
	}

	serviceDiffs, err := diffObjects(KindFeatureService, current.FeatureServices, desired.FeatureServices, featureServiceName, partial)
	if err != nil {
		return Diff{}, err
	}

	diff.Objects = append(diff.Objects, entityDiffs...)
	diff.Objects = append(diff.Objects, sourceDiffs...)
	diff.Objects = append(diff.Objects, viewDiffs...)
	diff.Objects = append(diff.Objects, odfvDiffs...)
	diff.Objects = append(diff.Objects, serviceDiffs...)
	return diff, nil
}

// stripMaterializedRanges drops materialization progress before comparing, so
// a view is not reported as updated just because it has been materialized.
func stripMaterializedRanges(views []models.FeatureView) []models.FeatureView {
	out := make([]models.FeatureView, len(views))
	for idx, view := range views {
		view.MaterializedRanges = nil
		out[idx] = view
	}

	return out
}

// Plan computes what Apply would change without mutating anything.
func (r *Registry) Plan(ctx context.Context, desired models.RepoContents, partial bool) (Diff, error) {
	if err := desired.Validate(); err != nil {
		return Diff{}, err
	}

	state, err := r.state(ctx)
	if err != nil {
		return Diff{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return diffState(state, desired, partial)
}

// Apply reconciles the registry with the desired repo contents and commits
// once. Materialization progress survives updates to an existing feature view.
func (r *Registry) Apply(ctx context.Context, desired models.RepoContents, partial bool) (Diff, error) {
	diff, err := r.Plan(ctx, desired, partial)
	if err != nil {
		return Diff{}, err
	}

	for _, obj := range diff.Objects {
		if obj.Transition == TransitionDelete {
			if err = r.deleteByKind(ctx, obj.Kind, obj.Name); err != nil {
				return Diff{}, err
			}
		}
	}

	for _, entity := range desired.Entities {
		if err = r.ApplyEntity(ctx, entity, false); err != nil {
			return Diff{}, err
		}
	}
	for _, source := range desired.DataSources {
		if err = r.ApplyDataSource(ctx, source, false); err != nil {
			return Diff{}, err
		}
	}
	for _, view := range desired.FeatureViews {
		if err = r.applyFeatureViewPreservingRanges(ctx, view); err != nil {
			return Diff{}, err
		}
	}
	for _, view := range desired.OnDemandFeatureViews {
		if err = r.ApplyOnDemandFeatureView(ctx, view, false); err != nil {
			return Diff{}, err
		}
	}
	for _, service := range desired.FeatureServices {
		if err = r.ApplyFeatureService(ctx, service, false); err != nil {
			return Diff{}, err
		}
	}

	if err = r.Commit(ctx); err != nil {
		return Diff{}, err
	}

	return diff, nil
}

func (r *Registry) applyFeatureViewPreservingRanges(ctx context.Context, view models.FeatureView) error {
	if existing, err := r.GetFeatureView(ctx, view.Name); err == nil {
		view.MaterializedRanges = existing.MaterializedRanges
	}

	return r.ApplyFeatureView(ctx, view, false)
}

func (r *Registry) deleteByKind(ctx context.Context, kind, name string) error {
	switch kind {
	case KindEntity:
		return r.DeleteEntity(ctx, name, false)
	case KindDataSource:
		return r.DeleteDataSource(ctx, name, false)
	case KindFeatureView:
		return r.DeleteFeatureView(ctx, name, false)
	case KindOnDemandFeatureView:
		return r.DeleteOnDemandFeatureView(ctx, name, false)
	case KindFeatureService:
		return r.DeleteFeatureService(ctx, name, false)
	case KindSavedDataset:
		return r.DeleteSavedDataset(ctx, name, false)
	default:
		return fmt.Errorf("unknown registry object kind %q", kind)
	}
}
