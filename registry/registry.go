package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banquet-labs/banquet/lib/config"
	"github.com/banquet-labs/banquet/lib/jsonutil"
	"github.com/banquet-labs/banquet/models"
)

// Registry is the catalog of a project's feature definitions. Reads go through
// a cache refreshed from the backing store once the configured TTL has lapsed;
// a TTL of zero caches forever. Writes are staged in memory until Commit.
type Registry struct {
	project  string
	store    Store
	cacheTTL time.Duration

	mu       sync.RWMutex
	cached   *State
	cachedAt time.Time
}

func New(ctx context.Context, project string, cfg config.Registry) (*Registry, error) {
	store, err := LoadStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &Registry{
		project:  project,
		store:    store,
		cacheTTL: time.Duration(cfg.CacheTTLSeconds) * time.Second,
	}, nil
}

// NewWithStore is used by tests and embedded callers that already hold a store.
func NewWithStore(project string, store Store, cacheTTL time.Duration) *Registry {
	return &Registry{project: project, store: store, cacheTTL: cacheTTL}
}

func (r *Registry) Project() string {
	return r.project
}

func (r *Registry) load(ctx context.Context) (*State, error) {
	data, err := r.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return &State{Project: r.project}, nil
		}

		return nil, err
	}

	var state State
	if err := jsonutil.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode registry state: %w", err)
	}

	if state.Project != r.project {
		return nil, fmt.Errorf("registry holds project %q, expected %q", state.Project, r.project)
	}

	return &state, nil
}

// Refresh drops the cache and reloads state from the backing store.
func (r *Registry) Refresh(ctx context.Context) error {
	state, err := r.load(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached = state
	r.cachedAt = time.Now()
	return nil
}

func (r *Registry) state(ctx context.Context) (*State, error) {
	r.mu.RLock()
	cached := r.cached
	expired := r.cacheTTL > 0 && time.Since(r.cachedAt) > r.cacheTTL
	r.mu.RUnlock()

	if cached != nil && !expired {
		return cached, nil
	}

	if err := r.Refresh(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cached, nil
}

// Commit persists the staged state, stamping a new version.
func (r *Registry) Commit(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached == nil {
		return nil
	}

	r.cached.VersionID = uuid.NewString()
	r.cached.LastUpdated = time.Now().UTC()

	data, err := jsonutil.Marshal(r.cached)
	if err != nil {
		return fmt.Errorf("failed to encode registry state: %w", err)
	}

	return r.store.Save(ctx, data)
}

// Teardown deletes the persisted registry and clears the cache.
func (r *Registry) Teardown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached = nil
	return r.store.Teardown(ctx)
}

func applyObject[T any](r *Registry, ctx context.Context, items func(*State) *[]T, name func(T) string, item T, commit bool) error {
	state, err := r.state(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	slice := items(state)
	*slice = upsert(*slice, name, item)
	r.mu.Unlock()

	if commit {
		return r.Commit(ctx)
	}

	return nil
}

func getObject[T any](r *Registry, ctx context.Context, items func(*State) *[]T, name func(T) string, kind, target string) (T, error) {
	var zero T
	state, err := r.state(ctx)
	if err != nil {
		return zero, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	item, found := find(*items(state), name, target)
	if !found {
		return zero, NotFoundError{Kind: kind, Name: target, Project: r.project}
	}

	return item, nil
}

func listObjects[T any](r *Registry, ctx context.Context, items func(*State) *[]T) ([]T, error) {
	state, err := r.state(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	slice := *items(state)
	out := make([]T, len(slice))
	copy(out, slice)
	return out, nil
}

func deleteObject[T any](r *Registry, ctx context.Context, items func(*State) *[]T, name func(T) string, kind, target string, commit bool) error {
	state, err := r.state(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	slice := items(state)
	updated, found := remove(*slice, name, target)
	if found {
		*slice = updated
	}
	r.mu.Unlock()

	if !found {
		return NotFoundError{Kind: kind, Name: target, Project: r.project}
	}

	if commit {
		return r.Commit(ctx)
	}

	return nil
}

func entities(s *State) *[]models.Entity                   { return &s.Entities }
func dataSources(s *State) *[]models.DataSource            { return &s.DataSources }
func featureViews(s *State) *[]models.FeatureView          { return &s.FeatureViews }
func odfvs(s *State) *[]models.OnDemandFeatureView         { return &s.OnDemandFeatureViews }
func featureServices(s *State) *[]models.FeatureService    { return &s.FeatureServices }
func savedDatasets(s *State) *[]models.SavedDataset        { return &s.SavedDatasets }

func (r *Registry) ApplyEntity(ctx context.Context, entity models.Entity, commit bool) error {
	return applyObject(r, ctx, entities, entityName, entity, commit)
}

func (r *Registry) GetEntity(ctx context.Context, name string) (models.Entity, error) {
	return getObject(r, ctx, entities, entityName, KindEntity, name)
}

func (r *Registry) ListEntities(ctx context.Context) ([]models.Entity, error) {
	return listObjects(r, ctx, entities)
}

func (r *Registry) DeleteEntity(ctx context.Context, name string, commit bool) error {
	return deleteObject(r, ctx, entities, entityName, KindEntity, name, commit)
}

func (r *Registry) ApplyDataSource(ctx context.Context, source models.DataSource, commit bool) error {
	return applyObject(r, ctx, dataSources, dataSourceName, source, commit)
}

func (r *Registry) GetDataSource(ctx context.Context, name string) (models.DataSource, error) {
	return getObject(r, ctx, dataSources, dataSourceName, KindDataSource, name)
}

func (r *Registry) ListDataSources(ctx context.Context) ([]models.DataSource, error) {
	return listObjects(r, ctx, dataSources)
}

func (r *Registry) DeleteDataSource(ctx context.Context, name string, commit bool) error {
	return deleteObject(r, ctx, dataSources, dataSourceName, KindDataSource, name, commit)
}

func (r *Registry) ApplyFeatureView(ctx context.Context, view models.FeatureView, commit bool) error {
	return applyObject(r, ctx, featureViews, featureViewName, view, commit)
}

func (r *Registry) GetFeatureView(ctx context.Context, name string) (models.FeatureView, error) {
	return getObject(r, ctx, featureViews, featureViewName, KindFeatureView, name)
}

func (r *Registry) ListFeatureViews(ctx context.Context) ([]models.FeatureView, error) {
	return listObjects(r, ctx, featureViews)
}

func (r *Registry) DeleteFeatureView(ctx context.Context, name string, commit bool) error {
	return deleteObject(r, ctx, featureViews, featureViewName, KindFeatureView, name, commit)
}

func (r *Registry) ApplyOnDemandFeatureView(ctx context.Context, view models.OnDemandFeatureView, commit bool) error {
	return applyObject(r, ctx, odfvs, odfvName, view, commit)
}

func (r *Registry) GetOnDemandFeatureView(ctx context.Context, name string) (models.OnDemandFeatureView, error) {
	return getObject(r, ctx, odfvs, odfvName, KindOnDemandFeatureView, name)
}

func (r *Registry) ListOnDemandFeatureViews(ctx context.Context) ([]models.OnDemandFeatureView, error) {
	return listObjects(r, ctx, odfvs)
}

func (r *Registry) DeleteOnDemandFeatureView(ctx context.Context, name string, commit bool) error {
	return deleteObject(r, ctx, odfvs, odfvName, KindOnDemandFeatureView, name, commit)
}

func (r *Registry) ApplyFeatureService(ctx context.Context, service models.FeatureService, commit bool) error {
	return applyObject(r, ctx, featureServices, featureServiceName, service, commit)
}

func (r *Registry) GetFeatureService(ctx context.Context, name string) (models.FeatureService, error) {
	return getObject(r, ctx, featureServices, featureServiceName, KindFeatureService, name)
}

func (r *Registry) ListFeatureServices(ctx context.Context) ([]models.FeatureService, error) {
	return listObjects(r, ctx, featureServices)
}

func (r *Registry) DeleteFeatureService(ctx context.Context, name string, commit bool) error {
	return deleteObject(r, ctx, featureServices, featureServiceName, KindFeatureService, name, commit)
}

func (r *Registry) ApplySavedDataset(ctx context.Context, dataset models.SavedDataset, commit bool) error {
	return applyObject(r, ctx, savedDatasets, savedDatasetName, dataset, commit)
}

func (r *Registry) GetSavedDataset(ctx context.Context, name string) (models.SavedDataset, error) {
	return getObject(r, ctx, savedDatasets, savedDatasetName, KindSavedDataset, name)
}

func (r *Registry) ListSavedDatasets(ctx context.Context) ([]models.SavedDataset, error) {
	return listObjects(r, ctx, savedDatasets)
}

func (r *Registry) DeleteSavedDataset(ctx context.Context, name string, commit bool) error {
	return deleteObject(r, ctx, savedDatasets, savedDatasetName, KindSavedDataset, name, commit)
}

// ApplyMaterialization records that [start, end) has been written to the online
// store for the named feature view and commits immediately.
func (r *Registry) ApplyMaterialization(ctx context.Context, viewName string, interval models.TimeRange) error {
	state, err := r.state(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	var found bool
	for idx, view := range state.FeatureViews {
		if view.Name == viewName {
			state.FeatureViews[idx].MaterializedRanges = append(view.MaterializedRanges, interval)
			found = true
			break
		}
	}
	r.mu.Unlock()

	if !found {
		return NotFoundError{Kind: KindFeatureView, Name: viewName, Project: r.project}
	}

	return r.Commit(ctx)
}
