// Package featurestore is the entry point for defining, materializing and
// serving features. A FeatureStore ties together the registry, an online store
// and an offline store under one project.
package featurestore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/banquet-labs/banquet/lib/config"
	"github.com/banquet-labs/banquet/lib/telemetry/metrics"
	"github.com/banquet-labs/banquet/lib/telemetry/metrics/base"
	"github.com/banquet-labs/banquet/models"
	"github.com/banquet-labs/banquet/provider"
	"github.com/banquet-labs/banquet/registry"
	"github.com/banquet-labs/banquet/stores/offline"
	"github.com/banquet-labs/banquet/stores/online"
	"github.com/banquet-labs/banquet/stores/utils"
)

// incrementalFallbackLookback bounds the first incremental materialization of a
// view without a TTL.
const incrementalFallbackLookback = 365 * 24 * time.Hour

type FeatureStore struct {
	cfg      config.Config
	registry *registry.Registry
	provider *provider.Provider
	metrics  base.Client
}

func New(ctx context.Context, cfg config.Config) (*FeatureStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg, err := registry.New(ctx, cfg.Project, cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to load the registry: %w", err)
	}

	onlineStore, err := utils.LoadOnlineStore(ctx, cfg.Project, cfg.OnlineStore)
	if err != nil {
		return nil, fmt.Errorf("failed to load the online store: %w", err)
	}

	offlineStore, err := utils.LoadOfflineStore(ctx, cfg.OfflineStore)
	if err != nil {
		return nil, fmt.Errorf("failed to load the offline store: %w", err)
	}

	metricsClient := metrics.LoadClient(cfg.Telemetry.Metrics.Provider, cfg.Telemetry.Metrics.Settings)
	return NewWithStores(cfg, reg, onlineStore, offlineStore, metricsClient), nil
}

// NewWithStores wires a FeatureStore from already-constructed components.
func NewWithStores(cfg config.Config, reg *registry.Registry, onlineStore online.Store, offlineStore offline.Store, metricsClient base.Client) *FeatureStore {
	return &FeatureStore{
		cfg:      cfg,
		registry: reg,
		provider: provider.New(reg, onlineStore, offlineStore, metricsClient),
		metrics:  metricsClient,
	}
}

func (f *FeatureStore) Project() string {
	return f.cfg.Project
}

func (f *FeatureStore) Config() config.Config {
	return f.cfg
}

func (f *FeatureStore) Registry() *registry.Registry {
	return f.registry
}

func (f *FeatureStore) Provider() *provider.Provider {
	return f.provider
}

func (f *FeatureStore) Metrics() base.Client {
	return f.metrics
}

// RefreshRegistry forces a reload of the registry cache.
func (f *FeatureStore) RefreshRegistry(ctx context.Context) error {
	return f.registry.Refresh(ctx)
}

// Plan reports what Apply would change without touching anything.
func (f *FeatureStore) Plan(ctx context.Context, contents models.RepoContents, partial bool) (registry.Diff, error) {
	return f.registry.Plan(ctx, contents, partial)
}

// Apply reconciles the registry with the repo contents and updates online
// infrastructure: state for deleted feature views is dropped.
func (f *FeatureStore) Apply(ctx context.Context, contents models.RepoContents, partial bool) (registry.Diff, error) {
	previousViews, err := f.registry.ListFeatureViews(ctx)
	if err != nil {
		return registry.Diff{}, err
	}

	diff, err := f.registry.Apply(ctx, contents, partial)
	if err != nil {
		return registry.Diff{}, err
	}

	var deletedViews []models.FeatureView
	for _, obj := range diff.Changed() {
		if obj.Kind != registry.KindFeatureView || obj.Transition != registry.TransitionDelete {
			continue
		}

		for _, view := range previousViews {
			if view.Name == obj.Name {
				deletedViews = append(deletedViews, view)
				break
			}
		}
	}

	if err = f.provider.UpdateInfra(ctx, contents.FeatureViews, deletedViews); err != nil {
		return registry.Diff{}, fmt.Errorf("failed to update online infrastructure: %w", err)
	}

	return diff, nil
}

// Teardown removes all online state and deletes the registry.
func (f *FeatureStore) Teardown(ctx context.Context) error {
	views, err := f.registry.ListFeatureViews(ctx)
	if err != nil {
		return err
	}

	if err = f.provider.TeardownInfra(ctx, views); err != nil {
		return fmt.Errorf("failed to tear down online infrastructure: %w", err)
	}

	return f.registry.Teardown(ctx)
}

// resolveViews returns the named online feature views, or every online view
// when names is empty.
func (f *FeatureStore) resolveViews(ctx context.Context, names []string) ([]models.FeatureView, error) {
	if len(names) == 0 {
		views, err := f.registry.ListFeatureViews(ctx)
		if err != nil {
			return nil, err
		}

		var online []models.FeatureView
		for _, view := range views {
			if view.Online {
				online = append(online, view)
			}
		}

		return online, nil
	}

	views := make([]models.FeatureView, 0, len(names))
	for _, name := range names {
		view, err := f.registry.GetFeatureView(ctx, name)
		if err != nil {
			return nil, err
		}

		views = append(views, view)
	}

	return views, nil
}

// Materialize loads feature values over [start, end) into the online store for
// the named views, or all online views when names is empty.
func (f *FeatureStore) Materialize(ctx context.Context, names []string, start, end time.Time) error {
	if start.After(end) {
		return fmt.Errorf("materialization start %s is after end %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	views, err := f.resolveViews(ctx, names)
	if err != nil {
		return err
	}

	return f.provider.Materialize(ctx, views, start, end)
}

// MaterializeIncremental materializes each view from where its last run ended.
// A view never materialized before starts at end minus its TTL, or a one year
// lookback when it has no TTL.
func (f *FeatureStore) MaterializeIncremental(ctx context.Context, names []string, end time.Time) error {
	views, err := f.resolveViews(ctx, names)
	if err != nil {
		return err
	}

	for _, view := range views {
		start, found := view.MostRecentEndTime()
		if !found {
			lookback := view.TTL
			if lookback == 0 {
				lookback = incrementalFallbackLookback
			}

			start = end.Add(-lookback)
		}

		if start.After(end) {
			return fmt.Errorf("view %q was already materialized through %s, which is after %s",
				view.Name, start.Format(time.RFC3339), end.Format(time.RFC3339))
		}

		slog.Info("Materializing incrementally",
			slog.String("view", view.Name),
			slog.Time("start", start),
			slog.Time("end", end),
		)

		if _, err = f.provider.MaterializeView(ctx, view, start, end); err != nil {
			return err
		}
	}

	return nil
}
