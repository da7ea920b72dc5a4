// Package provider coordinates the registry with the online and offline
// stores: materialization, ingestion and deduplicated online reads.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banquet-labs/banquet/lib/telemetry/metrics/base"
	"github.com/banquet-labs/banquet/models"
	"github.com/banquet-labs/banquet/registry"
	"github.com/banquet-labs/banquet/stores/offline"
	"github.com/banquet-labs/banquet/stores/online"
)

// maxConcurrentViews caps parallel view materialization.
const maxConcurrentViews = 4

type Provider struct {
	registry     *registry.Registry
	onlineStore  online.Store
	offlineStore offline.Store
	metrics      base.Client
}

func New(reg *registry.Registry, onlineStore online.Store, offlineStore offline.Store, metrics base.Client) *Provider {
	return &Provider{
		registry:     reg,
		onlineStore:  onlineStore,
		offlineStore: offlineStore,
		metrics:      metrics,
	}
}

func (p *Provider) OnlineStore() online.Store {
	return p.onlineStore
}

func (p *Provider) OfflineStore() offline.Store {
	return p.offlineStore
}

// JoinKeysForView resolves the view's entity names to their join keys, in the
// order the view declares them. Entityless views get no join keys; their rows
// collapse onto the dummy entity key.
func (p *Provider) JoinKeysForView(ctx context.Context, view models.FeatureView) ([]string, error) {
	joinKeys := make([]string, 0, len(view.Entities))
	for _, entityName := range view.Entities {
		if entityName == models.DummyEntityName {
			continue
		}

		entity, err := p.registry.GetEntity(ctx, entityName)
		if err != nil {
			return nil, err
		}

		joinKeys = append(joinKeys, entity.JoinKey)
	}

	return joinKeys, nil
}

// MaterializeView loads the latest feature values over [start, end) from the
// batch source into the online store and records the interval in the registry.
func (p *Provider) MaterializeView(ctx context.Context, view models.FeatureView, start, end time.Time) (int, error) {
	if !view.Online {
		return 0, fmt.Errorf("feature view %q is not online-enabled", view.Name)
	}

	defer func(startedAt time.Time) {
		p.metrics.Timing("materialize.duration", time.Since(startedAt), map[string]string{"view": view.Name})
	}(time.Now())

	joinKeys, err := p.JoinKeysForView(ctx, view)
	if err != nil {
		return 0, err
	}

	rows, err := offline.PullLatest(ctx, p.offlineStore, view, joinKeys, start, end)
	if err != nil {
		return 0, err
	}

	written, err := p.onlineStore.OnlineWrite(ctx, view, rows)
	if err != nil {
		return written, fmt.Errorf("failed to write view %q to the online store: %w", view.Name, err)
	}

	p.metrics.Count("materialize.rows", int64(written), map[string]string{"view": view.Name})
	slog.Info("Materialized feature view",
		slog.String("view", view.Name),
		slog.Int("rows", written),
		slog.Time("start", start),
		slog.Time("end", end),
	)

	if err = p.registry.ApplyMaterialization(ctx, view.Name, models.TimeRange{Start: start, End: end}); err != nil {
		return written, fmt.Errorf("failed to record materialization for view %q: %w", view.Name, err)
	}

	return written, nil
}

// Materialize runs MaterializeView across views concurrently.
func (p *Provider) Materialize(ctx context.Context, views []models.FeatureView, start, end time.Time) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentViews)
	for _, view := range views {
		group.Go(func() error {
			_, err := p.MaterializeView(groupCtx, view, start, end)
			return err
		})
	}

	return group.Wait()
}

// IngestRows writes feature rows straight into the online store, the path used
// by stream ingestion and pushes.
func (p *Provider) IngestRows(ctx context.Context, view models.FeatureView, rows []models.FeatureRow) (int, error) {
	if !view.Online {
		return 0, nil
	}

	written, err := p.onlineStore.OnlineWrite(ctx, view, rows)
	if err != nil {
		return written, fmt.Errorf("failed to ingest rows for view %q: %w", view.Name, err)
	}

	p.metrics.Count("ingest.rows", int64(written), map[string]string{"view": view.Name})
	return written, nil
}

// OnlineRead fetches rows for the requested entity keys, deduplicating keys so
// the store sees each distinct key once.
func (p *Provider) OnlineRead(ctx context.Context, view models.FeatureView, keys []models.EntityKey) ([]*models.FeatureRow, error) {
	uniqueKeys := make([]models.EntityKey, 0, len(keys))
	positions := make(map[string]int, len(keys))
	for _, key := range keys {
		hash := key.Hash()
		if _, found := positions[hash]; found {
			continue
		}

		positions[hash] = len(uniqueKeys)
		uniqueKeys = append(uniqueKeys, key)
	}

	startedAt := time.Now()
	uniqueRows, err := p.onlineStore.OnlineRead(ctx, view, uniqueKeys)
	if err != nil {
		return nil, err
	}

	p.metrics.Timing("online_read.duration", time.Since(startedAt), map[string]string{"view": view.Name})

	rows := make([]*models.FeatureRow, len(keys))
	for idx, key := range keys {
		rows[idx] = uniqueRows[positions[key.Hash()]]
	}

	return rows, nil
}

// UpdateInfra provisions online state for new or updated views and tears down
// deleted ones.
func (p *Provider) UpdateInfra(ctx context.Context, toKeep, toDelete []models.FeatureView) error {
	return p.onlineStore.Update(ctx, toKeep, toDelete)
}

// TeardownInfra removes all online state for the given views.
func (p *Provider) TeardownInfra(ctx context.Context, views []models.FeatureView) error {
	return p.onlineStore.Teardown(ctx, views)
}
