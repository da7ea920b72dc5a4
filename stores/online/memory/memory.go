package memory

import (
	"context"
	"sync"
	"time"

	"github.com/banquet-labs/banquet/models"
)

// Store keeps feature rows in process memory. It backs local development and
// tests; anything materialized into it is lost on restart.
type Store struct {
	mu sync.RWMutex
	// view name -> entity key hash -> row
	views map[string]map[string]models.FeatureRow
}

func NewStore() *Store {
	return &Store{views: make(map[string]map[string]models.FeatureRow)}
}

func (s *Store) OnlineWrite(_ context.Context, view models.FeatureView, rows []models.FeatureRow) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, found := s.views[view.Name]
	if !found {
		table = make(map[string]models.FeatureRow)
		s.views[view.Name] = table
	}

	var written int
	for _, row := range rows {
		hash := row.EntityKey.Hash()
		if existing, found := table[hash]; found && existing.EventTimestamp.After(row.EventTimestamp) {
			continue
		}

		table[hash] = row
		written++
	}

	return written, nil
}

func (s *Store) OnlineRead(_ context.Context, view models.FeatureView, keys []models.EntityKey) ([]*models.FeatureRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*models.FeatureRow, len(keys))
	table, found := s.views[view.Name]
	if !found {
		return results, nil
	}

	now := time.Now()
	for idx, key := range keys {
		row, found := table[key.Hash()]
		if !found {
			continue
		}

		// A row past the view's TTL is treated as absent.
		if view.TTL > 0 && now.Sub(row.EventTimestamp) > view.TTL {
			continue
		}

		results[idx] = &row
	}

	return results, nil
}

func (s *Store) Update(_ context.Context, _ []models.FeatureView, toDelete []models.FeatureView) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, view := range toDelete {
		delete(s.views, view.Name)
	}

	return nil
}

func (s *Store) Teardown(_ context.Context, views []models.FeatureView) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, view := range views {
		delete(s.views, view.Name)
	}

	return nil
}
