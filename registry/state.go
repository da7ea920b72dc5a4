package registry

import (
	"strings"
	"time"

	"github.com/banquet-labs/banquet/models"
)

const (
	KindEntity              = "entity"
	KindDataSource          = "data source"
	KindFeatureView         = "feature view"
	KindOnDemandFeatureView = "on demand feature view"
	KindFeatureService      = "feature service"
	KindSavedDataset        = "saved dataset"
)

// State is the full serialized contents of a project's registry.
type State struct {
	Project              string                       `json:"project"`
	Entities             []models.Entity              `json:"entities,omitempty"`
	DataSources          []models.DataSource          `json:"dataSources,omitempty"`
	FeatureViews         []models.FeatureView         `json:"featureViews,omitempty"`
	OnDemandFeatureViews []models.OnDemandFeatureView `json:"onDemandFeatureViews,omitempty"`
	FeatureServices      []models.FeatureService      `json:"featureServices,omitempty"`
	SavedDatasets        []models.SavedDataset        `json:"savedDatasets,omitempty"`

	VersionID   string    `json:"versionId"`
	LastUpdated time.Time `json:"lastUpdated"`
}

func upsert[T any](items []T, name func(T) string, item T) []T {
	target := name(item)
	for idx, existing := range items {
		if strings.EqualFold(name(existing), target) {
			items[idx] = item
			return items
		}
	}

	return append(items, item)
}

func find[T any](items []T, name func(T) string, target string) (T, bool) {
	for _, item := range items {
		if name(item) == target {
			return item, true
		}
	}

	var zero T
	return zero, false
}

func remove[T any](items []T, name func(T) string, target string) ([]T, bool) {
	for idx, item := range items {
		if name(item) == target {
			return append(items[:idx], items[idx+1:]...), true
		}
	}

	return items, false
}

func entityName(e models.Entity) string                { return e.Name }
func dataSourceName(d models.DataSource) string        { return d.Name }
func featureViewName(f models.FeatureView) string      { return f.Name }
func odfvName(o models.OnDemandFeatureView) string     { return o.Name }
func featureServiceName(f models.FeatureService) string { return f.Name }
func savedDatasetName(s models.SavedDataset) string    { return s.Name }
