package models

import (
	"fmt"
	"time"
)

// TimeRange is a closed materialization interval recorded in the registry.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type FeatureView struct {
	Name     string   `yaml:"name" json:"name"`
	Entities []string `yaml:"entities,omitempty" json:"entities,omitempty"`
	Features []Feature `yaml:"schema" json:"schema"`

	// TTL bounds the point-in-time join lookback and the online row lifetime.
	// Zero means no expiry.
	TTL    time.Duration `yaml:"-" json:"ttl"`
	Online bool          `yaml:"online" json:"online"`

	BatchSource  DataSource  `yaml:"-" json:"batchSource"`
	StreamSource *DataSource `yaml:"-" json:"streamSource,omitempty"`

	Tags map[string]string `yaml:"tags,omitempty" json:"tags,omitempty"`

	// MaterializedRanges is registry-managed bookkeeping; callers never set it.
	MaterializedRanges []TimeRange `yaml:"-" json:"materializedRanges,omitempty"`
}

// IsStream reports whether the view ingests from a stream (kafka or push) source.
func (f FeatureView) IsStream() bool {
	return f.StreamSource != nil
}

func (f FeatureView) FeatureNames() []string {
	names := make([]string, len(f.Features))
	for i, feature := range f.Features {
		names[i] = feature.Name
	}

	return names
}

func (f FeatureView) Feature(name string) (Feature, bool) {
	for _, feature := range f.Features {
		if feature.Name == name {
			return feature, true
		}
	}

	return Feature{}, false
}

// MostRecentEndTime returns the end of the latest materialized range.
func (f FeatureView) MostRecentEndTime() (time.Time, bool) {
	var out time.Time
	for _, interval := range f.MaterializedRanges {
		if interval.End.After(out) {
			out = interval.End
		}
	}

	return out, !out.IsZero()
}

func (f FeatureView) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("feature view name is empty")
	}

	if len(f.Features) == 0 {
		return fmt.Errorf("feature view %q has no features", f.Name)
	}

	for _, feature := range f.Features {
		if err := feature.Validate(); err != nil {
			return fmt.Errorf("feature view %q: %w", f.Name, err)
		}
	}

	if err := f.BatchSource.Validate(); err != nil {
		return fmt.Errorf("feature view %q batch source: %w", f.Name, err)
	}

	if f.StreamSource != nil && !f.StreamSource.IsStream() {
		return fmt.Errorf("feature view %q stream source %q is not a stream", f.Name, f.StreamSource.Name)
	}

	if f.TTL < 0 {
		return fmt.Errorf("feature view %q has a negative ttl", f.Name)
	}

	return nil
}
