package models

import (
	"fmt"
)

// FeatureViewProjection selects a subset of a view's features, optionally renaming
// the view and remapping join keys for retrieval.
type FeatureViewProjection struct {
	Name       string            `yaml:"featureView" json:"featureView"`
	NameAlias  string            `yaml:"nameAlias,omitempty" json:"nameAlias,omitempty"`
	Features   []string          `yaml:"features,omitempty" json:"features,omitempty"`
	JoinKeyMap map[string]string `yaml:"joinKeyMap,omitempty" json:"joinKeyMap,omitempty"`
}

func (f FeatureViewProjection) NameToUse() string {
	if f.NameAlias != "" {
		return f.NameAlias
	}

	return f.Name
}

type FeatureService struct {
	Name        string                  `yaml:"name" json:"name"`
	Projections []FeatureViewProjection `yaml:"features" json:"features"`
	Description string                  `yaml:"description,omitempty" json:"description,omitempty"`
	Tags        map[string]string       `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// FeatureRefs expands the service into concrete feature references.
func (f FeatureService) FeatureRefs() []FeatureRef {
	var refs []FeatureRef
	for _, projection := range f.Projections {
		for _, feature := range projection.Features {
			refs = append(refs, FeatureRef{ViewName: projection.NameToUse(), FeatureName: feature})
		}
	}

	return refs
}

func (f FeatureService) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("feature service name is empty")
	}

	if len(f.Projections) == 0 {
		return fmt.Errorf("feature service %q references no feature views", f.Name)
	}

	for _, projection := range f.Projections {
		if projection.Name == "" {
			return fmt.Errorf("feature service %q has a projection with no feature view name", f.Name)
		}
	}

	return nil
}

// InferProjectionFeatures fills empty projections with every feature of the
// referenced view.
func (f *FeatureService) InferProjectionFeatures(views map[string]FeatureView) {
	for i, projection := range f.Projections {
		if len(projection.Features) != 0 {
			continue
		}

		if view, isOk := views[projection.Name]; isOk {
			f.Projections[i].Features = view.FeatureNames()
		}
	}
}
