package models

import (
	"fmt"
)

// OnDemandFeatureView computes features at read time from other views' features and
// request data. The transform itself is native Go code registered at runtime under
// TransformName; the registry stores only the name.
type OnDemandFeatureView struct {
	Name          string    `yaml:"name" json:"name"`
	Sources       []FeatureViewProjection `yaml:"sources" json:"sources"`
	RequestSchema []Feature `yaml:"requestSchema,omitempty" json:"requestSchema,omitempty"`
	Features      []Feature `yaml:"schema" json:"schema"`
	TransformName string    `yaml:"transform" json:"transform"`
	Tags          map[string]string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

func (o OnDemandFeatureView) FeatureNames() []string {
	names := make([]string, len(o.Features))
	for i, feature := range o.Features {
		names[i] = feature.Name
	}

	return names
}

func (o OnDemandFeatureView) Feature(name string) (Feature, bool) {
	for _, feature := range o.Features {
		if feature.Name == name {
			return feature, true
		}
	}

	return Feature{}, false
}

// RequestFields lists the request-data columns the transform needs at read time.
func (o OnDemandFeatureView) RequestFields() []string {
	fields := make([]string, len(o.RequestSchema))
	for i, field := range o.RequestSchema {
		fields[i] = field.Name
	}

	return fields
}

func (o OnDemandFeatureView) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("on demand feature view name is empty")
	}

	if len(o.Features) == 0 {
		return fmt.Errorf("on demand feature view %q has no features", o.Name)
	}

	if o.TransformName == "" {
		return fmt.Errorf("on demand feature view %q has no transform", o.Name)
	}

	if len(o.Sources) == 0 && len(o.RequestSchema) == 0 {
		return fmt.Errorf("on demand feature view %q has neither sources nor request data", o.Name)
	}

	return nil
}
