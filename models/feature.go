package models

import (
	"fmt"
	"strings"

	"github.com/banquet-labs/banquet/lib/typing"
)

type Feature struct {
	Name      string           `yaml:"name" json:"name"`
	ValueType typing.ValueType `yaml:"valueType" json:"valueType"`
}

func (f Feature) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("feature name is empty")
	}

	if !f.ValueType.Valid() {
		return fmt.Errorf("feature %q has an invalid value type: %q", f.Name, f.ValueType)
	}

	return nil
}

// FeatureRef is a "view:feature" reference.
type FeatureRef struct {
	ViewName    string
	FeatureName string
}

func (f FeatureRef) String() string {
	return f.ViewName + ":" + f.FeatureName
}

// FullName is the double-underscore form used in responses when full feature names
// are requested, e.g. "customer_fv__daily_transactions".
func (f FeatureRef) FullName() string {
	return f.ViewName + "__" + f.FeatureName
}

func ParseFeatureRef(ref string) (FeatureRef, error) {
	viewName, featureName, found := strings.Cut(ref, ":")
	if !found || viewName == "" || featureName == "" {
		return FeatureRef{}, fmt.Errorf("feature reference %q is not of the form feature_view:feature", ref)
	}

	return FeatureRef{ViewName: viewName, FeatureName: featureName}, nil
}

// ValidateFeatureRefs ensures there are no collisions among feature references.
// When full feature names are off, bare feature names must be unique across views.
func ValidateFeatureRefs(refs []FeatureRef, fullFeatureNames bool) error {
	seen := make(map[string][]FeatureRef)
	for _, ref := range refs {
		key := ref.FeatureName
		if fullFeatureNames {
			key = ref.String()
		}
		seen[key] = append(seen[key], ref)
	}

	var collided []string
	for _, refs := range seen {
		if len(refs) > 1 {
			for _, ref := range refs {
				collided = append(collided, ref.String())
			}
		}
	}

	if len(collided) > 0 {
		return fmt.Errorf("feature names collide: %s; use full feature names or rename the features", strings.Join(collided, ", "))
	}

	return nil
}
