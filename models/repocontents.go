package models

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RepoContents is the desired state of a feature repo, as parsed from a
// definitions file. Plan/apply diff it against the registry.
type RepoContents struct {
	Project              string
	Entities             []Entity
	DataSources          []DataSource
	FeatureViews         []FeatureView
	OnDemandFeatureViews []OnDemandFeatureView
	FeatureServices      []FeatureService
}

type featureViewDef struct {
	Name         string            `yaml:"name"`
	Entities     []string          `yaml:"entities"`
	Schema       []Feature         `yaml:"schema"`
	TTLSeconds   int64             `yaml:"ttlSeconds"`
	Online       *bool             `yaml:"online"`
	Source       string            `yaml:"source"`
	StreamSource string            `yaml:"streamSource"`
	Tags         map[string]string `yaml:"tags"`
}

type repoDef struct {
	Project              string                `yaml:"project"`
	Entities             []Entity              `yaml:"entities"`
	DataSources          []DataSource          `yaml:"dataSources"`
	FeatureViews         []featureViewDef      `yaml:"featureViews"`
	OnDemandFeatureViews []OnDemandFeatureView `yaml:"onDemandFeatureViews"`
	FeatureServices      []FeatureService      `yaml:"featureServices"`
}

// ParseRepoContents decodes a YAML definitions file. Feature views reference data
// sources by name; references are resolved into embedded copies here.
func ParseRepoContents(data []byte) (RepoContents, error) {
	var def repoDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return RepoContents{}, fmt.Errorf("failed to parse definitions: %w", err)
	}

	sourcesByName := make(map[string]DataSource, len(def.DataSources))
	for _, source := range def.DataSources {
		sourcesByName[source.Name] = source
	}

	contents := RepoContents{
		Project:              def.Project,
		Entities:             def.Entities,
		DataSources:          def.DataSources,
		OnDemandFeatureViews: def.OnDemandFeatureViews,
		FeatureServices:      def.FeatureServices,
	}

	for _, viewDef := range def.FeatureViews {
		batchSource, isOk := sourcesByName[viewDef.Source]
		if !isOk {
			return RepoContents{}, fmt.Errorf("feature view %q references unknown data source %q", viewDef.Name, viewDef.Source)
		}

		view := FeatureView{
			Name:        viewDef.Name,
			Entities:    viewDef.Entities,
			Features:    viewDef.Schema,
			TTL:         time.Duration(viewDef.TTLSeconds) * time.Second,
			Online:      viewDef.Online == nil || *viewDef.Online,
			BatchSource: batchSource,
			Tags:        viewDef.Tags,
		}

		if viewDef.StreamSource != "" {
			streamSource, isOk := sourcesByName[viewDef.StreamSource]
			if !isOk {
				return RepoContents{}, fmt.Errorf("feature view %q references unknown stream source %q", viewDef.Name, viewDef.StreamSource)
			}
			view.StreamSource = &streamSource
		}

		contents.FeatureViews = append(contents.FeatureViews, view)
	}

	if err := contents.Validate(); err != nil {
		return RepoContents{}, err
	}

	return contents, nil
}

// Validate enforces the repo-level invariants: per-object validity, known entity
// references, and case-insensitively unique view and source names.
func (r RepoContents) Validate() error {
	entitiesByName := make(map[string]Entity, len(r.Entities))
	for _, entity := range r.Entities {
		if err := entity.Validate(); err != nil {
			return err
		}
		entitiesByName[entity.Name] = entity
	}

	sourceNames := make(map[string]bool)
	for _, source := range r.DataSources {
		if err := source.Validate(); err != nil {
			return err
		}

		lowered := strings.ToLower(source.Name)
		if sourceNames[lowered] {
			return fmt.Errorf("more than one data source named %q; data source names must be case-insensitively unique", lowered)
		}
		sourceNames[lowered] = true
	}

	viewNames := make(map[string]bool)
	for _, view := range r.FeatureViews {
		if err := view.Validate(); err != nil {
			return err
		}

		for _, entityName := range view.Entities {
			if _, isOk := entitiesByName[entityName]; !isOk {
				return fmt.Errorf("feature view %q references unknown entity %q", view.Name, entityName)
			}
		}

		if err := trackViewName(viewNames, view.Name); err != nil {
			return err
		}
	}

	for _, odfv := range r.OnDemandFeatureViews {
		if err := odfv.Validate(); err != nil {
			return err
		}

		if err := trackViewName(viewNames, odfv.Name); err != nil {
			return err
		}
	}

	for _, service := range r.FeatureServices {
		if err := service.Validate(); err != nil {
			return err
		}
	}

	return nil
}

func trackViewName(seen map[string]bool, name string) error {
	lowered := strings.ToLower(name)
	if seen[lowered] {
		return fmt.Errorf("more than one feature view named %q; feature view names must be case-insensitively unique", lowered)
	}
	seen[lowered] = true

	return nil
}
