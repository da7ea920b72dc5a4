package models

import (
	"fmt"
	"time"
)

// SavedDataset is a persisted historical-retrieval result registered for reuse
// (training set reproducibility).
type SavedDataset struct {
	Name             string            `json:"name"`
	Features         []string          `json:"features"`
	JoinKeys         []string          `json:"joinKeys"`
	FullFeatureNames bool              `json:"fullFeatureNames"`
	Storage          DataSource        `json:"storage"`
	Tags             map[string]string `json:"tags,omitempty"`
	FeatureService   string            `json:"featureService,omitempty"`

	MinEventTimestamp time.Time `json:"minEventTimestamp,omitempty"`
	MaxEventTimestamp time.Time `json:"maxEventTimestamp,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

func (s SavedDataset) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("saved dataset name is empty")
	}

	return s.Storage.Validate()
}
