package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// EntityKey is a composite key of join keys to values identifying one entity row.
type EntityKey struct {
	JoinKeys []string `json:"joinKeys"`
	Values   []any    `json:"values"`
}

func NewEntityKey(values map[string]any) EntityKey {
	joinKeys := make([]string, 0, len(values))
	for joinKey := range values {
		joinKeys = append(joinKeys, joinKey)
	}
	sort.Strings(joinKeys)

	out := EntityKey{JoinKeys: joinKeys, Values: make([]any, len(joinKeys))}
	for i, joinKey := range joinKeys {
		out.Values[i] = values[joinKey]
	}

	return out
}

// Serialize renders the key deterministically, sorting join keys so logically equal
// keys always serialize identically.
func (e EntityKey) Serialize() string {
	pairs := make([]string, len(e.JoinKeys))
	for i, joinKey := range e.JoinKeys {
		pairs[i] = fmt.Sprintf("%s=%v", joinKey, e.Values[i])
	}
	sort.Strings(pairs)

	return strings.Join(pairs, "|")
}

// Hash is a stable hex digest of the serialized key, used as the storage key by
// online store backends.
func (e EntityKey) Hash() string {
	digest := sha256.Sum256([]byte(e.Serialize()))
	return hex.EncodeToString(digest[:])
}

func (e EntityKey) ToMap() map[string]any {
	out := make(map[string]any, len(e.JoinKeys))
	for i, joinKey := range e.JoinKeys {
		out[joinKey] = e.Values[i]
	}

	return out
}

// FeatureRow is one entity's feature values at a point in time. It is the unit both
// offline pulls and online writes operate on.
type FeatureRow struct {
	EntityKey      EntityKey      `json:"entityKey"`
	Values         map[string]any `json:"values"`
	EventTimestamp time.Time      `json:"eventTimestamp"`
	Created        time.Time      `json:"created,omitempty"`
}
