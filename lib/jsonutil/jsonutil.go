package jsonutil

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// Marshal produces deterministic JSON (sorted map keys), so serialized registry
// objects can be compared byte-wise to detect drift.
func Marshal(val any) ([]byte, error) {
	return json.Marshal(val)
}

func Unmarshal(data []byte, val any) error {
	return json.Unmarshal(data, val)
}
