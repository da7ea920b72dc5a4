package typing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueType_Valid(t *testing.T) {
	for _, valueType := range []ValueType{Bytes, String, Int64, Float64, Boolean, Timestamp, StringList, Int64List} {
		assert.True(t, valueType.Valid(), valueType)
	}

	for _, valueType := range []ValueType{Invalid, "decimal", "string_list_list"} {
		assert.False(t, valueType.Valid(), valueType)
	}
}

func TestValueType_ListRoundTrip(t *testing.T) {
	assert.Equal(t, Int64List, Int64.List())
	assert.Equal(t, Int64, Int64List.Elem())
	assert.True(t, Float32List.IsList())
	assert.False(t, Float32.IsList())

	// List of a list does not stack.
	assert.Equal(t, StringList, StringList.List())

	// Elem of a scalar is itself.
	assert.Equal(t, String, String.Elem())
}
