package stringutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverride(t *testing.T) {
	assert.Equal(t, "", Override())
	assert.Equal(t, "a", Override("a"))
	assert.Equal(t, "b", Override("a", "b"))
	assert.Equal(t, "a", Override("a", ""))
	assert.Equal(t, "c", Override("", "b", "c"))
}

func TestEmpty(t *testing.T) {
	assert.False(t, Empty("a", "b"))
	assert.True(t, Empty(""))
	assert.True(t, Empty("a", "", "c"))
}
