package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFeatureRef(t *testing.T) {
	{
		ref, err := ParseFeatureRef("driver_hourly_stats:conv_rate")
		assert.NoError(t, err)
		assert.Equal(t, "driver_hourly_stats", ref.ViewName)
		assert.Equal(t, "conv_rate", ref.FeatureName)
		assert.Equal(t, "driver_hourly_stats__conv_rate", ref.FullName())
	}
	{
		_, err := ParseFeatureRef("no_colon")
		assert.ErrorContains(t, err, "not of the form")
	}
	{
		_, err := ParseFeatureRef(":feature")
		assert.ErrorContains(t, err, "not of the form")
	}
}

func TestValidateFeatureRefs(t *testing.T) {
	refs := []FeatureRef{
		{ViewName: "driver_stats", FeatureName: "trips"},
		{ViewName: "customer_stats", FeatureName: "trips"},
	}

	// Bare names collide across views.
	assert.ErrorContains(t, ValidateFeatureRefs(refs, false), "feature names collide")

	// Full feature names disambiguate.
	assert.NoError(t, ValidateFeatureRefs(refs, true))

	// Identical refs collide either way.
	dupes := []FeatureRef{
		{ViewName: "driver_stats", FeatureName: "trips"},
		{ViewName: "driver_stats", FeatureName: "trips"},
	}
	assert.Error(t, ValidateFeatureRefs(dupes, true))
}
