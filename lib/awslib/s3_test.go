package awslib

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseS3URI(t *testing.T) {
	{
		// Happy path
		bucket, key, err := ParseS3URI("s3://my-bucket/registry/banquet.json")
		assert.NoError(t, err)
		assert.Equal(t, "my-bucket", bucket)
		assert.Equal(t, "registry/banquet.json", key)
	}
	{
		// Missing scheme
		_, _, err := ParseS3URI("my-bucket/registry.json")
		assert.ErrorContains(t, err, "missing s3:// prefix")
	}
	{
		// Missing key
		_, _, err := ParseS3URI("s3://my-bucket")
		assert.ErrorContains(t, err, "expected s3://bucket/key")
	}
}
