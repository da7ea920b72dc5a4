package retry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithRetries(t *testing.T) {
	{
		// Succeeds on the first attempt.
		var calls int
		value, err := WithRetries(NewRetryConfig(NewRetryConfigArgs{MaxAttempts: 3}), func(_ int, _ error) (string, error) {
			calls++
			return "ok", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "ok", value)
		assert.Equal(t, 1, calls)
	}
	{
		// Retries until it succeeds.
		var calls int
		value, err := WithRetries(NewRetryConfig(NewRetryConfigArgs{MaxAttempts: 5}), func(attempt int, _ error) (int, error) {
			calls++
			if attempt < 2 {
				return 0, fmt.Errorf("transient")
			}
			return 42, nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 42, value)
		assert.Equal(t, 3, calls)
	}
	{
		// Exhausts attempts.
		var calls int
		_, err := WithRetries(NewRetryConfig(NewRetryConfigArgs{MaxAttempts: 3}), func(_ int, _ error) (int, error) {
			calls++
			return 0, fmt.Errorf("always fails")
		})
		assert.ErrorContains(t, err, "always fails")
		assert.Equal(t, 3, calls)
	}
	{
		// Does not retry non-retryable errors.
		var calls int
		cfg := NewRetryConfig(NewRetryConfigArgs{
			MaxAttempts:    5,
			IsRetryableErr: func(err error) bool { return false },
		})
		err := cfg.WithRetries(func(_ int, _ error) error {
			calls++
			return fmt.Errorf("fatal")
		})
		assert.ErrorContains(t, err, "fatal")
		assert.Equal(t, 1, calls)
	}
}
