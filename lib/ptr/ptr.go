package ptr

import "time"

func To[T any](val T) *T {
	return &val
}

func ToDuration(duration time.Duration) *time.Duration {
	return &duration
}

// OrDefault dereferences val, falling back to def when val is nil.
func OrDefault[T any](val *T, def T) T {
	if val == nil {
		return def
	}

	return *val
}
