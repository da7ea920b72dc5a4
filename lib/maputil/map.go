package maputil

func GetKeyFromMap(obj map[string]any, key string, defaultValue any) any {
	if len(obj) == 0 {
		return defaultValue
	}

	val, isOk := obj[key]
	if !isOk {
		return defaultValue
	}

	return val
}

// GetStringFromMap returns the value under [key] only if it is a non-empty string.
func GetStringFromMap(obj map[string]any, key string, defaultValue string) string {
	val, isOk := GetKeyFromMap(obj, key, defaultValue).(string)
	if !isOk || val == "" {
		return defaultValue
	}

	return val
}
