package typing

import (
	"fmt"
	"strconv"
	"time"
)

// InferType guesses the value type for a native Go (or JSON-decoded) value.
func InferType(val any) ValueType {
	switch typedVal := val.(type) {
	case nil:
		return Invalid
	case []byte:
		return Bytes
	case string:
		if _, err := time.Parse(time.RFC3339, typedVal); err == nil {
			return Timestamp
		}
		return String
	case bool:
		return Boolean
	case int, int64:
		return Int64
	case int32, int16, int8:
		return Int32
	case float32:
		return Float32
	case float64:
		return Float64
	case time.Time:
		return Timestamp
	case []any:
		for _, elem := range typedVal {
			if elemType := InferType(elem); elemType != Invalid {
				return elemType.List()
			}
		}
		return Invalid
	default:
		return Invalid
	}
}

// CastValue coerces a JSON-decoded or driver-returned value into the canonical Go
// representation for [valueType]: int32/int64, float32/float64, string, bool, []byte,
// time.Time, or a slice thereof. nil passes through untouched.
func CastValue(val any, valueType ValueType) (any, error) {
	if val == nil {
		return nil, nil
	}

	if valueType.IsList() {
		elems, isOk := val.([]any)
		if !isOk {
			return nil, fmt.Errorf("expected a list for %q, got %T", valueType, val)
		}

		out := make([]any, len(elems))
		for i, elem := range elems {
			castedElem, err := CastValue(elem, valueType.Elem())
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = castedElem
		}
		return out, nil
	}

	switch valueType {
	case Bytes:
		switch typedVal := val.(type) {
		case []byte:
			return typedVal, nil
		case string:
			return []byte(typedVal), nil
		}
	case String:
		return fmt.Sprint(val), nil
	case Int32:
		parsed, err := castInt(val)
		if err != nil {
			return nil, err
		}
		return int32(parsed), nil
	case Int64:
		return castInt(val)
	case Float32:
		parsed, err := castFloat(val)
		if err != nil {
			return nil, err
		}
		return float32(parsed), nil
	case Float64:
		return castFloat(val)
	case Boolean:
		switch typedVal := val.(type) {
		case bool:
			return typedVal, nil
		case string:
			return strconv.ParseBool(typedVal)
		}
	case Timestamp:
		return ParseTimestamp(val)
	}

	return nil, fmt.Errorf("cannot cast %T to %q", val, valueType)
}

func castInt(val any) (int64, error) {
	switch typedVal := val.(type) {
	case int:
		return int64(typedVal), nil
	case int8:
		return int64(typedVal), nil
	case int16:
		return int64(typedVal), nil
	case int32:
		return int64(typedVal), nil
	case int64:
		return typedVal, nil
	case float32:
		return int64(typedVal), nil
	case float64:
		return int64(typedVal), nil
	case string:
		return strconv.ParseInt(typedVal, 10, 64)
	}

	return 0, fmt.Errorf("cannot cast %T to an integer", val)
}

func castFloat(val any) (float64, error) {
	switch typedVal := val.(type) {
	case int:
		return float64(typedVal), nil
	case int32:
		return float64(typedVal), nil
	case int64:
		return float64(typedVal), nil
	case float32:
		return float64(typedVal), nil
	case float64:
		return typedVal, nil
	case string:
		return strconv.ParseFloat(typedVal, 64)
	}

	return 0, fmt.Errorf("cannot cast %T to a float", val)
}

// ParseTimestamp accepts time.Time, RFC 3339 strings and epoch seconds/milliseconds.
func ParseTimestamp(val any) (time.Time, error) {
	switch typedVal := val.(type) {
	case time.Time:
		return typedVal.UTC(), nil
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.DateTime, time.DateOnly} {
			if parsed, err := time.Parse(layout, typedVal); err == nil {
				return parsed.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unable to parse timestamp: %q", typedVal)
	case int64:
		return epochToTime(typedVal), nil
	case int:
		return epochToTime(int64(typedVal)), nil
	case float64:
		return epochToTime(int64(typedVal)), nil
	}

	return time.Time{}, fmt.Errorf("cannot parse %T as a timestamp", val)
}

func epochToTime(epoch int64) time.Time {
	// Heuristic: values past the year 2286 in seconds are treated as milliseconds.
	if epoch > 9_999_999_999 {
		return time.UnixMilli(epoch).UTC()
	}

	return time.Unix(epoch, 0).UTC()
}
