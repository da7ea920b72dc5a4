package typing

type ValueType string

const (
	Invalid   ValueType = ""
	Bytes     ValueType = "bytes"
	String    ValueType = "string"
	Int32     ValueType = "int32"
	Int64     ValueType = "int64"
	Float32   ValueType = "float32"
	Float64   ValueType = "float64"
	Boolean   ValueType = "bool"
	Timestamp ValueType = "timestamp"

	BytesList     ValueType = "bytes_list"
	StringList    ValueType = "string_list"
	Int32List     ValueType = "int32_list"
	Int64List     ValueType = "int64_list"
	Float32List   ValueType = "float32_list"
	Float64List   ValueType = "float64_list"
	BooleanList   ValueType = "bool_list"
	TimestampList ValueType = "timestamp_list"
)

var scalarTypes = []ValueType{Bytes, String, Int32, Int64, Float32, Float64, Boolean, Timestamp}

func (v ValueType) Valid() bool {
	for _, scalar := range scalarTypes {
		if v == scalar || v == scalar+"_list" {
			return true
		}
	}

	return false
}

func (v ValueType) IsList() bool {
	const suffix = ValueType("_list")
	return len(v) > len(suffix) && v[len(v)-len(suffix):] == suffix
}

// Elem returns the scalar type of a list type, or the type itself for scalars.
func (v ValueType) Elem() ValueType {
	if v.IsList() {
		return v[:len(v)-len("_list")]
	}

	return v
}

func (v ValueType) List() ValueType {
	if v.IsList() || v == Invalid {
		return v
	}

	return v + "_list"
}
