// Package tensor provides the core tensor types and operations for the prune engine.
package tensor

// DType is a constraint for supported tensor data types.
//
// The pruning core works on float32 weights and boolean masks; no other
// payload types are needed.
type DType interface {
	~float32 | ~bool
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Bool
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32:
		return 4
	case Bool:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// inferDataType infers DataType from a generic type T.
func inferDataType[T DType](dummy T) DataType {
	switch any(dummy).(type) {
	case float32:
		return Float32
	case bool:
		return Bool
	default:
		panic("unsupported type")
	}
}
