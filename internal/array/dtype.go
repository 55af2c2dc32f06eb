// Package array provides the global-memory Arrays that tile kernels read and write.
//
// An Array is a dense, row-major (or explicitly strided) N-dimensional buffer with
// an element type tag and a memory-space tag. Arrays created with RequiresGrad
// carry a gradient Array of the same shape which the differentiation tape
// accumulates into during the reverse pass.
package array

import "github.com/x448/float16"

// DataType is the element type tag of an Array.
type DataType int

// Supported element types.
const (
	Float32 DataType = iota
	Float64
	Float16
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32:
		return 4
	case Float64:
		return 8
	case Float16:
		return 2
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Float16:
		return "float16"
	default:
		return "unknown"
	}
}

// ParseDataType maps a name as returned by String back to its DataType.
func ParseDataType(name string) (DataType, bool) {
	switch name {
	case "float32", "f32":
		return Float32, true
	case "float64", "f64":
		return Float64, true
	case "float16", "f16", "half":
		return Float16, true
	}
	return 0, false
}

// gradType is the element type used for the gradient buffer of an Array of type dt.
// Half precision has no atomic accumulate, so its gradients are kept in float32.
func (dt DataType) gradType() DataType {
	if dt == Float64 {
		return Float64
	}
	return Float32
}

// Space is the memory space an Array lives in.
type Space int

// Memory spaces.
const (
	Device Space = iota
	Host
)

// String returns a human-readable name for the memory space.
func (s Space) String() string {
	switch s {
	case Device:
		return "device"
	case Host:
		return "host"
	default:
		return "unknown"
	}
}

func toHalf(v float32) float16.Float16 {
	return float16.Fromfloat32(v)
}
