// Package tensor provides the descriptor and buffer types shared by all
// opforge operators and backends.
package tensor

import "github.com/x448/float16"

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float16
	Int32
	Int64
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float16:
		return 2
	case Int64:
		return 8
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float16:
		return "float16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	default:
		return "unknown"
	}
}

// IsFloat reports whether the data type is a floating-point type.
func (dt DataType) IsFloat() bool {
	return dt == Float32 || dt == Float16
}

// IsInteger reports whether the data type is an integer type.
func (dt DataType) IsInteger() bool {
	return dt == Int32 || dt == Int64
}

// F16ToF32 converts a raw IEEE-754 binary16 value to float32.
func F16ToF32(bits uint16) float32 {
	return float16.Frombits(bits).Float32()
}

// F32ToF16 converts a float32 value to raw IEEE-754 binary16 bits.
func F32ToF16(f float32) uint16 {
	return float16.Fromfloat32(f).Bits()
}
