package tensor

import "fmt"

// Layout is a memory-layout hint carried alongside a descriptor.
// The core treats it as opaque and passes it through to the backend.
type Layout int

// Supported layout hints.
const (
	RowMajor Layout = iota
	Tiled
)

// String returns a human-readable layout name.
func (l Layout) String() string {
	switch l {
	case RowMajor:
		return "row-major"
	case Tiled:
		return "tiled"
	default:
		return "unknown"
	}
}

// Desc describes a tensor without owning any data: shape, element type
// and a layout hint. Shape inference consumes and produces descriptors;
// rank and dtype are fixed once inference has produced a descriptor for
// a given forward pass.
type Desc struct {
	Shape  Shape
	DType  DataType
	Layout Layout
}

// NewDesc builds a row-major descriptor.
func NewDesc(shape Shape, dtype DataType) Desc {
	return Desc{Shape: shape.Clone(), DType: dtype, Layout: RowMajor}
}

// Validate checks the descriptor's shape.
func (d Desc) Validate() error {
	if err := d.Shape.Validate(); err != nil {
		return fmt.Errorf("descriptor: %w", err)
	}
	return nil
}

// Equal checks shape, dtype and layout equality.
func (d Desc) Equal(other Desc) bool {
	return d.DType == other.DType && d.Layout == other.Layout && d.Shape.Equal(other.Shape)
}

// WithShape returns a copy of the descriptor with a different shape.
// DType and layout are carried over unchanged.
func (d Desc) WithShape(shape Shape) Desc {
	return Desc{Shape: shape.Clone(), DType: d.DType, Layout: d.Layout}
}

// String returns a form like float32[2 8 64] (row-major).
func (d Desc) String() string {
	return fmt.Sprintf("%s%s (%s)", d.DType, d.Shape, d.Layout)
}
