package tensor

import (
	"fmt"
	"unsafe"
)

// Device represents the compute device a backend targets.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// RawTensor is the low-level tensor representation: a row-major byte
// buffer plus shape and dtype. Buffers are host-visible; GPU backends
// stage data to device memory per primitive call.
type RawTensor struct {
	data   []byte
	shape  Shape
	stride []int
	dtype  DataType
	device Device
	offset int // element offset into data, for views
}

// NewRaw creates a new zero-filled RawTensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	byteSize := shape.NumElements() * dtype.Size()
	return &RawTensor{
		data:   make([]byte, byteSize),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
	}, nil
}

// FromFloat32 creates a float32 tensor initialized from data.
func FromFloat32(shape Shape, data []float32, device Device) (*RawTensor, error) {
	t, err := NewRaw(shape, Float32, device)
	if err != nil {
		return nil, err
	}
	if len(data) != t.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %s", len(data), shape)
	}
	copy(t.AsFloat32(), data)
	return t, nil
}

// FromInt32 creates an int32 tensor initialized from data.
func FromInt32(shape Shape, data []int32, device Device) (*RawTensor, error) {
	t, err := NewRaw(shape, Int32, device)
	if err != nil {
		return nil, err
	}
	if len(data) != t.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %s", len(data), shape)
	}
	copy(t.AsInt32(), data)
	return t, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's memory strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// Desc returns a data-free descriptor for the tensor.
func (r *RawTensor) Desc() Desc {
	return NewDesc(r.shape, r.dtype)
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return r.NumElements() * r.dtype.Size()
}

// Data returns the raw byte slice backing this tensor (or view).
func (r *RawTensor) Data() []byte {
	start := r.offset * r.dtype.Size()
	return r.data[start : start+r.ByteSize()]
}

// View returns a tensor sharing this tensor's buffer, starting at the
// given element offset with the given shape. The slab must be contiguous
// and lie fully inside the parent buffer. Used to address per-head slabs
// of [batch, heads, seq, headDim] scratch without copying.
func (r *RawTensor) View(elemOffset int, shape Shape) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid view shape: %w", err)
	}
	if elemOffset < 0 || elemOffset+shape.NumElements() > r.NumElements() {
		return nil, fmt.Errorf("view [%d, %d) out of range for tensor with %d elements",
			elemOffset, elemOffset+shape.NumElements(), r.NumElements())
	}
	return &RawTensor{
		data:   r.data,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  r.dtype,
		device: r.device,
		offset: r.offset + elemOffset,
	}, nil
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	d := r.Data()
	return unsafe.Slice((*float32)(unsafe.Pointer(unsafe.SliceData(d))), r.NumElements())
}

// AsFloat16 interprets the data as raw binary16 bits.
// Panics if the tensor's dtype is not Float16.
func (r *RawTensor) AsFloat16() []uint16 {
	if r.dtype != Float16 {
		panic(fmt.Sprintf("tensor dtype is %s, not float16", r.dtype))
	}
	d := r.Data()
	return unsafe.Slice((*uint16)(unsafe.Pointer(unsafe.SliceData(d))), r.NumElements())
}

// AsInt32 interprets the data as []int32.
// Panics if the tensor's dtype is not Int32.
func (r *RawTensor) AsInt32() []int32 {
	if r.dtype != Int32 {
		panic(fmt.Sprintf("tensor dtype is %s, not int32", r.dtype))
	}
	d := r.Data()
	return unsafe.Slice((*int32)(unsafe.Pointer(unsafe.SliceData(d))), r.NumElements())
}

// AsInt64 interprets the data as []int64.
// Panics if the tensor's dtype is not Int64.
func (r *RawTensor) AsInt64() []int64 {
	if r.dtype != Int64 {
		panic(fmt.Sprintf("tensor dtype is %s, not int64", r.dtype))
	}
	d := r.Data()
	return unsafe.Slice((*int64)(unsafe.Pointer(unsafe.SliceData(d))), r.NumElements())
}
