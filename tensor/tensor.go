// Copyright 2025 The OpForge Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for tensor descriptors and raw
// buffers in the OpForge operator library.
//
// The package defines the types hosts and operators exchange:
//   - RawTensor: row-major byte buffer plus shape and dtype
//   - Desc: data-free tensor descriptor used by shape inference
//   - Backend: the primitive set a compute device exposes
//   - Shape, DataType, Device, Layout: core type definitions
//
// Example:
//
//	backend := cpu.New()
//	q, _ := tensor.FromFloat32(tensor.Shape{1, 4, 64}, data, backend.Device())
package tensor

import (
	"github.com/opforge-ml/opforge/internal/tensor"
)

// Type aliases for public API

// DataType represents the underlying element type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float16 DataType = tensor.Float16
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
)

// Device represents the compute device a backend targets.
type Device = tensor.Device

// Device constants.
const (
	CPU    Device = tensor.CPU
	WebGPU Device = tensor.WebGPU
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Layout describes the memory layout of a tensor buffer.
type Layout = tensor.Layout

// Layout constants.
const (
	RowMajor Layout = tensor.RowMajor
	Tiled    Layout = tensor.Tiled
)

// Desc is a data-free tensor descriptor: shape, element type and layout.
// Shape inference consumes and produces descriptors without touching
// buffers.
type Desc = tensor.Desc

// NewDesc creates a row-major descriptor.
func NewDesc(shape Shape, dtype DataType) Desc {
	return tensor.NewDesc(shape, dtype)
}

// RawTensor is the low-level tensor representation: a row-major byte
// buffer plus shape and dtype.
type RawTensor = tensor.RawTensor

// NewRaw creates a new zero-filled RawTensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// FromFloat32 creates a float32 tensor initialized from data.
func FromFloat32(shape Shape, data []float32, device Device) (*RawTensor, error) {
	return tensor.FromFloat32(shape, data, device)
}

// FromInt32 creates an int32 tensor initialized from data.
func FromInt32(shape Shape, data []int32, device Device) (*RawTensor, error) {
	return tensor.FromInt32(shape, data, device)
}

// Backend is the primitive set an execution context exposes to operators.
type Backend = tensor.Backend

// Allocator hands out scratch tensors for intermediate values.
type Allocator = tensor.Allocator

// UnaryKind selects the function applied by Backend.Unary.
type UnaryKind = tensor.UnaryKind

// Unary kind constants.
const (
	UnaryCopy     UnaryKind = tensor.UnaryCopy
	UnaryTanh     UnaryKind = tensor.UnaryTanh
	UnaryExp      UnaryKind = tensor.UnaryExp
	UnaryGelu     UnaryKind = tensor.UnaryGelu
	UnaryGeluGrad UnaryKind = tensor.UnaryGeluGrad
)

// BinaryKind selects the function applied by Backend.Binary.
type BinaryKind = tensor.BinaryKind

// Binary kind constants.
const (
	BinaryAdd BinaryKind = tensor.BinaryAdd
	BinarySub BinaryKind = tensor.BinarySub
	BinaryMul BinaryKind = tensor.BinaryMul
)
