// Package cpu implements the opforge backend primitive set in pure Go,
// with BLAS matrix multiplication and parallel element-wise kernels.
package cpu

import (
	"github.com/opforge-ml/opforge/internal/parallel"
	"github.com/opforge-ml/opforge/internal/tensor"
)

// Backend implements tensor.Backend on the host CPU.
type Backend struct {
	device tensor.Device
	cfg    parallel.Config
	alloc  *Allocator
}

// New creates a CPU backend with an unbounded scratch allocator.
func New() *Backend {
	return &Backend{
		device: tensor.CPU,
		cfg:    parallel.DefaultConfig(),
		alloc:  NewAllocator(0),
	}
}

// NewWithScratchLimit creates a CPU backend whose scratch allocator
// refuses to exceed limitBytes of outstanding allocations. A limit of 0
// means unbounded.
func NewWithScratchLimit(limitBytes int) *Backend {
	b := New()
	b.alloc = NewAllocator(limitBytes)
	return b
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (b *Backend) Device() tensor.Device {
	return b.device
}

// Allocator returns the scratch allocator.
func (b *Backend) Allocator() tensor.Allocator {
	return b.alloc
}
