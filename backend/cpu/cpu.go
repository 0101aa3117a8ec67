// Copyright 2025 The OpForge Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend for operator execution.
//
// Kernels are plain Go with BLAS matrix multiplication and chunked
// parallelism for row-wise work. The backend is safe for concurrent use.
package cpu

import (
	internalcpu "github.com/opforge-ml/opforge/internal/backend/cpu"
	"github.com/opforge-ml/opforge/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.Backend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend with an unbounded scratch allocator.
//
// Example:
//
//	backend := cpu.New()
//	ctx := ops.NewContext(backend, inputs, outputs)
func New() *Backend {
	return internalcpu.New()
}

// NewWithScratchLimit creates a CPU backend whose scratch allocator
// refuses allocations once outstanding scratch exceeds limitBytes.
func NewWithScratchLimit(limitBytes int) *Backend {
	return internalcpu.NewWithScratchLimit(limitBytes)
}
