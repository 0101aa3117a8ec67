// Copyright 2025 The OpForge Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU backend for GPU-accelerated
// operator execution.
//
// Compute-heavy primitives run as WGSL kernels; data-movement primitives
// run on the host where accumulation order stays deterministic.
//
// Example:
//
//	gpu, err := webgpu.New()
//	if err != nil {
//	    backend = cpu.New() // graceful fallback
//	} else {
//	    defer gpu.Release()
//	    backend = gpu
//	}
package webgpu

import (
	internalwebgpu "github.com/opforge-ml/opforge/internal/backend/webgpu"
	"github.com/opforge-ml/opforge/tensor"
)

// Backend represents the WebGPU backend implementation.
type Backend = internalwebgpu.Backend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new WebGPU backend.
//
// Returns an error if WebGPU initialization fails (e.g. no compatible
// GPU or the native library is missing). Call Release when done to free
// GPU resources.
func New() (*Backend, error) {
	return internalwebgpu.New()
}
