// Package webgpu implements the opforge backend primitive set on GPU
// using go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU
// bindings. Compute-heavy primitives (matmul, softmax, element-wise)
// run as WGSL kernels; data-movement primitives (gather, scatter-add,
// head reordering, cast) run on the host, where accumulation order
// stays deterministic.
package webgpu

import (
	"fmt"
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/opforge-ml/opforge/internal/backend/cpu"
	"github.com/opforge-ml/opforge/internal/tensor"
)

// Backend implements tensor.Backend on GPU via WebGPU compute shaders.
type Backend struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	// Shader and pipeline cache
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
	mu        sync.RWMutex

	// Buffer pool for storage-buffer reuse across dispatches
	pool *BufferPool

	// Host kernels for data-movement primitives and scratch allocation
	host *cpu.Backend
}

// New creates a WebGPU backend.
// Returns an error if WebGPU is not available or initialization fails.
func New() (backend *Backend, err error) {
	// Recover from panic if the wgpu native library is not found.
	defer func() {
		if r := recover(); r != nil {
			backend = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance, err := wgpu.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("webgpu: failed to create instance: %w", err)
	}
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", adapterErr)
	}

	device, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", deviceErr)
	}

	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to get queue")
	}

	return &Backend{
		instance:  instance,
		adapter:   adapter,
		device:    device,
		queue:     queue,
		shaders:   make(map[string]*wgpu.ShaderModule),
		pipelines: make(map[string]*wgpu.ComputePipeline),
		pool:      NewBufferPool(device),
		host:      cpu.New(),
	}, nil
}

// Release frees GPU resources. The backend is unusable afterwards.
func (b *Backend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pool.Drain()
	for _, p := range b.pipelines {
		p.Release()
	}
	for _, s := range b.shaders {
		s.Release()
	}
	b.pipelines = make(map[string]*wgpu.ComputePipeline)
	b.shaders = make(map[string]*wgpu.ShaderModule)

	b.device.Release()
	b.adapter.Release()
	b.instance.Release()
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "WebGPU"
}

// Device returns the compute device.
func (b *Backend) Device() tensor.Device {
	return tensor.WebGPU
}

// Allocator returns the scratch allocator. Tensors are host-visible and
// staged to device storage per primitive call, so scratch lives in host
// memory.
func (b *Backend) Allocator() tensor.Allocator {
	return b.host.Allocator()
}
