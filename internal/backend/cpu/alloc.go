package cpu

import (
	"fmt"
	"sync"

	"github.com/opforge-ml/opforge/internal/tensor"
)

// Allocator hands out host-memory scratch tensors. An optional byte
// limit bounds outstanding allocations so scratch exhaustion surfaces as
// an error instead of unbounded growth.
type Allocator struct {
	mu          sync.Mutex
	limitBytes  int // 0 = unbounded
	outstanding int
}

// NewAllocator creates an allocator with the given outstanding-bytes
// limit (0 = unbounded).
func NewAllocator(limitBytes int) *Allocator {
	return &Allocator{limitBytes: limitBytes}
}

// Alloc returns a zero-filled scratch tensor, or an error when the
// allocation would exceed the configured limit.
func (a *Allocator) Alloc(shape tensor.Shape, dtype tensor.DataType) (*tensor.RawTensor, error) {
	size := shape.NumElements() * dtype.Size()

	a.mu.Lock()
	if a.limitBytes > 0 && a.outstanding+size > a.limitBytes {
		outstanding := a.outstanding
		a.mu.Unlock()
		return nil, fmt.Errorf("scratch limit exceeded: %d outstanding + %d requested > %d",
			outstanding, size, a.limitBytes)
	}
	a.outstanding += size
	a.mu.Unlock()

	t, err := tensor.NewRaw(shape, dtype, tensor.CPU)
	if err != nil {
		a.mu.Lock()
		a.outstanding -= size
		a.mu.Unlock()
		return nil, err
	}
	return t, nil
}

// Free returns a scratch tensor's bytes to the budget. The Go runtime
// reclaims the memory itself.
func (a *Allocator) Free(t *tensor.RawTensor) {
	if t == nil {
		return
	}
	a.mu.Lock()
	a.outstanding -= t.ByteSize()
	if a.outstanding < 0 {
		a.outstanding = 0
	}
	a.mu.Unlock()
}

// OutstandingBytes reports currently live scratch bytes.
func (a *Allocator) OutstandingBytes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outstanding
}
