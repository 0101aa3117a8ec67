package opforge

import (
	"fmt"

	"github.com/opforge-ml/opforge/internal/tensor"
)

// Context is the per-invocation handle an operator executes against. It
// borrows input/output buffers owned by the host backend (valid only for
// the duration of one forward or backward call), exposes the backend's
// compute primitives, and tracks scratch so every allocation is returned
// on every exit path.
//
// A context is confined to the invoking goroutine: operators that fan
// work out internally allocate scratch and record diagnostics before
// spawning workers.
type Context struct {
	backend tensor.Backend
	inputs  []*tensor.RawTensor
	outputs []*tensor.RawTensor

	scratch []*tensor.RawTensor          // live scope, freed by ReleaseScratch
	saved   map[string]*tensor.RawTensor // forward state kept for backward
	diags   []string
}

// NewContext binds a backend and buffers for one operator invocation.
func NewContext(backend tensor.Backend, inputs, outputs []*tensor.RawTensor) *Context {
	return &Context{
		backend: backend,
		inputs:  inputs,
		outputs: outputs,
		saved:   make(map[string]*tensor.RawTensor),
	}
}

// Backend returns the compute primitives for this invocation.
func (c *Context) Backend() tensor.Backend { return c.backend }

// NumInputs returns the number of bound input buffers.
func (c *Context) NumInputs() int { return len(c.inputs) }

// NumOutputs returns the number of bound output buffers.
func (c *Context) NumOutputs() int { return len(c.outputs) }

// Input returns the i-th input buffer.
func (c *Context) Input(i int) *tensor.RawTensor { return c.inputs[i] }

// Output returns the i-th output buffer.
func (c *Context) Output(i int) *tensor.RawTensor { return c.outputs[i] }

// Scratch allocates an intermediate tensor from the backend's allocator
// and tracks it in the call scope. Failure maps to ErrAllocationFailure
// and, by contract, happens before any output buffer write.
func (c *Context) Scratch(shape tensor.Shape, dtype tensor.DataType) (*tensor.RawTensor, error) {
	t, err := c.backend.Allocator().Alloc(shape, dtype)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllocationFailure, err)
	}
	c.scratch = append(c.scratch, t)
	return t, nil
}

// ReleaseScratch returns every live scratch tensor to the allocator.
// Operators call it via defer at the top of Forward so partial failure
// cannot leak allocations. Saved tensors are not affected.
func (c *Context) ReleaseScratch() {
	for _, t := range c.scratch {
		c.backend.Allocator().Free(t)
	}
	c.scratch = nil
}

// Save moves a scratch tensor out of the call scope so it survives until
// backward (e.g. attention's softmax weights). Saving a tensor that is
// not current scratch is a no-op move; the tensor is kept either way.
func (c *Context) Save(key string, t *tensor.RawTensor) {
	for i, s := range c.scratch {
		if s == t {
			c.scratch = append(c.scratch[:i], c.scratch[i+1:]...)
			break
		}
	}
	c.saved[key] = t
}

// Saved returns a tensor stashed during forward, or nil.
func (c *Context) Saved(key string) *tensor.RawTensor {
	return c.saved[key]
}

// Backward derives the context for the matching gradient invocation:
// fresh input/output bindings, same backend, same saved state.
func (c *Context) Backward(inputs, outputs []*tensor.RawTensor) *Context {
	return &Context{
		backend: c.backend,
		inputs:  inputs,
		outputs: outputs,
		saved:   c.saved,
	}
}

// Close releases saved tensors. The host calls it once the backward pass
// no longer needs the forward state.
func (c *Context) Close() {
	for _, t := range c.saved {
		c.backend.Allocator().Free(t)
	}
	c.saved = make(map[string]*tensor.RawTensor)
}

// Diagf records a best-effort, non-fatal diagnostic (e.g. non-finite
// inputs detected before an attention forward).
func (c *Context) Diagf(format string, args ...any) {
	c.diags = append(c.diags, fmt.Sprintf(format, args...))
}

// Diagnostics returns diagnostics recorded during this invocation.
func (c *Context) Diagnostics() []string {
	return c.diags
}
