// Package opforge defines the operator extension core: the contract every
// custom operator implements, the per-invocation execution context, and
// the process-wide registry a host runtime resolves operators from.
//
// The host runtime drives execution: it resolves an operator by
// domain/name/version, calls InferShapes to size output buffers, then
// invokes Forward with a Context bound to real buffers. During backward
// graph construction it asks the operator for its GradientSpec and
// invokes the gradient operator with a context derived from the forward
// one (Context.Backward), which carries the values saved during forward.
package opforge

import "github.com/opforge-ml/opforge/internal/tensor"

// Operator is the contract every custom operator implements.
//
// Operators hold no mutable state beyond their immutable descriptor, so
// one instance is safe to invoke concurrently for different contexts.
type Operator interface {
	// InferShapes is a pure function of input descriptors. It returns
	// one descriptor per output, or an error matching ErrShapeMismatch
	// when the inputs violate the operator's arity or
	// dimension-compatibility rules.
	InferShapes(inputs []tensor.Desc) ([]tensor.Desc, error)

	// Forward reads input buffers and writes output buffers through the
	// context's backend primitives. Scratch acquired from the context is
	// released on every exit path; caller-input errors abort before any
	// output buffer is written.
	Forward(ctx *Context) error

	// Gradient returns the operator's gradient wiring, or nil for
	// operators that never produce gradients (Detach). A nil
	// spec means "produces a zero gradient", not an error: the host
	// substitutes zeros when it needs a gradient for such an input.
	Gradient() *GradientSpec
}

// GradientSpec wires an operator's backward pass. Op consumes the output
// gradient (plus any forward-saved values reachable through the backward
// context) and produces one gradient tensor per entry in Inputs.
//
// Invariant: every forward-input position that requires a gradient
// appears exactly once in Inputs, in the order Op writes its outputs.
type GradientSpec struct {
	// Op computes the gradients. Its context inputs are the output
	// gradient followed by whichever forward inputs the concrete
	// operator documents; its outputs align with Inputs below.
	Op Operator

	// Inputs lists the forward-input positions that receive gradients.
	// Positions absent here (e.g. integer index tensors) are
	// non-differentiable by construction.
	Inputs []int
}

// Factory constructs an operator instance from its descriptor.
// Returns an error when the descriptor's attributes are invalid.
type Factory func(desc *OperatorDescriptor) (Operator, error)

// ZeroGradient fills grad with zeros. Hosts use it for inputs whose
// producing operator blocks gradient flow (GradientSpec == nil).
func ZeroGradient(backend tensor.Backend, grad *tensor.RawTensor) error {
	return backend.Zero(grad)
}
