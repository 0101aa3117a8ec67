package ops

import (
	"github.com/opforge-ml/opforge/internal/opforge"
	"github.com/opforge-ml/opforge/internal/tensor"
)

// Detach copies its input through unchanged and blocks gradient flow
// backward. Gradient() returns nil unconditionally; a host that needs a
// gradient for the detached input substitutes zeros (ZeroGradient)
// instead of failing, so autodiff graph construction stays intact.
type Detach struct{}

// NewDetach constructs the operator from a descriptor (no attributes).
func NewDetach(*opforge.OperatorDescriptor) (opforge.Operator, error) {
	return &Detach{}, nil
}

// InferShapes echoes the single input descriptor.
func (*Detach) InferShapes(inputs []tensor.Desc) ([]tensor.Desc, error) {
	if len(inputs) != 1 {
		return nil, opforge.Shapef("Detach", "want 1 input, got %d", len(inputs))
	}
	return []tensor.Desc{inputs[0]}, nil
}

// Forward is an identity copy, bit-for-bit for any dtype.
func (d *Detach) Forward(ctx *opforge.Context) error {
	defer ctx.ReleaseScratch()

	if ctx.NumInputs() != 1 || ctx.NumOutputs() != 1 {
		return opforge.Shapef("Detach", "want 1 input and 1 output, got %d and %d",
			ctx.NumInputs(), ctx.NumOutputs())
	}
	in, out := ctx.Input(0), ctx.Output(0)
	if !out.Shape().Equal(in.Shape()) || out.DType() != in.DType() {
		return opforge.Shapef("Detach", "output %s, want %s", out.Desc(), in.Desc())
	}
	return ctx.Backend().Unary(out, in, tensor.UnaryCopy)
}

// Gradient returns nil: Detach exists to stop gradients.
func (*Detach) Gradient() *opforge.GradientSpec {
	return nil
}
