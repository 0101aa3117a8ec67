package ops

import (
	"fmt"

	"github.com/opforge-ml/opforge/internal/opforge"
	"github.com/opforge-ml/opforge/internal/tensor"
)

// savedGeluInput keys the forward input kept for the backward pass.
const savedGeluInput = "gelu.input"

// Gelu applies the tanh-approximation GELU element-wise:
//
//	y = 0.5*x*(1 + tanh(sqrt(2/pi)*(x + 0.044715*x^3)))
//
// The tanh form (not the exact erf form) is used throughout; the
// backward derivative matches it analytically, so f'(0) = 0.5 exactly.
// Forward saves a copy of the input for backward.
type Gelu struct{}

// NewGelu constructs the operator from a descriptor (no attributes).
func NewGelu(*opforge.OperatorDescriptor) (opforge.Operator, error) {
	return &Gelu{}, nil
}

// InferShapes echoes the single float32 input descriptor.
func (*Gelu) InferShapes(inputs []tensor.Desc) ([]tensor.Desc, error) {
	if len(inputs) != 1 {
		return nil, opforge.Shapef("Gelu", "want 1 input, got %d", len(inputs))
	}
	if inputs[0].DType != tensor.Float32 {
		return nil, opforge.ShapeInputf("Gelu", 0, inputs[0].Shape, "dtype %s, want float32", inputs[0].DType)
	}
	return []tensor.Desc{inputs[0]}, nil
}

// Forward applies the activation and saves the input.
func (g *Gelu) Forward(ctx *opforge.Context) error {
	defer ctx.ReleaseScratch()

	if ctx.NumInputs() != 1 || ctx.NumOutputs() != 1 {
		return opforge.Shapef("Gelu", "want 1 input and 1 output, got %d and %d",
			ctx.NumInputs(), ctx.NumOutputs())
	}
	in, out := ctx.Input(0), ctx.Output(0)
	be := ctx.Backend()

	if _, err := g.InferShapes([]tensor.Desc{in.Desc()}); err != nil {
		return err
	}
	if !out.Shape().Equal(in.Shape()) || out.DType() != in.DType() {
		return opforge.Shapef("Gelu", "output %s, want %s", out.Desc(), in.Desc())
	}

	// The input buffer is only borrowed for this call; keep a copy for
	// the backward derivative.
	saved, err := ctx.Scratch(in.Shape(), in.DType())
	if err != nil {
		return err
	}
	if err := be.Unary(saved, in, tensor.UnaryCopy); err != nil {
		return err
	}

	if err := be.Unary(out, in, tensor.UnaryGelu); err != nil {
		return err
	}

	ctx.Save(savedGeluInput, saved)
	return nil
}

// Gradient wires the element-wise backward operator.
func (g *Gelu) Gradient() *opforge.GradientSpec {
	return &opforge.GradientSpec{
		Op:     &geluGrad{},
		Inputs: []int{0},
	}
}

// geluGrad multiplies the output gradient by the analytic derivative of
// the tanh-approximation GELU evaluated at the saved forward input.
// Context wiring: input is [outputGrad], output is [inputGrad].
type geluGrad struct{}

// InferShapes echoes the output-gradient descriptor.
func (*geluGrad) InferShapes(inputs []tensor.Desc) ([]tensor.Desc, error) {
	if len(inputs) != 1 {
		return nil, opforge.Shapef("GeluGrad", "want 1 input, got %d", len(inputs))
	}
	if inputs[0].DType != tensor.Float32 {
		return nil, opforge.ShapeInputf("GeluGrad", 0, inputs[0].Shape, "dtype %s, want float32", inputs[0].DType)
	}
	return []tensor.Desc{inputs[0]}, nil
}

// Forward computes inputGrad = outputGrad * gelu'(savedInput).
func (g *geluGrad) Forward(ctx *opforge.Context) error {
	defer ctx.ReleaseScratch()

	if ctx.NumInputs() != 1 || ctx.NumOutputs() != 1 {
		return opforge.Shapef("GeluGrad", "want 1 input and 1 output, got %d and %d",
			ctx.NumInputs(), ctx.NumOutputs())
	}
	dOut := ctx.Input(0)
	dIn := ctx.Output(0)
	be := ctx.Backend()

	x := ctx.Saved(savedGeluInput)
	if x == nil {
		return fmt.Errorf("gelu gradient: no saved input; run forward first")
	}
	if !dOut.Shape().Equal(x.Shape()) {
		return opforge.Shapef("GeluGrad", "output gradient shape %s, saved input shape %s",
			dOut.Shape(), x.Shape())
	}

	deriv, err := ctx.Scratch(x.Shape(), tensor.Float32)
	if err != nil {
		return err
	}
	if err := be.Unary(deriv, x, tensor.UnaryGeluGrad); err != nil {
		return err
	}
	return be.Binary(dIn, dOut, deriv, tensor.BinaryMul)
}

// Gradient returns nil: no second-order wiring.
func (*geluGrad) Gradient() *opforge.GradientSpec {
	return nil
}
