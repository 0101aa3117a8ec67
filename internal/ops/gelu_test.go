package ops

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opforge-ml/opforge/internal/opforge"
	"github.com/opforge-ml/opforge/internal/tensor"
)

func TestGeluInferShapes(t *testing.T) {
	op, err := NewGelu(plainDesc(NameGelu))
	require.NoError(t, err)

	out, err := op.InferShapes([]tensor.Desc{tensor.NewDesc(tensor.Shape{2, 8}, tensor.Float32)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Shape.Equal(tensor.Shape{2, 8}))
	assert.Equal(t, tensor.Float32, out[0].DType)

	_, err = op.InferShapes(nil)
	assert.ErrorIs(t, err, opforge.ErrShapeMismatch)

	_, err = op.InferShapes([]tensor.Desc{tensor.NewDesc(tensor.Shape{2}, tensor.Int32)})
	assert.ErrorIs(t, err, opforge.ErrShapeMismatch)
}

func TestGeluForward(t *testing.T) {
	op, err := NewGelu(plainDesc(NameGelu))
	require.NoError(t, err)
	be := newBackend()

	in := f32(t, tensor.Shape{5}, []float32{-2, -1, 0, 1, 2})
	outs, ctx := forward(t, op, be, in)
	defer ctx.Close()

	got := outs[0].AsFloat32()
	want := []float32{-0.0454, -0.1588, 0, 0.8412, 1.9546}
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-3, "gelu(%v)", in.AsFloat32()[i])
	}

	// Exactly zero at the origin.
	assert.Zero(t, got[2])
}

func TestGeluMonotoneNonNegative(t *testing.T) {
	op, err := NewGelu(plainDesc(NameGelu))
	require.NoError(t, err)
	be := newBackend()

	in := f32(t, tensor.Shape{6}, []float32{0, 0.5, 1, 2, 4, 8})
	outs, ctx := forward(t, op, be, in)
	defer ctx.Close()

	got := outs[0].AsFloat32()
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i], got[i-1], "gelu must increase on x >= 0")
	}
}

func TestGeluBackward(t *testing.T) {
	op, err := NewGelu(plainDesc(NameGelu))
	require.NoError(t, err)
	be := newBackend()

	in := f32(t, tensor.Shape{3}, []float32{-1, 0, 1})
	_, ctx := forward(t, op, be, in)
	defer ctx.Close()

	grads := backward(t, op, ctx, onesLike(t, in))
	require.Len(t, grads, 1)

	// f'(0) = 0.5 for the tanh approximation.
	assert.InDelta(t, 0.5, grads[0].AsFloat32()[1], 1e-6)
}

// TestGeluBackwardScalesUpstream checks inputGrad = outputGrad * f'(x).
func TestGeluBackwardScalesUpstream(t *testing.T) {
	op, err := NewGelu(plainDesc(NameGelu))
	require.NoError(t, err)
	be := newBackend()

	in := f32(t, tensor.Shape{1}, []float32{0})
	_, ctx := forward(t, op, be, in)
	defer ctx.Close()

	up := f32(t, tensor.Shape{1}, []float32{4})
	grads := backward(t, op, ctx, up)

	assert.InDelta(t, 2.0, grads[0].AsFloat32()[0], 1e-6)
}

func TestGeluGradientFiniteDifference(t *testing.T) {
	op, err := NewGelu(plainDesc(NameGelu))
	require.NoError(t, err)
	be := newBackend()

	xs := []float32{-1.5, -0.3, 0.7, 2.1}
	in := f32(t, tensor.Shape{4}, xs)
	_, ctx := forward(t, op, be, in)
	defer ctx.Close()

	grads := backward(t, op, ctx, onesLike(t, in))

	const h = 1e-3
	for i, x := range xs {
		plus := f32(t, tensor.Shape{1}, []float32{x + h})
		minus := f32(t, tensor.Shape{1}, []float32{x - h})

		op2, _ := NewGelu(plainDesc(NameGelu))
		outP, ctxP := forward(t, op2, be, plus)
		ctxP.Close()
		outM, ctxM := forward(t, op2, be, minus)
		ctxM.Close()

		numeric := (outP[0].AsFloat32()[0] - outM[0].AsFloat32()[0]) / (2 * h)
		assert.InDelta(t, numeric, grads[0].AsFloat32()[i], 1e-2, "gelu'(%v)", x)
	}
}

func TestGeluBackwardWithoutForward(t *testing.T) {
	op, err := NewGelu(plainDesc(NameGelu))
	require.NoError(t, err)
	be := newBackend()

	spec := op.Gradient()
	require.NotNil(t, spec)
	assert.Equal(t, []int{0}, spec.Inputs)

	dOut := f32(t, tensor.Shape{2}, []float32{1, 1})
	dIn := f32(t, tensor.Shape{2}, nil)

	// Fresh context with no saved input must fail cleanly.
	ctx := opforge.NewContext(be, []*tensor.RawTensor{dOut}, []*tensor.RawTensor{dIn})
	err = spec.Op.Forward(ctx)
	require.Error(t, err)
	assert.False(t, errors.Is(err, opforge.ErrShapeMismatch))
}
