package ops

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opforge-ml/opforge/internal/backend/cpu"
	"github.com/opforge-ml/opforge/internal/opforge"
	"github.com/opforge-ml/opforge/internal/tensor"
)

// Helpers shared by the operator tests in this package.

func attnDesc(attrs map[string]any) *opforge.OperatorDescriptor {
	return opforge.NewDescriptor(Domain, NameAttention, Version, attrs)
}

func plainDesc(name string) *opforge.OperatorDescriptor {
	return opforge.NewDescriptor(Domain, name, Version, nil)
}

func f32(t *testing.T, shape tensor.Shape, data []float32) *tensor.RawTensor {
	t.Helper()
	if data == nil {
		r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
		require.NoError(t, err)
		return r
	}
	r, err := tensor.FromFloat32(shape, data, tensor.CPU)
	require.NoError(t, err)
	return r
}

func i32(t *testing.T, shape tensor.Shape, data []int32) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.FromInt32(shape, data, tensor.CPU)
	require.NoError(t, err)
	return r
}

// forward runs op.Forward against fresh buffers sized by InferShapes and
// returns the outputs plus the context (for saved state and backward).
func forward(t *testing.T, op opforge.Operator, be tensor.Backend, inputs ...*tensor.RawTensor) ([]*tensor.RawTensor, *opforge.Context) {
	t.Helper()

	descs := make([]tensor.Desc, len(inputs))
	for i, in := range inputs {
		descs[i] = in.Desc()
	}
	outDescs, err := op.InferShapes(descs)
	require.NoError(t, err)

	outputs := make([]*tensor.RawTensor, len(outDescs))
	for i, d := range outDescs {
		outputs[i], err = tensor.NewRaw(d.Shape, d.DType, be.Device())
		require.NoError(t, err)
	}

	ctx := opforge.NewContext(be, inputs, outputs)
	require.NoError(t, op.Forward(ctx))
	return outputs, ctx
}

// backward runs the operator's gradient op against the forward context.
func backward(t *testing.T, op opforge.Operator, fwdCtx *opforge.Context, outGrad *tensor.RawTensor, fwdInputs ...*tensor.RawTensor) []*tensor.RawTensor {
	t.Helper()

	spec := op.Gradient()
	require.NotNil(t, spec)

	gradInputs := append([]*tensor.RawTensor{outGrad}, fwdInputs...)
	descs := make([]tensor.Desc, len(gradInputs))
	for i, in := range gradInputs {
		descs[i] = in.Desc()
	}
	outDescs, err := spec.Op.InferShapes(descs)
	require.NoError(t, err)
	require.Len(t, outDescs, len(spec.Inputs))

	grads := make([]*tensor.RawTensor, len(outDescs))
	for i, d := range outDescs {
		grads[i], err = tensor.NewRaw(d.Shape, d.DType, fwdCtx.Backend().Device())
		require.NoError(t, err)
	}

	bctx := fwdCtx.Backward(gradInputs, grads)
	require.NoError(t, spec.Op.Forward(bctx))
	return grads
}

func onesLike(t *testing.T, r *tensor.RawTensor) *tensor.RawTensor {
	t.Helper()
	out := f32(t, r.Shape(), nil)
	for i := range out.AsFloat32() {
		out.AsFloat32()[i] = 1
	}
	return out
}

func newBackend() tensor.Backend {
	return cpu.New()
}
