package cpu

import (
	"github.com/chewxy/math32"

	"github.com/opforge-ml/opforge/internal/opforge"
	"github.com/opforge-ml/opforge/internal/parallel"
	"github.com/opforge-ml/opforge/internal/tensor"
)

func check2DFloat32(op string, tensors ...*tensor.RawTensor) error {
	want := tensors[0].Shape()
	for i, t := range tensors {
		if t.DType() != tensor.Float32 {
			return opforge.Shapef(op, "operand %d dtype %s, want float32", i, t.DType())
		}
		if t.Shape().Rank() != 2 {
			return opforge.ShapeInputf(op, i, t.Shape(), "want a 2D tensor")
		}
		if !t.Shape().Equal(want) {
			return opforge.ShapeInputf(op, i, t.Shape(), "shape differs from %s", want)
		}
	}
	return nil
}

// Softmax computes a numerically stable softmax along the last dimension
// of a 2D float32 tensor. Each row subtracts its max before
// exponentiating, so rows containing -Inf masked entries produce exact
// zeros rather than NaN.
func (cpu *Backend) Softmax(dst, src *tensor.RawTensor) error {
	if err := check2DFloat32("softmax", src, dst); err != nil {
		return err
	}

	rows, cols := src.Shape()[0], src.Shape()[1]
	in := src.AsFloat32()
	out := dst.AsFloat32()

	parallel.ForRows(rows, cols, func(row int) {
		offset := row * cols

		maxVal := math32.Inf(-1)
		for j := 0; j < cols; j++ {
			if in[offset+j] > maxVal {
				maxVal = in[offset+j]
			}
		}

		var sum float32
		for j := 0; j < cols; j++ {
			e := math32.Exp(in[offset+j] - maxVal)
			out[offset+j] = e
			sum += e
		}

		for j := 0; j < cols; j++ {
			out[offset+j] /= sum
		}
	}, cpu.cfg)
	return nil
}

// SoftmaxGrad applies softmax's Jacobian-vector product row-wise:
//
//	dst[j] = sm[j] * (upstream[j] - dot(upstream, sm))
//
// Rows where sm is zero (masked positions) therefore receive an exact
// zero gradient.
func (cpu *Backend) SoftmaxGrad(dst, sm, upstream *tensor.RawTensor) error {
	if err := check2DFloat32("softmax_grad", sm, upstream, dst); err != nil {
		return err
	}

	rows, cols := sm.Shape()[0], sm.Shape()[1]
	s := sm.AsFloat32()
	u := upstream.AsFloat32()
	out := dst.AsFloat32()

	parallel.ForRows(rows, cols, func(row int) {
		offset := row * cols

		var dot float32
		for j := 0; j < cols; j++ {
			dot += u[offset+j] * s[offset+j]
		}

		for j := 0; j < cols; j++ {
			out[offset+j] = s[offset+j] * (u[offset+j] - dot)
		}
	}, cpu.cfg)
	return nil
}
