package cpu

import (
	"gonum.org/v1/gonum/blas"
	blasimpl "gonum.org/v1/gonum/blas/gonum"

	"github.com/opforge-ml/opforge/internal/opforge"
	"github.com/opforge-ml/opforge/internal/tensor"
)

// MatMul computes dst = op(a) @ op(b) for 2D float32 tensors using
// single-precision GEMM. op(a) is [M, K] and op(b) is [K, N]; the
// transpose flags select whether the stored tensor is the operand or its
// transpose.
func (cpu *Backend) MatMul(dst, a, b *tensor.RawTensor, transA, transB bool) error {
	if a.DType() != tensor.Float32 || b.DType() != tensor.Float32 || dst.DType() != tensor.Float32 {
		return opforge.Shapef("matmul", "only float32 operands supported, got %s @ %s -> %s",
			a.DType(), b.DType(), dst.DType())
	}
	if a.Shape().Rank() != 2 || b.Shape().Rank() != 2 || dst.Shape().Rank() != 2 {
		return opforge.Shapef("matmul", "only 2D tensors supported, got %s @ %s -> %s",
			a.Shape(), b.Shape(), dst.Shape())
	}

	m, k := a.Shape()[0], a.Shape()[1]
	tA := blas.NoTrans
	if transA {
		m, k = k, m
		tA = blas.Trans
	}

	kAlt, n := b.Shape()[0], b.Shape()[1]
	tB := blas.NoTrans
	if transB {
		kAlt, n = n, kAlt
		tB = blas.Trans
	}

	if k != kAlt {
		return opforge.Shapef("matmul", "inner dimensions differ: op(a)=[%d,%d] op(b)=[%d,%d]", m, k, kAlt, n)
	}
	if dst.Shape()[0] != m || dst.Shape()[1] != n {
		return opforge.Shapef("matmul", "dst shape %s, want [%d %d]", dst.Shape(), m, n)
	}

	// Row-major leading dimensions are the stored column counts.
	lda := a.Shape()[1]
	ldb := b.Shape()[1]

	var impl blasimpl.Implementation
	impl.Sgemm(tA, tB, m, n, k, 1.0,
		a.AsFloat32(), lda,
		b.AsFloat32(), ldb,
		0.0, dst.AsFloat32(), n)
	return nil
}
