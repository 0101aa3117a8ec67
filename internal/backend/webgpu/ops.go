package webgpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/opforge-ml/opforge/internal/tensor"
)

// u32Params packs uniform parameters as little-endian u32 words.
func u32Params(vals ...uint32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[4*i:], v)
	}
	return buf
}

func check2DFloat32(name string, t *tensor.RawTensor) error {
	if t.Shape().Rank() != 2 {
		return fmt.Errorf("%s: expected rank-2 tensor, got shape %s", name, t.Shape())
	}
	if t.DType() != tensor.Float32 {
		return fmt.Errorf("%s: expected float32, got %s", name, t.DType())
	}
	return nil
}

func checkSameFloat32(name string, dst *tensor.RawTensor, srcs ...*tensor.RawTensor) error {
	if dst.DType() != tensor.Float32 {
		return fmt.Errorf("%s: expected float32, got %s", name, dst.DType())
	}
	for _, s := range srcs {
		if s.DType() != tensor.Float32 {
			return fmt.Errorf("%s: expected float32, got %s", name, s.DType())
		}
		if !s.Shape().Equal(dst.Shape()) {
			return fmt.Errorf("%s: shape mismatch %s vs %s", name, s.Shape(), dst.Shape())
		}
	}
	return nil
}

func ceilDiv(n, d uint32) uint32 {
	return (n + d - 1) / d
}

// MatMul computes dst = op(a) @ op(b) for 2D float32 tensors.
func (b *Backend) MatMul(dst, a, bb *tensor.RawTensor, transA, transB bool) error {
	for _, t := range []*tensor.RawTensor{dst, a, bb} {
		if err := check2DFloat32("matmul", t); err != nil {
			return err
		}
	}

	m, ka := a.Shape()[0], a.Shape()[1]
	if transA {
		m, ka = ka, m
	}
	kb, n := bb.Shape()[0], bb.Shape()[1]
	if transB {
		kb, n = n, kb
	}
	if ka != kb {
		return fmt.Errorf("matmul: inner dimensions %d and %d do not match", ka, kb)
	}
	if dst.Shape()[0] != m || dst.Shape()[1] != n {
		return fmt.Errorf("matmul: dst shape %s, want [%d %d]", dst.Shape(), m, n)
	}

	var ta, tb uint32
	if transA {
		ta = 1
	}
	if transB {
		tb = 1
	}
	params := u32Params(uint32(m), uint32(ka), uint32(n), ta, tb)

	out, err := b.dispatch("matmul", matmulShader,
		[][]byte{a.Data(), bb.Data()}, uint64(dst.ByteSize()), params,
		ceilDiv(uint32(n), 16), ceilDiv(uint32(m), 16), 1)
	if err != nil {
		return err
	}
	copy(dst.Data(), out)
	return nil
}

// Softmax computes a numerically stable softmax along the last dimension.
func (b *Backend) Softmax(dst, src *tensor.RawTensor) error {
	if err := check2DFloat32("softmax", src); err != nil {
		return err
	}
	if err := checkSameFloat32("softmax", dst, src); err != nil {
		return err
	}

	rows, cols := src.Shape()[0], src.Shape()[1]
	out, err := b.dispatch("softmax", softmaxShader,
		[][]byte{src.Data()}, uint64(dst.ByteSize()),
		u32Params(uint32(rows), uint32(cols)),
		ceilDiv(uint32(rows), workgroupSize), 1, 1)
	if err != nil {
		return err
	}
	copy(dst.Data(), out)
	return nil
}

// SoftmaxGrad applies softmax's Jacobian-vector product row-wise.
func (b *Backend) SoftmaxGrad(dst, sm, upstream *tensor.RawTensor) error {
	if err := check2DFloat32("softmax_grad", sm); err != nil {
		return err
	}
	if err := checkSameFloat32("softmax_grad", dst, sm, upstream); err != nil {
		return err
	}

	rows, cols := sm.Shape()[0], sm.Shape()[1]
	out, err := b.dispatch("softmax_grad", softmaxGradShader,
		[][]byte{sm.Data(), upstream.Data()}, uint64(dst.ByteSize()),
		u32Params(uint32(rows), uint32(cols)),
		ceilDiv(uint32(rows), workgroupSize), 1, 1)
	if err != nil {
		return err
	}
	copy(dst.Data(), out)
	return nil
}

// Unary applies an element-wise function. Copy runs on the host; math
// kinds run as generated WGSL kernels.
func (b *Backend) Unary(dst, src *tensor.RawTensor, kind tensor.UnaryKind) error {
	if kind == tensor.UnaryCopy {
		return b.host.Unary(dst, src, kind)
	}
	if err := checkSameFloat32("unary_"+kind.String(), dst, src); err != nil {
		return err
	}

	var expr string
	switch kind {
	case tensor.UnaryTanh:
		expr = "tanh(x)"
	case tensor.UnaryExp:
		expr = "exp(x)"
	case tensor.UnaryGelu:
		expr = geluExpr
	case tensor.UnaryGeluGrad:
		expr = geluGradExpr
	default:
		return fmt.Errorf("unary: unsupported kind %s", kind)
	}

	n := src.NumElements()
	name := "unary_" + kind.String()
	code := strings.Replace(unaryShaderTemplate, "EXPR", expr, 1)
	out, err := b.dispatch(name, code,
		[][]byte{src.Data()}, uint64(dst.ByteSize()),
		u32Params(uint32(n)),
		ceilDiv(uint32(n), workgroupSize), 1, 1)
	if err != nil {
		return err
	}
	copy(dst.Data(), out)
	return nil
}

// Binary applies an element-wise function to exact-shape float32 inputs.
func (b *Backend) Binary(dst, x, y *tensor.RawTensor, kind tensor.BinaryKind) error {
	if err := checkSameFloat32("binary_"+kind.String(), dst, x, y); err != nil {
		return err
	}

	var op string
	switch kind {
	case tensor.BinaryAdd:
		op = "+"
	case tensor.BinarySub:
		op = "-"
	case tensor.BinaryMul:
		op = "*"
	default:
		return fmt.Errorf("binary: unsupported kind %s", kind)
	}

	n := dst.NumElements()
	name := "binary_" + kind.String()
	code := strings.Replace(binaryShaderTemplate, "OP", op, 1)
	out, err := b.dispatch(name, code,
		[][]byte{x.Data(), y.Data()}, uint64(dst.ByteSize()),
		u32Params(uint32(n)),
		ceilDiv(uint32(n), workgroupSize), 1, 1)
	if err != nil {
		return err
	}
	copy(dst.Data(), out)
	return nil
}

// Scale computes dst[i] = alpha * src[i].
func (b *Backend) Scale(dst, src *tensor.RawTensor, alpha float32) error {
	if err := checkSameFloat32("scale", dst, src); err != nil {
		return err
	}

	n := dst.NumElements()
	out, err := b.dispatch("scale", scaleShader,
		[][]byte{src.Data()}, uint64(dst.ByteSize()),
		u32Params(uint32(n), math.Float32bits(alpha)),
		ceilDiv(uint32(n), workgroupSize), 1, 1)
	if err != nil {
		return err
	}
	copy(dst.Data(), out)
	return nil
}

// CausalMask copies a square score matrix masking future positions to -Inf.
func (b *Backend) CausalMask(dst, src *tensor.RawTensor) error {
	if err := check2DFloat32("causal_mask", src); err != nil {
		return err
	}
	if err := checkSameFloat32("causal_mask", dst, src); err != nil {
		return err
	}
	n := src.Shape()[0]
	if src.Shape()[1] != n {
		return fmt.Errorf("causal_mask: expected square matrix, got shape %s", src.Shape())
	}

	out, err := b.dispatch("causal_mask", causalMaskShader,
		[][]byte{src.Data()}, uint64(dst.ByteSize()),
		u32Params(uint32(n)),
		ceilDiv(uint32(n), 16), ceilDiv(uint32(n), 16), 1)
	if err != nil {
		return err
	}
	copy(dst.Data(), out)
	return nil
}

// Data-movement primitives run on the host where accumulation order and
// byte-level copies stay deterministic. WGSL has no f32 atomics, so a
// device scatter-add would need nondeterministic CAS loops.

func (b *Backend) SplitHeads(dst, src *tensor.RawTensor, heads int) error {
	return b.host.SplitHeads(dst, src, heads)
}

func (b *Backend) MergeHeads(dst, src *tensor.RawTensor) error {
	return b.host.MergeHeads(dst, src)
}

func (b *Backend) GatherRows(dst, table, indices *tensor.RawTensor) error {
	return b.host.GatherRows(dst, table, indices)
}

func (b *Backend) ScatterAddRows(dst, src, indices *tensor.RawTensor) error {
	return b.host.ScatterAddRows(dst, src, indices)
}

func (b *Backend) Cast(dst, src *tensor.RawTensor) error {
	return b.host.Cast(dst, src)
}

func (b *Backend) Zero(dst *tensor.RawTensor) error {
	return b.host.Zero(dst)
}

func (b *Backend) HasNonFinite(t *tensor.RawTensor) bool {
	return b.host.HasNonFinite(t)
}
