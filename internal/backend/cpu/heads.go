package cpu

import (
	"github.com/opforge-ml/opforge/internal/opforge"
	"github.com/opforge-ml/opforge/internal/parallel"
	"github.com/opforge-ml/opforge/internal/tensor"
)

// SplitHeads reorders [batch, seq, heads*headDim] into
// [batch, heads, seq, headDim], making each (batch, head) slab a
// contiguous [seq, headDim] matrix. Works on any dtype: rows move as
// headDim-sized byte runs.
func (cpu *Backend) SplitHeads(dst, src *tensor.RawTensor, heads int) error {
	if src.Shape().Rank() != 3 {
		return opforge.Shapef("split_heads", "src shape %s, want [batch seq channels]", src.Shape())
	}
	batch, seq, channels := src.Shape()[0], src.Shape()[1], src.Shape()[2]
	if heads <= 0 || channels%heads != 0 {
		return opforge.Shapef("split_heads", "channels %d not divisible by %d heads", channels, heads)
	}
	headDim := channels / heads
	want := tensor.Shape{batch, heads, seq, headDim}
	if !dst.Shape().Equal(want) {
		return opforge.Shapef("split_heads", "dst shape %s, want %s", dst.Shape(), want)
	}
	if dst.DType() != src.DType() {
		return opforge.Shapef("split_heads", "dtype mismatch %s -> %s", src.DType(), dst.DType())
	}

	elem := src.DType().Size()
	run := headDim * elem
	in := src.Data()
	out := dst.Data()

	parallel.For(batch*heads, func(bh int) {
		b, h := bh/heads, bh%heads
		for s := 0; s < seq; s++ {
			srcOff := ((b*seq+s)*channels + h*headDim) * elem
			dstOff := (((b*heads+h)*seq + s) * headDim) * elem
			copy(out[dstOff:dstOff+run], in[srcOff:srcOff+run])
		}
	}, cpu.cfg)
	return nil
}

// MergeHeads is the inverse of SplitHeads: [batch, heads, seq, headDim]
// back to [batch, seq, heads*headDim].
func (cpu *Backend) MergeHeads(dst, src *tensor.RawTensor) error {
	if src.Shape().Rank() != 4 {
		return opforge.Shapef("merge_heads", "src shape %s, want [batch heads seq headDim]", src.Shape())
	}
	batch, heads, seq, headDim := src.Shape()[0], src.Shape()[1], src.Shape()[2], src.Shape()[3]
	channels := heads * headDim
	want := tensor.Shape{batch, seq, channels}
	if !dst.Shape().Equal(want) {
		return opforge.Shapef("merge_heads", "dst shape %s, want %s", dst.Shape(), want)
	}
	if dst.DType() != src.DType() {
		return opforge.Shapef("merge_heads", "dtype mismatch %s -> %s", src.DType(), dst.DType())
	}

	elem := src.DType().Size()
	run := headDim * elem
	in := src.Data()
	out := dst.Data()

	parallel.For(batch*heads, func(bh int) {
		b, h := bh/heads, bh%heads
		for s := 0; s < seq; s++ {
			srcOff := (((b*heads+h)*seq + s) * headDim) * elem
			dstOff := ((b*seq+s)*channels + h*headDim) * elem
			copy(out[dstOff:dstOff+run], in[srcOff:srcOff+run])
		}
	}, cpu.cfg)
	return nil
}
