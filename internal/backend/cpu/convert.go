package cpu

import (
	"github.com/opforge-ml/opforge/internal/opforge"
	"github.com/opforge-ml/opforge/internal/parallel"
	"github.com/opforge-ml/opforge/internal/tensor"
)

// Cast converts between element types. Supported conversions are
// float32 <-> float16 and same-dtype copies.
func (cpu *Backend) Cast(dst, src *tensor.RawTensor) error {
	if !dst.Shape().Equal(src.Shape()) {
		return opforge.Shapef("cast", "dst shape %s, src shape %s", dst.Shape(), src.Shape())
	}

	switch {
	case dst.DType() == src.DType():
		copy(dst.Data(), src.Data())
		return nil

	case src.DType() == tensor.Float32 && dst.DType() == tensor.Float16:
		in := src.AsFloat32()
		out := dst.AsFloat16()
		parallel.For(len(in), func(i int) {
			out[i] = tensor.F32ToF16(in[i])
		}, cpu.cfg)
		return nil

	case src.DType() == tensor.Float16 && dst.DType() == tensor.Float32:
		in := src.AsFloat16()
		out := dst.AsFloat32()
		parallel.For(len(in), func(i int) {
			out[i] = tensor.F16ToF32(in[i])
		}, cpu.cfg)
		return nil

	default:
		return opforge.Shapef("cast", "unsupported conversion %s -> %s", src.DType(), dst.DType())
	}
}
