package cpu

import (
	"github.com/chewxy/math32"

	"github.com/opforge-ml/opforge/internal/opforge"
	"github.com/opforge-ml/opforge/internal/parallel"
	"github.com/opforge-ml/opforge/internal/tensor"
)

// geluCoeff is sqrt(2/pi) for the tanh-approximation GELU.
const geluCoeff = 0.7978845608028654

// geluCubic is the cubic-term coefficient of the tanh approximation.
const geluCubic = 0.044715

func gelu(x float32) float32 {
	inner := geluCoeff * (x + geluCubic*x*x*x)
	return 0.5 * x * (1 + math32.Tanh(inner))
}

func geluGrad(x float32) float32 {
	inner := geluCoeff * (x + geluCubic*x*x*x)
	t := math32.Tanh(inner)
	// d/dx [0.5*x*(1+tanh(u))] = 0.5*(1+tanh(u)) + 0.5*x*sech^2(u)*u'
	sech2 := 1 - t*t
	du := geluCoeff * (1 + 3*geluCubic*x*x)
	return 0.5*(1+t) + 0.5*x*sech2*du
}

// Unary applies an element-wise function dst[i] = f(src[i]).
// UnaryCopy works on any dtype (byte copy); the math kinds require
// float32 operands.
func (cpu *Backend) Unary(dst, src *tensor.RawTensor, kind tensor.UnaryKind) error {
	if !dst.Shape().Equal(src.Shape()) {
		return opforge.Shapef("unary/"+kind.String(), "dst shape %s, src shape %s", dst.Shape(), src.Shape())
	}

	if kind == tensor.UnaryCopy {
		if dst.DType() != src.DType() {
			return opforge.Shapef("unary/copy", "dtype mismatch %s -> %s", src.DType(), dst.DType())
		}
		copy(dst.Data(), src.Data())
		return nil
	}

	if src.DType() != tensor.Float32 || dst.DType() != tensor.Float32 {
		return opforge.Shapef("unary/"+kind.String(), "only float32 supported, got %s", src.DType())
	}

	var f func(float32) float32
	switch kind {
	case tensor.UnaryTanh:
		f = math32.Tanh
	case tensor.UnaryExp:
		f = math32.Exp
	case tensor.UnaryGelu:
		f = gelu
	case tensor.UnaryGeluGrad:
		f = geluGrad
	default:
		return opforge.Shapef("unary", "unsupported kind %s", kind)
	}

	in := src.AsFloat32()
	out := dst.AsFloat32()
	parallel.For(len(in), func(i int) {
		out[i] = f(in[i])
	}, cpu.cfg)
	return nil
}

// Binary applies an element-wise function dst[i] = f(a[i], b[i]).
// Shapes must match exactly; operators size their operands via shape
// inference, so no broadcasting happens at this level.
func (cpu *Backend) Binary(dst, a, b *tensor.RawTensor, kind tensor.BinaryKind) error {
	if err := checkSameFloat32("binary/"+kind.String(), dst, a, b); err != nil {
		return err
	}

	x := a.AsFloat32()
	y := b.AsFloat32()
	out := dst.AsFloat32()

	switch kind {
	case tensor.BinaryAdd:
		parallel.For(len(x), func(i int) { out[i] = x[i] + y[i] }, cpu.cfg)
	case tensor.BinarySub:
		parallel.For(len(x), func(i int) { out[i] = x[i] - y[i] }, cpu.cfg)
	case tensor.BinaryMul:
		parallel.For(len(x), func(i int) { out[i] = x[i] * y[i] }, cpu.cfg)
	default:
		return opforge.Shapef("binary", "unsupported kind %s", kind)
	}
	return nil
}

// Scale computes dst[i] = alpha * src[i].
func (cpu *Backend) Scale(dst, src *tensor.RawTensor, alpha float32) error {
	if err := checkSameFloat32("scale", dst, src); err != nil {
		return err
	}

	in := src.AsFloat32()
	out := dst.AsFloat32()
	parallel.For(len(in), func(i int) {
		out[i] = alpha * in[i]
	}, cpu.cfg)
	return nil
}

// CausalMask copies a square score matrix, replacing every entry above
// the main diagonal (key position > query position) with -Inf so the
// following softmax assigns those positions zero weight.
func (cpu *Backend) CausalMask(dst, src *tensor.RawTensor) error {
	if err := check2DFloat32("causal_mask", src, dst); err != nil {
		return err
	}
	rows, cols := src.Shape()[0], src.Shape()[1]
	if rows != cols {
		return opforge.Shapef("causal_mask", "score matrix %s is not square", src.Shape())
	}

	negInf := math32.Inf(-1)
	in := src.AsFloat32()
	out := dst.AsFloat32()

	parallel.ForRows(rows, cols, func(i int) {
		offset := i * cols
		for j := 0; j <= i; j++ {
			out[offset+j] = in[offset+j]
		}
		for j := i + 1; j < cols; j++ {
			out[offset+j] = negInf
		}
	}, cpu.cfg)
	return nil
}

// Zero fills dst with zeros, regardless of dtype.
func (cpu *Backend) Zero(dst *tensor.RawTensor) error {
	clear(dst.Data())
	return nil
}

// HasNonFinite reports whether a float tensor contains NaN or Inf.
// Non-float tensors report false.
func (cpu *Backend) HasNonFinite(t *tensor.RawTensor) bool {
	switch t.DType() {
	case tensor.Float32:
		for _, v := range t.AsFloat32() {
			if math32.IsNaN(v) || math32.IsInf(v, 0) {
				return true
			}
		}
	case tensor.Float16:
		for _, bits := range t.AsFloat16() {
			v := tensor.F16ToF32(bits)
			if math32.IsNaN(v) || math32.IsInf(v, 0) {
				return true
			}
		}
	}
	return false
}

func checkSameFloat32(op string, tensors ...*tensor.RawTensor) error {
	want := tensors[0].Shape()
	for i, t := range tensors {
		if t.DType() != tensor.Float32 {
			return opforge.Shapef(op, "operand %d dtype %s, want float32", i, t.DType())
		}
		if !t.Shape().Equal(want) {
			return opforge.ShapeInputf(op, i, t.Shape(), "shape differs from %s", want)
		}
	}
	return nil
}
