package tensor

// UnaryKind selects the function applied by Backend.Unary.
// Enumerated (rather than a Go closure) so GPU backends can map each
// kind onto a compiled compute kernel.
type UnaryKind int

// Supported unary element-wise functions.
const (
	UnaryCopy UnaryKind = iota
	UnaryTanh
	UnaryExp
	UnaryGelu     // 0.5*x*(1+tanh(sqrt(2/pi)*(x+0.044715*x^3)))
	UnaryGeluGrad // derivative of UnaryGelu at x
)

// String returns the kernel name for the unary kind.
func (k UnaryKind) String() string {
	switch k {
	case UnaryCopy:
		return "copy"
	case UnaryTanh:
		return "tanh"
	case UnaryExp:
		return "exp"
	case UnaryGelu:
		return "gelu"
	case UnaryGeluGrad:
		return "gelu_grad"
	default:
		return "unknown"
	}
}

// BinaryKind selects the function applied by Backend.Binary.
type BinaryKind int

// Supported binary element-wise functions.
const (
	BinaryAdd BinaryKind = iota
	BinarySub
	BinaryMul
)

// String returns the kernel name for the binary kind.
func (k BinaryKind) String() string {
	switch k {
	case BinaryAdd:
		return "add"
	case BinarySub:
		return "sub"
	case BinaryMul:
		return "mul"
	default:
		return "unknown"
	}
}

// Allocator hands out scratch tensors for intermediate values. Operators
// acquire scratch through a per-invocation scope and every allocation is
// returned via Free on every exit path of the call. Alloc reports
// allocation failure before any output of the same invocation is written.
type Allocator interface {
	Alloc(shape Shape, dtype DataType) (*RawTensor, error)
	Free(t *RawTensor)
}

// Backend is the primitive set an execution context exposes to operators.
// Operators call only these, never hardware APIs directly. All primitives
// use IEEE-754 arithmetic and row-major addressing, write dst in full or
// not at all, and are synchronous from the operator's point of view.
//
// Implementations:
//   - cpu: pure Go kernels with BLAS matmul (internal/backend/cpu)
//   - webgpu: WGSL compute shaders (internal/backend/webgpu)
type Backend interface {
	// MatMul computes dst = op(a) @ op(b) for 2D tensors, where op is
	// the identity or a transpose selected by transA/transB.
	MatMul(dst, a, b *RawTensor, transA, transB bool) error

	// Softmax computes a numerically stable softmax along the last
	// dimension of a 2D tensor (per-row max subtraction).
	Softmax(dst, src *RawTensor) error

	// SoftmaxGrad applies softmax's Jacobian-vector product row-wise:
	// dst = sm * (upstream - sum(upstream * sm)) for 2D tensors.
	SoftmaxGrad(dst, sm, upstream *RawTensor) error

	// Unary applies an element-wise function: dst[i] = f(src[i]).
	Unary(dst, src *RawTensor, kind UnaryKind) error

	// Binary applies an element-wise function: dst[i] = f(a[i], b[i]).
	// Shapes of dst, a and b must match exactly (no broadcasting).
	Binary(dst, a, b *RawTensor, kind BinaryKind) error

	// Scale computes dst[i] = alpha * src[i].
	Scale(dst, src *RawTensor, alpha float32) error

	// CausalMask copies a square 2D score matrix setting entries above
	// the main diagonal (key position > query position) to -Inf.
	CausalMask(dst, src *RawTensor) error

	// SplitHeads reorders [batch, seq, heads*headDim] into
	// [batch, heads, seq, headDim] so each (batch, head) slab is
	// contiguous. MergeHeads is the inverse.
	SplitHeads(dst, src *RawTensor, heads int) error
	MergeHeads(dst, src *RawTensor) error

	// GatherRows copies table rows selected by an integer index tensor:
	// dst row i = table[indices[i]]. Every index is validated against
	// the table before any row is written; an out-of-range index aborts
	// the call with no partial output.
	GatherRows(dst, table, indices *RawTensor) error

	// ScatterAddRows accumulates src rows into dst rows selected by
	// indices: dst[indices[i]] += src[i]. Duplicate indices accumulate.
	ScatterAddRows(dst, src, indices *RawTensor) error

	// Cast converts between element types (float32 <-> float16).
	Cast(dst, src *RawTensor) error

	// Zero fills dst with zeros.
	Zero(dst *RawTensor) error

	// HasNonFinite reports whether a float tensor contains NaN or Inf.
	// Best-effort probe used for overflow diagnostics.
	HasNonFinite(t *RawTensor) bool

	// Allocator returns the backend's scratch allocator.
	Allocator() Allocator

	// Metadata
	Name() string
	Device() Device
}
