package ops

import (
	"fmt"
	"math/rand"
	"runtime"

	"github.com/chewxy/math32"
	"golang.org/x/sync/errgroup"

	"github.com/opforge-ml/opforge/internal/opforge"
	"github.com/opforge-ml/opforge/internal/tensor"
)

// Saved-state keys for the attention forward/backward handoff.
const (
	savedAttnProbs = "attention.probs"
	savedAttnMask  = "attention.dropout_mask"
)

// Attention is the fused multi-head attention operator: per head,
// score = (q @ k^T) * scale, optional causal mask, numerically stable
// softmax over the key axis, optional dropout, then softmax @ v, with
// heads concatenated back onto the channel axis.
//
// Descriptor attributes:
//
//	num_heads   int     required, >= 1
//	scale       float   default 1/sqrt(headDim)
//	causal      bool    default false
//	dropout     float   default 0, in [0, 1)
//	seed        int     dropout mask seed, default 0
//	split_heads bool    inputs already laid out [batch, heads, seq, headDim]
//
// Forward saves the softmax probabilities (and the dropout mask when
// dropout is enabled) for the backward pass; pre-softmax scores are not
// kept.
type Attention struct {
	heads      int
	scale      float32 // 0 means derive 1/sqrt(headDim) from the inputs
	causal     bool
	dropout    float32
	seed       int64
	splitInput bool
}

// NewAttention constructs the operator from a descriptor.
func NewAttention(desc *opforge.OperatorDescriptor) (opforge.Operator, error) {
	heads := desc.AttrInt("num_heads", 0)
	if heads < 1 {
		return nil, fmt.Errorf("attention: num_heads attribute must be >= 1, got %d", heads)
	}
	dropout := desc.AttrFloat("dropout", 0)
	if dropout < 0 || dropout >= 1 {
		return nil, fmt.Errorf("attention: dropout %v outside [0, 1)", dropout)
	}
	return &Attention{
		heads:      heads,
		scale:      desc.AttrFloat("scale", 0),
		causal:     desc.AttrBool("causal", false),
		dropout:    dropout,
		seed:       int64(desc.AttrInt("seed", 0)),
		splitInput: desc.AttrBool("split_heads", false),
	}, nil
}

// attnDims captures the geometry shared by forward and backward.
type attnDims struct {
	batch, heads, qSeq, kvSeq, headDim int
}

func (a *Attention) dims(q, k tensor.Desc) attnDims {
	if a.splitInput {
		return attnDims{
			batch: q.Shape[0], heads: q.Shape[1],
			qSeq: q.Shape[2], kvSeq: k.Shape[2], headDim: q.Shape[3],
		}
	}
	return attnDims{
		batch: q.Shape[0], heads: a.heads,
		qSeq: q.Shape[1], kvSeq: k.Shape[1], headDim: q.Shape[2] / a.heads,
	}
}

// InferShapes validates query/key/value compatibility and returns the
// output descriptor (same as query).
func (a *Attention) InferShapes(inputs []tensor.Desc) ([]tensor.Desc, error) {
	if len(inputs) != 3 {
		return nil, opforge.Shapef("Attention", "want 3 inputs (query, key, value), got %d", len(inputs))
	}
	q, k, v := inputs[0], inputs[1], inputs[2]

	wantRank := 3
	if a.splitInput {
		wantRank = 4
	}
	for i, in := range inputs {
		if in.Shape.Rank() != wantRank {
			return nil, opforge.ShapeInputf("Attention", i, in.Shape, "want rank %d", wantRank)
		}
		if in.DType != tensor.Float32 {
			return nil, opforge.ShapeInputf("Attention", i, in.Shape, "dtype %s, want float32", in.DType)
		}
		if in.Shape[0] != q.Shape[0] {
			return nil, opforge.ShapeInputf("Attention", i, in.Shape, "batch differs from query's %d", q.Shape[0])
		}
	}

	if a.splitInput {
		for i, in := range inputs {
			if in.Shape[1] != a.heads {
				return nil, opforge.ShapeInputf("Attention", i, in.Shape, "head axis %d, want %d", in.Shape[1], a.heads)
			}
			if in.Shape[3] != q.Shape[3] {
				return nil, opforge.ShapeInputf("Attention", i, in.Shape, "headDim differs from query's %d", q.Shape[3])
			}
		}
		if k.Shape[2] != v.Shape[2] {
			return nil, opforge.Shapef("Attention", "key seq %d != value seq %d", k.Shape[2], v.Shape[2])
		}
		if a.causal && q.Shape[2] != k.Shape[2] {
			return nil, opforge.Shapef("Attention", "causal mask needs query seq %d == key seq %d", q.Shape[2], k.Shape[2])
		}
	} else {
		channels := q.Shape[2]
		if channels%a.heads != 0 {
			return nil, opforge.Shapef("Attention", "channels %d not divisible by %d heads", channels, a.heads)
		}
		for i, in := range inputs {
			if in.Shape[2] != channels {
				return nil, opforge.ShapeInputf("Attention", i, in.Shape, "channels differ from query's %d", channels)
			}
		}
		if k.Shape[1] != v.Shape[1] {
			return nil, opforge.Shapef("Attention", "key seq %d != value seq %d", k.Shape[1], v.Shape[1])
		}
		if a.causal && q.Shape[1] != k.Shape[1] {
			return nil, opforge.Shapef("Attention", "causal mask needs query seq %d == key seq %d", q.Shape[1], k.Shape[1])
		}
	}

	return []tensor.Desc{q.WithShape(q.Shape)}, nil
}

func (a *Attention) scaleFor(headDim int) float32 {
	if a.scale != 0 {
		return a.scale
	}
	return 1 / math32.Sqrt(float32(headDim))
}

// Forward computes the fused attention output. The per-(batch, head)
// slabs are independent, so they run on an errgroup; any slab failure
// aborts the call with scratch released and the output unwritten.
func (a *Attention) Forward(ctx *opforge.Context) error {
	defer ctx.ReleaseScratch()

	if ctx.NumInputs() != 3 || ctx.NumOutputs() != 1 {
		return opforge.Shapef("Attention", "want 3 inputs and 1 output, got %d and %d",
			ctx.NumInputs(), ctx.NumOutputs())
	}
	q, k, v := ctx.Input(0), ctx.Input(1), ctx.Input(2)
	out := ctx.Output(0)
	be := ctx.Backend()

	outDescs, err := a.InferShapes([]tensor.Desc{q.Desc(), k.Desc(), v.Desc()})
	if err != nil {
		return err
	}
	if !out.Shape().Equal(outDescs[0].Shape) {
		return opforge.Shapef("Attention", "output shape %s, want %s", out.Shape(), outDescs[0].Shape)
	}

	// Best-effort overflow diagnostic, never fatal.
	if be.HasNonFinite(q) || be.HasNonFinite(k) || be.HasNonFinite(v) {
		ctx.Diagf("attention: inputs already contain non-finite values")
	}

	d := a.dims(q.Desc(), k.Desc())
	scale := a.scaleFor(d.headDim)

	q4, k4, v4, err := a.splitInputs(ctx, q, k, v, d)
	if err != nil {
		return err
	}

	scores4, err := ctx.Scratch(tensor.Shape{d.batch, d.heads, d.qSeq, d.kvSeq}, tensor.Float32)
	if err != nil {
		return err
	}
	probs4, err := ctx.Scratch(tensor.Shape{d.batch, d.heads, d.qSeq, d.kvSeq}, tensor.Float32)
	if err != nil {
		return err
	}
	ctx4, err := ctx.Scratch(tensor.Shape{d.batch, d.heads, d.qSeq, d.headDim}, tensor.Float32)
	if err != nil {
		return err
	}

	var mask4, dropped4 *tensor.RawTensor
	if a.dropout > 0 {
		mask4, err = ctx.Scratch(scores4.Shape(), tensor.Float32)
		if err != nil {
			return err
		}
		dropped4, err = ctx.Scratch(scores4.Shape(), tensor.Float32)
		if err != nil {
			return err
		}
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))

	for bh := 0; bh < d.batch*d.heads; bh++ {
		g.Go(func() error {
			qs, err := slab(q4, bh, d.qSeq, d.headDim)
			if err != nil {
				return err
			}
			ks, err := slab(k4, bh, d.kvSeq, d.headDim)
			if err != nil {
				return err
			}
			vs, err := slab(v4, bh, d.kvSeq, d.headDim)
			if err != nil {
				return err
			}
			scores, err := slab(scores4, bh, d.qSeq, d.kvSeq)
			if err != nil {
				return err
			}
			probs, err := slab(probs4, bh, d.qSeq, d.kvSeq)
			if err != nil {
				return err
			}
			ctxOut, err := slab(ctx4, bh, d.qSeq, d.headDim)
			if err != nil {
				return err
			}

			if err := be.MatMul(scores, qs, ks, false, true); err != nil {
				return err
			}
			if err := be.Scale(scores, scores, scale); err != nil {
				return err
			}
			if a.causal {
				if err := be.CausalMask(scores, scores); err != nil {
					return err
				}
			}
			if err := be.Softmax(probs, scores); err != nil {
				return err
			}

			weights := probs
			if a.dropout > 0 {
				mask, err := slab(mask4, bh, d.qSeq, d.kvSeq)
				if err != nil {
					return err
				}
				fillDropoutMask(mask.AsFloat32(), a.dropout, a.seed+int64(bh))
				dropped, err := slab(dropped4, bh, d.qSeq, d.kvSeq)
				if err != nil {
					return err
				}
				if err := be.Binary(dropped, probs, mask, tensor.BinaryMul); err != nil {
					return err
				}
				weights = dropped
			}

			return be.MatMul(ctxOut, weights, vs, false, false)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if a.splitInput {
		if err := be.Unary(out, ctx4, tensor.UnaryCopy); err != nil {
			return err
		}
	} else if err := be.MergeHeads(out, ctx4); err != nil {
		return err
	}

	ctx.Save(savedAttnProbs, probs4)
	if a.dropout > 0 {
		ctx.Save(savedAttnMask, mask4)
	}
	return nil
}

// Gradient wires the attention backward operator. All three of query,
// key and value receive gradients.
func (a *Attention) Gradient() *opforge.GradientSpec {
	return &opforge.GradientSpec{
		Op:     &attentionGrad{fwd: a},
		Inputs: []int{0, 1, 2},
	}
}

// splitInputs returns [batch, heads, seq, headDim] slab-addressable
// copies of q, k and v (or the inputs themselves when the host already
// supplies the per-head layout).
func (a *Attention) splitInputs(ctx *opforge.Context, q, k, v *tensor.RawTensor, d attnDims) (q4, k4, v4 *tensor.RawTensor, err error) {
	if a.splitInput {
		return q, k, v, nil
	}
	be := ctx.Backend()

	q4, err = ctx.Scratch(tensor.Shape{d.batch, d.heads, d.qSeq, d.headDim}, tensor.Float32)
	if err != nil {
		return nil, nil, nil, err
	}
	k4, err = ctx.Scratch(tensor.Shape{d.batch, d.heads, d.kvSeq, d.headDim}, tensor.Float32)
	if err != nil {
		return nil, nil, nil, err
	}
	v4, err = ctx.Scratch(tensor.Shape{d.batch, d.heads, d.kvSeq, d.headDim}, tensor.Float32)
	if err != nil {
		return nil, nil, nil, err
	}

	if err = be.SplitHeads(q4, q, a.heads); err != nil {
		return nil, nil, nil, err
	}
	if err = be.SplitHeads(k4, k, a.heads); err != nil {
		return nil, nil, nil, err
	}
	if err = be.SplitHeads(v4, v, a.heads); err != nil {
		return nil, nil, nil, err
	}
	return q4, k4, v4, nil
}

// slab views the bh-th contiguous [rows, cols] matrix of a
// [batch, heads, rows, cols] tensor.
func slab(t *tensor.RawTensor, bh, rows, cols int) (*tensor.RawTensor, error) {
	return t.View(bh*rows*cols, tensor.Shape{rows, cols})
}

// fillDropoutMask writes an inverted dropout mask: kept entries carry
// 1/(1-p) so the expected activation is unchanged.
func fillDropoutMask(mask []float32, p float32, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	keep := 1 / (1 - p)
	for i := range mask {
		if rng.Float32() < p {
			mask[i] = 0
		} else {
			mask[i] = keep
		}
	}
}
