package ops

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/opforge-ml/opforge/internal/opforge"
	"github.com/opforge-ml/opforge/internal/tensor"
)

// attentionGrad computes attention's input gradients from the output
// gradient and the softmax probabilities saved during forward.
//
// Context wiring: inputs are [outputGrad, query, key, value], outputs
// are [queryGrad, keyGrad, valueGrad]. Per slab:
//
//	dV = weights^T @ dOut
//	dW = dOut @ V^T                (through the dropout mask if any)
//	dS = softmax_grad(probs, dW) * scale
//	dQ = dS @ K
//	dK = dS^T @ Q
//
// Masked positions carry probability 0, so the Jacobian-vector product
// already yields their required zero gradient.
type attentionGrad struct {
	fwd *Attention
}

// InferShapes echoes the query/key/value descriptors as gradients.
func (g *attentionGrad) InferShapes(inputs []tensor.Desc) ([]tensor.Desc, error) {
	if len(inputs) != 4 {
		return nil, opforge.Shapef("AttentionGrad", "want 4 inputs (outGrad, query, key, value), got %d", len(inputs))
	}
	if _, err := g.fwd.InferShapes(inputs[1:]); err != nil {
		return nil, err
	}
	if !inputs[0].Shape.Equal(inputs[1].Shape) {
		return nil, opforge.ShapeInputf("AttentionGrad", 0, inputs[0].Shape,
			"output gradient shape differs from query shape %s", inputs[1].Shape)
	}
	return []tensor.Desc{inputs[1], inputs[2], inputs[3]}, nil
}

// Forward runs the backward computation (a gradient operator's forward
// pass is the backward pass of its parent).
func (g *attentionGrad) Forward(ctx *opforge.Context) error {
	defer ctx.ReleaseScratch()

	if ctx.NumInputs() != 4 || ctx.NumOutputs() != 3 {
		return opforge.Shapef("AttentionGrad", "want 4 inputs and 3 outputs, got %d and %d",
			ctx.NumInputs(), ctx.NumOutputs())
	}
	dOut, q, k, v := ctx.Input(0), ctx.Input(1), ctx.Input(2), ctx.Input(3)
	dQ, dK, dV := ctx.Output(0), ctx.Output(1), ctx.Output(2)
	be := ctx.Backend()

	if _, err := g.InferShapes([]tensor.Desc{dOut.Desc(), q.Desc(), k.Desc(), v.Desc()}); err != nil {
		return err
	}

	probs4 := ctx.Saved(savedAttnProbs)
	if probs4 == nil {
		return fmt.Errorf("attention gradient: no saved softmax weights; run forward first")
	}
	mask4 := ctx.Saved(savedAttnMask)
	if g.fwd.dropout > 0 && mask4 == nil {
		return fmt.Errorf("attention gradient: no saved dropout mask; run forward first")
	}

	a := g.fwd
	d := a.dims(q.Desc(), k.Desc())
	scale := a.scaleFor(d.headDim)

	q4, k4, v4, err := a.splitInputs(ctx, q, k, v, d)
	if err != nil {
		return err
	}
	dOut4 := dOut
	if !a.splitInput {
		dOut4, err = ctx.Scratch(tensor.Shape{d.batch, d.heads, d.qSeq, d.headDim}, tensor.Float32)
		if err != nil {
			return err
		}
		if err := be.SplitHeads(dOut4, dOut, a.heads); err != nil {
			return err
		}
	}

	dQ4, err := ctx.Scratch(tensor.Shape{d.batch, d.heads, d.qSeq, d.headDim}, tensor.Float32)
	if err != nil {
		return err
	}
	dK4, err := ctx.Scratch(tensor.Shape{d.batch, d.heads, d.kvSeq, d.headDim}, tensor.Float32)
	if err != nil {
		return err
	}
	dV4, err := ctx.Scratch(tensor.Shape{d.batch, d.heads, d.kvSeq, d.headDim}, tensor.Float32)
	if err != nil {
		return err
	}
	dW4, err := ctx.Scratch(tensor.Shape{d.batch, d.heads, d.qSeq, d.kvSeq}, tensor.Float32)
	if err != nil {
		return err
	}
	dS4, err := ctx.Scratch(tensor.Shape{d.batch, d.heads, d.qSeq, d.kvSeq}, tensor.Float32)
	if err != nil {
		return err
	}
	var weights4 *tensor.RawTensor
	if a.dropout > 0 {
		weights4, err = ctx.Scratch(tensor.Shape{d.batch, d.heads, d.qSeq, d.kvSeq}, tensor.Float32)
		if err != nil {
			return err
		}
	}

	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))

	for bh := 0; bh < d.batch*d.heads; bh++ {
		eg.Go(func() error {
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
			dOs, err := slab(dOut4, bh, d.qSeq, d.headDim)
			if err != nil {
				return err
			}
			probs, err := slab(probs4, bh, d.qSeq, d.kvSeq)
			if err != nil {
				return err
			}
			dWs, err := slab(dW4, bh, d.qSeq, d.kvSeq)
			if err != nil {
				return err
			}
			dSs, err := slab(dS4, bh, d.qSeq, d.kvSeq)
			if err != nil {
				return err
			}
			dQs, err := slab(dQ4, bh, d.qSeq, d.headDim)
			if err != nil {
				return err
			}
			dKs, err := slab(dK4, bh, d.kvSeq, d.headDim)
			if err != nil {
				return err
			}
			dVs, err := slab(dV4, bh, d.kvSeq, d.headDim)
			if err != nil {
				return err
			}

			// Recover the weights that actually multiplied V in forward.
			weights := probs
			if a.dropout > 0 {
				mask, err := slab(mask4, bh, d.qSeq, d.kvSeq)
				if err != nil {
					return err
				}
				weights, err = slab(weights4, bh, d.qSeq, d.kvSeq)
				if err != nil {
					return err
				}
				if err := be.Binary(weights, probs, mask, tensor.BinaryMul); err != nil {
					return err
				}
			}

			// dV = weights^T @ dOut
			if err := be.MatMul(dVs, weights, dOs, true, false); err != nil {
				return err
			}

			// dW = dOut @ V^T, back through dropout if present.
			if err := be.MatMul(dWs, dOs, vs, false, true); err != nil {
				return err
			}
			if a.dropout > 0 {
				mask, err := slab(mask4, bh, d.qSeq, d.kvSeq)
				if err != nil {
					return err
				}
				if err := be.Binary(dWs, dWs, mask, tensor.BinaryMul); err != nil {
					return err
				}
			}

			// dS = softmax Jacobian-vector product, then the forward scale.
			if err := be.SoftmaxGrad(dSs, probs, dWs); err != nil {
				return err
			}
			if err := be.Scale(dSs, dSs, scale); err != nil {
				return err
			}

			// dQ = dS @ K, dK = dS^T @ Q
			if err := be.MatMul(dQs, dSs, ks, false, false); err != nil {
				return err
			}
			return be.MatMul(dKs, dSs, qs, true, false)
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	if a.splitInput {
		if err := be.Unary(dQ, dQ4, tensor.UnaryCopy); err != nil {
			return err
		}
		if err := be.Unary(dK, dK4, tensor.UnaryCopy); err != nil {
			return err
		}
		return be.Unary(dV, dV4, tensor.UnaryCopy)
	}
	if err := be.MergeHeads(dQ, dQ4); err != nil {
		return err
	}
	if err := be.MergeHeads(dK, dK4); err != nil {
		return err
	}
	return be.MergeHeads(dV, dV4)
}

// Gradient returns nil: second-order gradients are not provided.
func (g *attentionGrad) Gradient() *opforge.GradientSpec {
	return nil
}
