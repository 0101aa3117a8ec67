package ops

import (
	"github.com/opforge-ml/opforge/internal/opforge"
	"github.com/opforge-ml/opforge/internal/tensor"
)

// EmbeddingGather looks up rows of an embedding table by an integer
// index tensor of any rank: output shape = indices.shape + [dim].
// Indices outside [0, vocab) are a hard error, never clamped or
// wrapped.
//
// The gradient flows only to the table (indices are non-differentiable
// by construction) and accumulates duplicate indices additively.
type EmbeddingGather struct{}

// NewEmbeddingGather constructs the operator from a descriptor.
// The operator takes no attributes; the table's dimensions come from the
// input shapes.
func NewEmbeddingGather(*opforge.OperatorDescriptor) (opforge.Operator, error) {
	return &EmbeddingGather{}, nil
}

// InferShapes checks table/index compatibility and returns the gathered
// output descriptor.
func (*EmbeddingGather) InferShapes(inputs []tensor.Desc) ([]tensor.Desc, error) {
	if len(inputs) != 2 {
		return nil, opforge.Shapef("EmbeddingGather", "want 2 inputs (table, indices), got %d", len(inputs))
	}
	table, indices := inputs[0], inputs[1]

	if table.Shape.Rank() != 2 {
		return nil, opforge.ShapeInputf("EmbeddingGather", 0, table.Shape, "want [vocab dim]")
	}
	if !table.DType.IsFloat() {
		return nil, opforge.ShapeInputf("EmbeddingGather", 0, table.Shape, "table dtype %s is not a float type", table.DType)
	}
	if !indices.DType.IsInteger() {
		return nil, opforge.ShapeInputf("EmbeddingGather", 1, indices.Shape, "index dtype %s is not integral", indices.DType)
	}

	outShape := append(indices.Shape.Clone(), table.Shape[1])
	return []tensor.Desc{table.WithShape(outShape)}, nil
}

// Forward copies the selected table rows into the output. The backend
// validates every index before writing, so an out-of-range index aborts
// with no partial output.
func (e *EmbeddingGather) Forward(ctx *opforge.Context) error {
	defer ctx.ReleaseScratch()

	if ctx.NumInputs() != 2 || ctx.NumOutputs() != 1 {
		return opforge.Shapef("EmbeddingGather", "want 2 inputs and 1 output, got %d and %d",
			ctx.NumInputs(), ctx.NumOutputs())
	}
	table, indices := ctx.Input(0), ctx.Input(1)
	out := ctx.Output(0)

	outDescs, err := e.InferShapes([]tensor.Desc{table.Desc(), indices.Desc()})
	if err != nil {
		return err
	}
	if !out.Shape().Equal(outDescs[0].Shape) {
		return opforge.Shapef("EmbeddingGather", "output shape %s, want %s", out.Shape(), outDescs[0].Shape)
	}

	return ctx.Backend().GatherRows(out, table, indices)
}

// Gradient wires the scatter-add backward operator. Only the table
// (input 0) receives a gradient.
func (e *EmbeddingGather) Gradient() *opforge.GradientSpec {
	return &opforge.GradientSpec{
		Op:     &embeddingGatherGrad{},
		Inputs: []int{0},
	}
}

// embeddingGatherGrad scatter-adds output-gradient rows into the table
// gradient. Context wiring: inputs are [outputGrad, indices, table]
// (the table supplies the gradient's dimensions), output is [tableGrad].
// Duplicate indices accumulate rather than overwrite.
type embeddingGatherGrad struct{}

// InferShapes echoes the table descriptor as the gradient output and
// validates the output gradient against the indices.
func (*embeddingGatherGrad) InferShapes(inputs []tensor.Desc) ([]tensor.Desc, error) {
	if len(inputs) != 3 {
		return nil, opforge.Shapef("EmbeddingGatherGrad", "want 3 inputs (outGrad, indices, table), got %d", len(inputs))
	}
	outGrad, indices, table := inputs[0], inputs[1], inputs[2]
	if table.Shape.Rank() != 2 {
		return nil, opforge.ShapeInputf("EmbeddingGatherGrad", 2, table.Shape, "want [vocab dim]")
	}
	if outGrad.Shape.Rank() != indices.Shape.Rank()+1 {
		return nil, opforge.ShapeInputf("EmbeddingGatherGrad", 0, outGrad.Shape,
			"rank %d does not extend index rank %d by one", outGrad.Shape.Rank(), indices.Shape.Rank())
	}
	for i := 0; i < indices.Shape.Rank(); i++ {
		if outGrad.Shape[i] != indices.Shape[i] {
			return nil, opforge.ShapeInputf("EmbeddingGatherGrad", 0, outGrad.Shape,
				"dim %d differs from index shape %s", i, indices.Shape)
		}
	}
	if outGrad.Shape[outGrad.Shape.Rank()-1] != table.Shape[1] {
		return nil, opforge.ShapeInputf("EmbeddingGatherGrad", 0, outGrad.Shape,
			"row width differs from table dim %d", table.Shape[1])
	}
	return []tensor.Desc{table}, nil
}

// Forward zeroes the table gradient, then accumulates one
// output-gradient row per index occurrence.
func (g *embeddingGatherGrad) Forward(ctx *opforge.Context) error {
	defer ctx.ReleaseScratch()

	if ctx.NumInputs() != 3 || ctx.NumOutputs() != 1 {
		return opforge.Shapef("EmbeddingGatherGrad", "want 3 inputs and 1 output, got %d and %d",
			ctx.NumInputs(), ctx.NumOutputs())
	}
	outGrad, indices, table := ctx.Input(0), ctx.Input(1), ctx.Input(2)
	tableGrad := ctx.Output(0)
	be := ctx.Backend()

	if _, err := g.InferShapes([]tensor.Desc{outGrad.Desc(), indices.Desc(), table.Desc()}); err != nil {
		return err
	}
	if !tableGrad.Shape().Equal(table.Shape()) {
		return opforge.Shapef("EmbeddingGatherGrad", "table gradient shape %s, want %s",
			tableGrad.Shape(), table.Shape())
	}
	dim := tableGrad.Shape()[1]
	n := indices.NumElements()

	rows, err := outGrad.View(0, tensor.Shape{n, dim})
	if err != nil {
		return opforge.Shapef("EmbeddingGatherGrad", "output gradient %s does not hold %d rows of width %d",
			outGrad.Shape(), n, dim)
	}

	if err := be.Zero(tableGrad); err != nil {
		return err
	}
	return be.ScatterAddRows(tableGrad, rows, indices)
}

// Gradient returns nil: the scatter-add has no second-order wiring.
func (*embeddingGatherGrad) Gradient() *opforge.GradientSpec {
	return nil
}
