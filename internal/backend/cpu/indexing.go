package cpu

import (
	"fmt"

	"github.com/opforge-ml/opforge/internal/opforge"
	"github.com/opforge-ml/opforge/internal/tensor"
)

// readIndices flattens an integer index tensor into []int, rejecting
// non-integral dtypes.
func readIndices(op string, indices *tensor.RawTensor) ([]int, error) {
	switch indices.DType() {
	case tensor.Int32:
		raw := indices.AsInt32()
		out := make([]int, len(raw))
		for i, v := range raw {
			out[i] = int(v)
		}
		return out, nil
	case tensor.Int64:
		raw := indices.AsInt64()
		out := make([]int, len(raw))
		for i, v := range raw {
			out[i] = int(v)
		}
		return out, nil
	default:
		return nil, opforge.Shapef(op, "index dtype %s is not integral", indices.DType())
	}
}

// GatherRows copies table rows selected by indices: dst row i =
// table[indices[i]]. Every index is validated up front so an
// out-of-range index aborts before any output byte is written. Rows are
// copied as raw bytes, so float16 tables work unmodified.
func (cpu *Backend) GatherRows(dst, table, indices *tensor.RawTensor) error {
	if table.Shape().Rank() != 2 {
		return opforge.Shapef("gather_rows", "table shape %s, want [vocab dim]", table.Shape())
	}
	vocab, dim := table.Shape()[0], table.Shape()[1]

	idx, err := readIndices("gather_rows", indices)
	if err != nil {
		return err
	}
	if dst.NumElements() != len(idx)*dim || dst.DType() != table.DType() {
		return opforge.Shapef("gather_rows", "dst %s does not hold %d rows of %s",
			dst.Desc(), len(idx), table.Desc())
	}

	// Validate all indices before the first write: no partial output.
	for i, v := range idx {
		if v < 0 || v >= vocab {
			return fmt.Errorf("%w: index %d at position %d, table has %d rows",
				opforge.ErrIndexOutOfRange, v, i, vocab)
		}
	}

	rowBytes := dim * table.DType().Size()
	src := table.Data()
	out := dst.Data()
	for i, v := range idx {
		copy(out[i*rowBytes:(i+1)*rowBytes], src[v*rowBytes:(v+1)*rowBytes])
	}
	return nil
}

// ScatterAddRows accumulates src rows into dst rows selected by indices:
// dst[indices[i]] += src[i]. Duplicate indices accumulate; this is the
// defining correctness property of an embedding gradient. Runs
// sequentially so accumulation is deterministic.
func (cpu *Backend) ScatterAddRows(dst, src, indices *tensor.RawTensor) error {
	if dst.Shape().Rank() != 2 {
		return opforge.Shapef("scatter_add_rows", "dst shape %s, want [vocab dim]", dst.Shape())
	}
	vocab, dim := dst.Shape()[0], dst.Shape()[1]

	idx, err := readIndices("scatter_add_rows", indices)
	if err != nil {
		return err
	}
	if src.NumElements() != len(idx)*dim {
		return opforge.Shapef("scatter_add_rows", "src %s does not hold %d rows of width %d",
			src.Desc(), len(idx), dim)
	}
	if dst.DType() != tensor.Float32 || src.DType() != tensor.Float32 {
		return opforge.Shapef("scatter_add_rows", "only float32 accumulation supported, got %s += %s",
			dst.DType(), src.DType())
	}

	for i, v := range idx {
		if v < 0 || v >= vocab {
			return fmt.Errorf("%w: index %d at position %d, table has %d rows",
				opforge.ErrIndexOutOfRange, v, i, vocab)
		}
	}

	in := src.AsFloat32()
	out := dst.AsFloat32()
	for i, v := range idx {
		srcOff := i * dim
		dstOff := v * dim
		for j := 0; j < dim; j++ {
			out[dstOff+j] += in[srcOff+j]
		}
	}
	return nil
}
