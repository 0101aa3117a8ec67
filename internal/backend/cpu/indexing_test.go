package cpu

import (
	"errors"
	"testing"

	"github.com/opforge-ml/opforge/internal/opforge"
	"github.com/opforge-ml/opforge/internal/tensor"
)

func TestGatherRows(t *testing.T) {
	b := New()

	table := newF32(t, tensor.Shape{3, 2}, []float32{
		10, 11,
		20, 21,
		30, 31,
	})
	indices := newI32(t, tensor.Shape{3}, []int32{2, 0, 2})
	dst := newF32(t, tensor.Shape{3, 2}, nil)

	if err := b.GatherRows(dst, table, indices); err != nil {
		t.Fatalf("GatherRows failed: %v", err)
	}
	assertF32(t, dst.AsFloat32(), []float32{30, 31, 10, 11, 30, 31}, 0)
}

func TestGatherRowsInt64Indices(t *testing.T) {
	b := New()

	table := newF32(t, tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
	indices, err := tensor.NewRaw(tensor.Shape{2}, tensor.Int64, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}
	copy(indices.AsInt64(), []int64{1, 0})
	dst := newF32(t, tensor.Shape{2, 2}, nil)

	if err := b.GatherRows(dst, table, indices); err != nil {
		t.Fatalf("GatherRows failed: %v", err)
	}
	assertF32(t, dst.AsFloat32(), []float32{3, 4, 1, 2}, 0)
}

// TestGatherRowsOutOfRange checks the all-or-nothing contract: a bad
// index in the middle leaves the output untouched.
func TestGatherRowsOutOfRange(t *testing.T) {
	b := New()

	table := newF32(t, tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
	indices := newI32(t, tensor.Shape{3}, []int32{0, 5, 1})
	dst := newF32(t, tensor.Shape{3, 2}, []float32{-1, -1, -1, -1, -1, -1})

	err := b.GatherRows(dst, table, indices)
	if !errors.Is(err, opforge.ErrIndexOutOfRange) {
		t.Fatalf("got %v, want ErrIndexOutOfRange", err)
	}

	// No partial output: every element still carries the sentinel.
	for i, v := range dst.AsFloat32() {
		if v != -1 {
			t.Fatalf("element %d was written (%v) despite the failed gather", i, v)
		}
	}
}

func TestGatherRowsNegativeIndex(t *testing.T) {
	b := New()

	table := newF32(t, tensor.Shape{2, 2}, nil)
	indices := newI32(t, tensor.Shape{1}, []int32{-1})
	dst := newF32(t, tensor.Shape{1, 2}, nil)

	if err := b.GatherRows(dst, table, indices); !errors.Is(err, opforge.ErrIndexOutOfRange) {
		t.Errorf("got %v, want ErrIndexOutOfRange", err)
	}
}

func TestGatherRowsRejectsFloatIndices(t *testing.T) {
	b := New()

	table := newF32(t, tensor.Shape{2, 2}, nil)
	indices := newF32(t, tensor.Shape{1}, []float32{0})
	dst := newF32(t, tensor.Shape{1, 2}, nil)

	if err := b.GatherRows(dst, table, indices); err == nil {
		t.Error("expected error for float index tensor")
	}
}

// TestGatherRowsFloat16 checks gather moves raw bytes, so half-precision
// tables work.
func TestGatherRowsFloat16(t *testing.T) {
	b := New()

	table, err := tensor.NewRaw(tensor.Shape{2, 2}, tensor.Float16, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}
	for i, v := range []float32{1.5, 2.5, 3.5, 4.5} {
		table.AsFloat16()[i] = tensor.F32ToF16(v)
	}
	indices := newI32(t, tensor.Shape{1}, []int32{1})
	dst, err := tensor.NewRaw(tensor.Shape{1, 2}, tensor.Float16, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}

	if err := b.GatherRows(dst, table, indices); err != nil {
		t.Fatalf("GatherRows failed: %v", err)
	}
	if got := tensor.F16ToF32(dst.AsFloat16()[0]); got != 3.5 {
		t.Errorf("got %v, want 3.5", got)
	}
	if got := tensor.F16ToF32(dst.AsFloat16()[1]); got != 4.5 {
		t.Errorf("got %v, want 4.5", got)
	}
}

// TestScatterAddRowsAccumulates checks the defining property of the
// embedding gradient: duplicate indices add, never overwrite.
func TestScatterAddRowsAccumulates(t *testing.T) {
	b := New()

	dst := newF32(t, tensor.Shape{3, 2}, nil)
	src := newF32(t, tensor.Shape{3, 2}, []float32{
		1, 1,
		2, 2,
		10, 10,
	})
	indices := newI32(t, tensor.Shape{3}, []int32{1, 1, 0})

	if err := b.ScatterAddRows(dst, src, indices); err != nil {
		t.Fatalf("ScatterAddRows failed: %v", err)
	}

	assertF32(t, dst.AsFloat32(), []float32{
		10, 10,
		3, 3,
		0, 0,
	}, 0)
}

func TestScatterAddRowsOutOfRange(t *testing.T) {
	b := New()

	dst := newF32(t, tensor.Shape{2, 2}, nil)
	src := newF32(t, tensor.Shape{1, 2}, []float32{1, 1})
	indices := newI32(t, tensor.Shape{1}, []int32{2})

	if err := b.ScatterAddRows(dst, src, indices); !errors.Is(err, opforge.ErrIndexOutOfRange) {
		t.Errorf("got %v, want ErrIndexOutOfRange", err)
	}
}
