package cpu

import (
	"testing"

	"github.com/opforge-ml/opforge/internal/tensor"
)

func TestSplitHeads(t *testing.T) {
	b := New()

	// [1, 2, 4] with 2 heads of headDim 2. Row s carries
	// [h0d0 h0d1 h1d0 h1d1].
	src := newF32(t, tensor.Shape{1, 2, 4}, []float32{
		0, 1, 10, 11,
		2, 3, 12, 13,
	})
	dst := newF32(t, tensor.Shape{1, 2, 2, 2}, nil)

	if err := b.SplitHeads(dst, src, 2); err != nil {
		t.Fatalf("SplitHeads failed: %v", err)
	}

	// Head 0 slab then head 1 slab, each [seq, headDim] contiguous.
	want := []float32{
		0, 1, 2, 3,
		10, 11, 12, 13,
	}
	assertF32(t, dst.AsFloat32(), want, 0)
}

func TestMergeHeadsRoundTrip(t *testing.T) {
	b := New()

	src := newF32(t, tensor.Shape{2, 3, 6}, nil)
	for i := range src.AsFloat32() {
		src.AsFloat32()[i] = float32(i)
	}

	split := newF32(t, tensor.Shape{2, 3, 3, 2}, nil)
	merged := newF32(t, tensor.Shape{2, 3, 6}, nil)

	if err := b.SplitHeads(split, src, 3); err != nil {
		t.Fatalf("SplitHeads failed: %v", err)
	}
	if err := b.MergeHeads(merged, split); err != nil {
		t.Fatalf("MergeHeads failed: %v", err)
	}

	assertF32(t, merged.AsFloat32(), src.AsFloat32(), 0)
}

func TestSplitHeadsIndivisible(t *testing.T) {
	b := New()

	src := newF32(t, tensor.Shape{1, 2, 5}, nil)
	dst := newF32(t, tensor.Shape{1, 2, 2, 2}, nil)

	if err := b.SplitHeads(dst, src, 2); err == nil {
		t.Error("expected error for channels not divisible by heads")
	}
}

// TestSplitHeadsFloat16 checks the byte-run copy works for half precision.
func TestSplitHeadsFloat16(t *testing.T) {
	b := New()

	src, err := tensor.NewRaw(tensor.Shape{1, 2, 4}, tensor.Float16, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}
	for i := range src.AsFloat16() {
		src.AsFloat16()[i] = tensor.F32ToF16(float32(i))
	}

	dst, err := tensor.NewRaw(tensor.Shape{1, 2, 2, 2}, tensor.Float16, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}

	if err := b.SplitHeads(dst, src, 2); err != nil {
		t.Fatalf("SplitHeads failed: %v", err)
	}

	// Same permutation as the float32 case.
	wantOrder := []int{0, 1, 4, 5, 2, 3, 6, 7}
	for i, srcIdx := range wantOrder {
		if got := tensor.F16ToF32(dst.AsFloat16()[i]); got != float32(srcIdx) {
			t.Fatalf("element %d: got %v, want %v", i, got, float32(srcIdx))
		}
	}
}
