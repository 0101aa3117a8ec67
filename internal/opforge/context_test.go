package opforge_test

import (
	"errors"
	"testing"

	"github.com/opforge-ml/opforge/internal/backend/cpu"
	"github.com/opforge-ml/opforge/internal/opforge"
	"github.com/opforge-ml/opforge/internal/tensor"
)

func TestContextBindings(t *testing.T) {
	be := cpu.New()

	in, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, be.Device())
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}
	out, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, be.Device())
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}

	ctx := opforge.NewContext(be, []*tensor.RawTensor{in}, []*tensor.RawTensor{out})

	if ctx.NumInputs() != 1 || ctx.NumOutputs() != 1 {
		t.Fatalf("got %d inputs, %d outputs", ctx.NumInputs(), ctx.NumOutputs())
	}
	if ctx.Input(0) != in {
		t.Error("Input(0) mismatch")
	}
	if ctx.Output(0) != out {
		t.Error("Output(0) mismatch")
	}
	if ctx.Backend() != tensor.Backend(be) {
		t.Error("Backend mismatch")
	}
}

func TestContextScratchRelease(t *testing.T) {
	be := cpu.New()
	alloc := be.Allocator().(*cpu.Allocator)
	ctx := opforge.NewContext(be, nil, nil)

	if _, err := ctx.Scratch(tensor.Shape{16, 16}, tensor.Float32); err != nil {
		t.Fatalf("Scratch failed: %v", err)
	}
	if _, err := ctx.Scratch(tensor.Shape{8}, tensor.Float32); err != nil {
		t.Fatalf("Scratch failed: %v", err)
	}
	if alloc.OutstandingBytes() == 0 {
		t.Fatal("expected outstanding scratch bytes")
	}

	ctx.ReleaseScratch()
	if got := alloc.OutstandingBytes(); got != 0 {
		t.Errorf("OutstandingBytes = %d after release, want 0", got)
	}
}

// TestContextSaveSurvivesRelease checks a saved tensor outlives the
// scratch scope and is freed only by Close.
func TestContextSaveSurvivesRelease(t *testing.T) {
	be := cpu.New()
	alloc := be.Allocator().(*cpu.Allocator)
	ctx := opforge.NewContext(be, nil, nil)

	saved, err := ctx.Scratch(tensor.Shape{4}, tensor.Float32)
	if err != nil {
		t.Fatalf("Scratch failed: %v", err)
	}
	saved.AsFloat32()[0] = 42
	ctx.Save("state", saved)

	ctx.ReleaseScratch()

	got := ctx.Saved("state")
	if got == nil {
		t.Fatal("Saved returned nil after ReleaseScratch")
	}
	if got.AsFloat32()[0] != 42 {
		t.Errorf("saved value = %v, want 42", got.AsFloat32()[0])
	}

	ctx.Close()
	if got := alloc.OutstandingBytes(); got != 0 {
		t.Errorf("OutstandingBytes = %d after Close, want 0", got)
	}
}

// TestContextBackwardSharesSaved checks a derived backward context sees
// the forward context's saved state.
func TestContextBackwardSharesSaved(t *testing.T) {
	be := cpu.New()
	ctx := opforge.NewContext(be, nil, nil)

	saved, err := ctx.Scratch(tensor.Shape{2}, tensor.Float32)
	if err != nil {
		t.Fatalf("Scratch failed: %v", err)
	}
	ctx.Save("probs", saved)
	ctx.ReleaseScratch()

	back := ctx.Backward(nil, nil)
	if back.Saved("probs") != saved {
		t.Error("backward context does not share saved state")
	}
	if back.Saved("missing") != nil {
		t.Error("Saved(missing) should be nil")
	}
}

func TestContextScratchAllocationFailure(t *testing.T) {
	be := cpu.NewWithScratchLimit(64)
	ctx := opforge.NewContext(be, nil, nil)
	defer ctx.ReleaseScratch()

	_, err := ctx.Scratch(tensor.Shape{1024, 1024}, tensor.Float32)
	if !errors.Is(err, opforge.ErrAllocationFailure) {
		t.Errorf("oversized scratch: got %v, want ErrAllocationFailure", err)
	}
}

func TestContextDiagnostics(t *testing.T) {
	ctx := opforge.NewContext(cpu.New(), nil, nil)

	if len(ctx.Diagnostics()) != 0 {
		t.Fatal("fresh context has diagnostics")
	}

	ctx.Diagf("overflow in %s", "scores")
	diags := ctx.Diagnostics()
	if len(diags) != 1 || diags[0] != "overflow in scores" {
		t.Errorf("Diagnostics = %v", diags)
	}
}
