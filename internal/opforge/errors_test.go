package opforge

import (
	"errors"
	"strings"
	"testing"

	"github.com/opforge-ml/opforge/internal/tensor"
)

func TestShapeErrorMatchesSentinel(t *testing.T) {
	err := Shapef("Attention", "want 3 inputs, got %d", 2)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Error("Shapef result does not match ErrShapeMismatch")
	}

	err = ShapeInputf("Gelu", 0, tensor.Shape{2, 3}, "dtype %s", tensor.Int32)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Error("ShapeInputf result does not match ErrShapeMismatch")
	}
}

func TestShapeErrorMessage(t *testing.T) {
	err := ShapeInputf("Attention", 1, tensor.Shape{4, 8}, "want rank 3")
	msg := err.Error()

	for _, part := range []string{"Attention", "input 1", "[4 8]", "want rank 3"} {
		if !strings.Contains(msg, part) {
			t.Errorf("message %q missing %q", msg, part)
		}
	}
}

func TestShapeErrorWithoutInput(t *testing.T) {
	err := Shapef("Detach", "want 1 input, got 2")
	msg := err.Error()
	if strings.Contains(msg, "input -1") {
		t.Errorf("message %q leaks the input placeholder", msg)
	}
	if !strings.Contains(msg, "Detach") {
		t.Errorf("message %q missing operator name", msg)
	}
}
