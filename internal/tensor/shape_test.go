package tensor

import "testing"

func TestShapeNumElements(t *testing.T) {
	tests := []struct {
		shape Shape
		want  int
	}{
		{Shape{}, 1},
		{Shape{5}, 5},
		{Shape{2, 3}, 6},
		{Shape{2, 3, 4}, 24},
		{Shape{2, 0, 4}, 0},
	}
	for _, tt := range tests {
		if got := tt.shape.NumElements(); got != tt.want {
			t.Errorf("%v.NumElements() = %d, want %d", tt.shape, got, tt.want)
		}
	}
}

func TestShapeValidate(t *testing.T) {
	if err := (Shape{2, 3}).Validate(); err != nil {
		t.Errorf("valid shape rejected: %v", err)
	}
	if err := (Shape{2, 0}).Validate(); err != nil {
		t.Errorf("zero dimension rejected: %v", err)
	}
	if err := (Shape{2, -1}).Validate(); err == nil {
		t.Error("negative dimension accepted")
	}
}

func TestShapeEqualAndClone(t *testing.T) {
	s := Shape{2, 3, 4}
	c := s.Clone()

	if !s.Equal(c) {
		t.Error("clone not equal to original")
	}

	c[0] = 9
	if s[0] != 2 {
		t.Error("mutating clone changed original")
	}
	if s.Equal(Shape{2, 3}) {
		t.Error("shapes of different rank compared equal")
	}
	if s.Equal(Shape{2, 3, 5}) {
		t.Error("shapes with different dims compared equal")
	}
}

func TestShapeComputeStrides(t *testing.T) {
	strides := Shape{2, 3, 4}.ComputeStrides()
	want := []int{12, 4, 1}
	for i := range want {
		if strides[i] != want[i] {
			t.Fatalf("strides = %v, want %v", strides, want)
		}
	}
}

func TestDescEqual(t *testing.T) {
	a := NewDesc(Shape{2, 3}, Float32)
	b := NewDesc(Shape{2, 3}, Float32)
	c := NewDesc(Shape{2, 3}, Float16)

	if !a.Equal(b) {
		t.Error("identical descriptors compare unequal")
	}
	if a.Equal(c) {
		t.Error("descriptors with different dtypes compare equal")
	}
}

func TestDescWithShape(t *testing.T) {
	d := NewDesc(Shape{2, 3}, Float16)
	e := d.WithShape(Shape{6})

	if !e.Shape.Equal(Shape{6}) {
		t.Errorf("WithShape shape = %v", e.Shape)
	}
	if e.DType != Float16 || e.Layout != RowMajor {
		t.Error("WithShape did not carry dtype/layout over")
	}
	if !d.Shape.Equal(Shape{2, 3}) {
		t.Error("WithShape mutated the receiver")
	}
}

func TestDataTypeProperties(t *testing.T) {
	if Float32.Size() != 4 || Float16.Size() != 2 || Int32.Size() != 4 || Int64.Size() != 8 {
		t.Error("unexpected dtype sizes")
	}
	if !Float32.IsFloat() || !Float16.IsFloat() || Int32.IsFloat() {
		t.Error("IsFloat misclassifies")
	}
	if !Int32.IsInteger() || !Int64.IsInteger() || Float32.IsInteger() {
		t.Error("IsInteger misclassifies")
	}
}

func TestF16RoundTrip(t *testing.T) {
	for _, v := range []float32{0, 1, -1, 0.5, 2048, -0.25} {
		if got := F16ToF32(F32ToF16(v)); got != v {
			t.Errorf("round trip of %v = %v", v, got)
		}
	}
}
