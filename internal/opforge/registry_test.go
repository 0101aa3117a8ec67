package opforge

import (
	"errors"
	"sync"
	"testing"

	"github.com/opforge-ml/opforge/internal/tensor"
)

// nopOperator is a minimal operator for registry tests.
type nopOperator struct{}

func (nopOperator) InferShapes(inputs []tensor.Desc) ([]tensor.Desc, error) { return inputs, nil }
func (nopOperator) Forward(*Context) error                                  { return nil }
func (nopOperator) Gradient() *GradientSpec                                 { return nil }

func nopFactory(*OperatorDescriptor) (Operator, error) {
	return nopOperator{}, nil
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("test", "Nop", 1, nopFactory); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	op, err := r.Resolve(NewDescriptor("test", "Nop", 1, nil))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if op == nil {
		t.Fatal("Resolve returned nil operator")
	}
}

func TestRegistryDuplicate(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("test", "Nop", 1, nopFactory); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	err := r.Register("test", "Nop", 1, nopFactory)
	if !errors.Is(err, ErrDuplicateRegistration) {
		t.Errorf("duplicate registration: got %v, want ErrDuplicateRegistration", err)
	}

	// The original registration must survive the rejected duplicate.
	if _, err := r.Lookup("test", "Nop", 1); err != nil {
		t.Errorf("original registration lost after duplicate: %v", err)
	}
}

func TestRegistryUnknownOperator(t *testing.T) {
	r := NewRegistry()

	_, err := r.Lookup("test", "Missing", 1)
	if !errors.Is(err, ErrUnknownOperator) {
		t.Errorf("unknown lookup: got %v, want ErrUnknownOperator", err)
	}
}

func TestRegistryVersionMismatch(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("test", "Nop", 1, nopFactory); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, err := r.Lookup("test", "Nop", 2)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("version lookup: got %v, want ErrVersionMismatch", err)
	}
	// A version mismatch still matches the generic unknown check only via
	// its own sentinel.
	if errors.Is(err, ErrUnknownOperator) {
		t.Error("version mismatch should not match ErrUnknownOperator")
	}
}

func TestRegistryMultipleVersions(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("test", "Nop", 1, nopFactory); err != nil {
		t.Fatalf("Register v1 failed: %v", err)
	}
	if err := r.Register("test", "Nop", 2, nopFactory); err != nil {
		t.Fatalf("Register v2 failed: %v", err)
	}

	for _, v := range []int{1, 2} {
		if _, err := r.Lookup("test", "Nop", v); err != nil {
			t.Errorf("Lookup v%d failed: %v", v, err)
		}
	}
}

func TestRegistryNilFactory(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("test", "Nop", 1, nil); err == nil {
		t.Error("expected error for nil factory")
	}
}

func TestRegistryOperators(t *testing.T) {
	r := NewRegistry()

	_ = r.Register("b", "Second", 1, nopFactory)
	_ = r.Register("a", "First", 1, nopFactory)

	ops := r.Operators()
	if len(ops) != 2 {
		t.Fatalf("expected 2 operators, got %d", len(ops))
	}
	if ops[0] != "a.First:1" || ops[1] != "b.Second:1" {
		t.Errorf("expected sorted names, got %v", ops)
	}
}

// TestRegistryConcurrentRegistration races registrations of the same
// triple: exactly one wins, the rest report the duplicate.
func TestRegistryConcurrentRegistration(t *testing.T) {
	r := NewRegistry()

	const goroutines = 16
	var wg sync.WaitGroup
	errs := make([]error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = r.Register("test", "Raced", 1, nopFactory)
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicateRegistration):
			dup++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("expected exactly 1 successful registration, got %d", ok)
	}
	if dup != goroutines-1 {
		t.Errorf("expected %d duplicates, got %d", goroutines-1, dup)
	}
}

func TestDefaultRegistry(t *testing.T) {
	if err := Register("test.default", "Nop", 1, nopFactory); err != nil {
		t.Fatalf("Register into default failed: %v", err)
	}

	op, err := Resolve(NewDescriptor("test.default", "Nop", 1, nil))
	if err != nil {
		t.Fatalf("Resolve from default failed: %v", err)
	}
	if op == nil {
		t.Fatal("Resolve returned nil operator")
	}
}
