package ops

import "github.com/opforge-ml/opforge/internal/opforge"

// Domain is the operator-set domain this library registers under,
// mirroring how a plugin loader namespaces custom operators.
const Domain = "opforge.custom"

// Registered operator names.
const (
	NameAttention       = "Attention"
	NameEmbeddingGather = "EmbeddingGather"
	NameDetach          = "Detach"
	NameGelu            = "Gelu"
)

// Version is the current version of every builtin operator.
const Version = 1

// RegisterBuiltins registers the four fused operators into r. Safe to
// call from racing initialization paths: the first registration of each
// triple wins and later exact duplicates report ErrDuplicateRegistration.
func RegisterBuiltins(r *opforge.Registry) error {
	builtins := []struct {
		name    string
		factory opforge.Factory
	}{
		{NameAttention, NewAttention},
		{NameEmbeddingGather, NewEmbeddingGather},
		{NameDetach, NewDetach},
		{NameGelu, NewGelu},
	}
	for _, b := range builtins {
		if err := r.Register(Domain, b.name, Version, b.factory); err != nil {
			return err
		}
	}
	return nil
}

// RegisterDefaults registers the builtins into the process-wide registry.
func RegisterDefaults() error {
	return RegisterBuiltins(opforge.Default())
}
