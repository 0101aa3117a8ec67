// Copyright 2025 The OpForge Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package ops provides the public API for the OpForge operator extension
// core: the operator contract, execution context, operator registry, and
// the four builtin fused operators (Attention, EmbeddingGather, Detach,
// Gelu).
//
// A host runtime resolves an operator from a descriptor, sizes output
// buffers via InferShapes, then runs Forward with a Context bound to real
// buffers. For training, Gradient() returns the backward wiring and the
// gradient operator runs against a context derived from the forward one.
//
// Example:
//
//	ops.RegisterDefaults()
//	desc := ops.NewDescriptor(ops.Domain, ops.NameGelu, ops.Version, nil)
//	op, _ := ops.Resolve(desc)
//
//	outDescs, _ := op.InferShapes([]tensor.Desc{input.Desc()})
//	out, _ := tensor.NewRaw(outDescs[0].Shape(), outDescs[0].DType(), backend.Device())
//
//	ctx := ops.NewContext(backend, []*tensor.RawTensor{input}, []*tensor.RawTensor{out})
//	defer ctx.Close()
//	err := op.Forward(ctx)
package ops

import (
	"github.com/opforge-ml/opforge/internal/opforge"
	"github.com/opforge-ml/opforge/internal/ops"
	"github.com/opforge-ml/opforge/internal/tensor"
)

// Core contract types

// Operator is the contract every custom operator implements.
type Operator = opforge.Operator

// GradientSpec wires an operator's backward pass.
type GradientSpec = opforge.GradientSpec

// Factory constructs an operator instance from its descriptor.
type Factory = opforge.Factory

// Context is the per-invocation handle an operator executes against.
type Context = opforge.Context

// NewContext binds a backend and buffers for one operator invocation.
func NewContext(backend tensor.Backend, inputs, outputs []*tensor.RawTensor) *Context {
	return opforge.NewContext(backend, inputs, outputs)
}

// OperatorDescriptor identifies an operator and carries its attributes.
type OperatorDescriptor = opforge.OperatorDescriptor

// NewDescriptor creates an operator descriptor. The attribute map is
// copied; descriptors are immutable after construction.
func NewDescriptor(domain, name string, version int, attrs map[string]any) *OperatorDescriptor {
	return opforge.NewDescriptor(domain, name, version, attrs)
}

// Registry maps a domain/name/version triple to an operator factory.
type Registry = opforge.Registry

// NewRegistry creates an empty operator registry.
func NewRegistry() *Registry {
	return opforge.NewRegistry()
}

// Default returns the process-wide registry.
func Default() *Registry {
	return opforge.Default()
}

// Register adds a factory to the process-wide registry.
func Register(domain, name string, version int, factory Factory) error {
	return opforge.Register(domain, name, version, factory)
}

// Resolve constructs an operator from the process-wide registry.
func Resolve(desc *OperatorDescriptor) (Operator, error) {
	return opforge.Resolve(desc)
}

// ZeroGradient fills grad with zeros. Hosts use it for inputs whose
// producing operator blocks gradient flow (GradientSpec == nil).
func ZeroGradient(backend tensor.Backend, grad *tensor.RawTensor) error {
	return opforge.ZeroGradient(backend, grad)
}

// Error sentinels

var (
	ErrDuplicateRegistration = opforge.ErrDuplicateRegistration
	ErrUnknownOperator       = opforge.ErrUnknownOperator
	ErrVersionMismatch       = opforge.ErrVersionMismatch
	ErrShapeMismatch         = opforge.ErrShapeMismatch
	ErrIndexOutOfRange       = opforge.ErrIndexOutOfRange
	ErrAllocationFailure     = opforge.ErrAllocationFailure
)

// Builtin operators

// Domain is the operator-set domain the builtins register under.
const Domain = ops.Domain

// Builtin operator names.
const (
	NameAttention       = ops.NameAttention
	NameEmbeddingGather = ops.NameEmbeddingGather
	NameDetach          = ops.NameDetach
	NameGelu            = ops.NameGelu
)

// Version is the current version of every builtin operator.
const Version = ops.Version

// RegisterBuiltins registers the builtin operators into r.
func RegisterBuiltins(r *Registry) error {
	return ops.RegisterBuiltins(r)
}

// RegisterDefaults registers the builtins into the process-wide registry.
func RegisterDefaults() error {
	return ops.RegisterDefaults()
}

// NewAttention constructs the fused multi-head attention operator.
func NewAttention(desc *OperatorDescriptor) (Operator, error) {
	return ops.NewAttention(desc)
}

// NewEmbeddingGather constructs the embedding row-gather operator.
func NewEmbeddingGather(desc *OperatorDescriptor) (Operator, error) {
	return ops.NewEmbeddingGather(desc)
}

// NewDetach constructs the gradient-blocking identity operator.
func NewDetach(desc *OperatorDescriptor) (Operator, error) {
	return ops.NewDetach(desc)
}

// NewGelu constructs the GELU activation operator.
func NewGelu(desc *OperatorDescriptor) (Operator, error) {
	return ops.NewGelu(desc)
}
