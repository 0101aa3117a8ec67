// Package ops implements the fused custom operators exposed to the host
// runtime: Attention, EmbeddingGather, Detach and Gelu. Each operator
// implements the opforge.Operator contract (shape inference, forward,
// gradient wiring) on top of the backend primitive set; none touches
// hardware APIs directly.
package ops
