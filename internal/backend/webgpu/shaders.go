package webgpu

// WGSL compute shaders for the backend primitive set. Every shader binds
// inputs first, then the result, then a uniform Params block, matching
// the dispatch helper's binding order.

// workgroupSize is the default number of threads per workgroup.
const workgroupSize = 256

// matmulShader computes C = op(A) @ op(B) with transpose flags.
// op(A) is [M, K], op(B) is [K, N], C is [M, N].
const matmulShader = `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    M: u32,
    K: u32,
    N: u32,
    trans_a: u32,
    trans_b: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(16, 16)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let row = global_id.y;
    let col = global_id.x;

    if (row >= params.M || col >= params.N) {
        return;
    }

    var sum: f32 = 0.0;
    for (var k: u32 = 0u; k < params.K; k = k + 1u) {
        var a_idx = row * params.K + k;
        if (params.trans_a != 0u) {
            a_idx = k * params.M + row;
        }
        var b_idx = k * params.N + col;
        if (params.trans_b != 0u) {
            b_idx = col * params.K + k;
        }
        sum = sum + a[a_idx] * b[b_idx];
    }

    result[row * params.N + col] = sum;
}
`

// softmaxShader computes a max-shifted softmax; one thread per row.
const softmaxShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    rows: u32,
    cols: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let row = global_id.x;
    if (row >= params.rows) {
        return;
    }
    let offset = row * params.cols;

    var max_val: f32 = input[offset];
    for (var j: u32 = 1u; j < params.cols; j = j + 1u) {
        max_val = max(max_val, input[offset + j]);
    }

    var sum: f32 = 0.0;
    for (var j: u32 = 0u; j < params.cols; j = j + 1u) {
        let e = exp(input[offset + j] - max_val);
        result[offset + j] = e;
        sum = sum + e;
    }

    for (var j: u32 = 0u; j < params.cols; j = j + 1u) {
        result[offset + j] = result[offset + j] / sum;
    }
}
`

// softmaxGradShader applies softmax's Jacobian-vector product row-wise:
// result = sm * (upstream - dot(upstream, sm)).
const softmaxGradShader = `
@group(0) @binding(0) var<storage, read> sm: array<f32>;
@group(0) @binding(1) var<storage, read> upstream: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    rows: u32,
    cols: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let row = global_id.x;
    if (row >= params.rows) {
        return;
    }
    let offset = row * params.cols;

    var dot: f32 = 0.0;
    for (var j: u32 = 0u; j < params.cols; j = j + 1u) {
        dot = dot + upstream[offset + j] * sm[offset + j];
    }

    for (var j: u32 = 0u; j < params.cols; j = j + 1u) {
        result[offset + j] = sm[offset + j] * (upstream[offset + j] - dot);
    }
}
`

// causalMaskShader copies a square score matrix, setting entries above
// the main diagonal to -Inf.
const causalMaskShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    n: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(16, 16)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let row = global_id.y;
    let col = global_id.x;
    if (row >= params.n || col >= params.n) {
        return;
    }
    let idx = row * params.n + col;
    if (col > row) {
        result[idx] = bitcast<f32>(0xff800000u); // -Inf
    } else {
        result[idx] = input[idx];
    }
}
`

// scaleShader computes result = alpha * input.
const scaleShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
    alpha: f32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        result[idx] = params.alpha * input[idx];
    }
}
`

// unaryShaderTemplate expands to one kernel per unary kind; EXPR uses x.
const unaryShaderTemplate = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        let x = input[idx];
        result[idx] = EXPR;
    }
}
`

// geluExpr is the tanh-approximation GELU, matching the CPU kernel.
const geluExpr = `0.5 * x * (1.0 + tanh(0.7978845608028654 * (x + 0.044715 * x * x * x)))`

// geluGradExpr is its analytic derivative.
const geluGradExpr = `(0.5 * (1.0 + tanh(0.7978845608028654 * (x + 0.044715 * x * x * x)))` +
	` + 0.5 * x * (1.0 - tanh(0.7978845608028654 * (x + 0.044715 * x * x * x)) * tanh(0.7978845608028654 * (x + 0.044715 * x * x * x)))` +
	` * 0.7978845608028654 * (1.0 + 3.0 * 0.044715 * x * x))`

// binaryShaderTemplate expands to one kernel per binary kind; OP is the
// infix operator.
const binaryShaderTemplate = `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        result[idx] = a[idx] OP b[idx];
    }
}
`
