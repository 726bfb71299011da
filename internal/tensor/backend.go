package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// The op surface is intentionally small: it is the set of operations a
// transformer forward/backward pass and the mask machinery need, nothing more.
//
// Implementations:
//   - CPU: pure Go with gonum BLAS matmul
//   - autodiff.AutodiffBackend: decorator recording ops for backprop/tracing
type Backend interface {
	// Element-wise binary operations (NumPy-style broadcasting)
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Matrix operations
	MatMul(a, b *RawTensor) *RawTensor

	// BatchMatMul performs batched matrix multiplication for 3D/4D tensors.
	// For 3D: [B, M, K] @ [B, K, N] -> [B, M, N]
	// For 4D: [B, H, M, K] @ [B, H, K, N] -> [B, H, M, N]
	BatchMatMul(a, b *RawTensor) *RawTensor

	// Scalar operations (element-wise with scalar)
	MulScalar(x *RawTensor, scalar float32) *RawTensor
	AddScalar(x *RawTensor, scalar float32) *RawTensor

	// Activation functions
	Softmax(x *RawTensor, dim int) *RawTensor // softmax along dimension

	// Reduction operations
	Sum(x *RawTensor) *RawTensor // total sum (scalar result)

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
