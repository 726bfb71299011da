package ops

import "github.com/born-ml/prune/internal/tensor"

// MatMulOp represents a matrix multiplication operation: output = a @ b.
//
// Backward pass:
//   - d(A@B)/dA = outputGrad @ B^T
//   - d(A@B)/dB = A^T @ outputGrad
type MatMulOp struct {
	inputs []*tensor.RawTensor // [a, b]
	output *tensor.RawTensor   // a @ b
}

// NewMatMulOp creates a new MatMulOp.
func NewMatMulOp(a, b, output *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{
		inputs: []*tensor.RawTensor{a, b},
		output: output,
	}
}

// Backward computes input gradients for matrix multiplication.
func (op *MatMulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]

	// grad_a = outputGrad @ b^T
	gradA := backend.MatMul(outputGrad, backend.Transpose(b, 1, 0))

	// grad_b = a^T @ outputGrad
	gradB := backend.MatMul(backend.Transpose(a, 1, 0), outputGrad)

	return []*tensor.RawTensor{gradA, gradB}
}

// Inputs returns the input tensors [a, b].
func (op *MatMulOp) Inputs() []*tensor.RawTensor { return op.inputs }

// Output returns the output tensor a @ b.
func (op *MatMulOp) Output() *tensor.RawTensor { return op.output }

// Name returns the operation kind.
func (op *MatMulOp) Name() string { return "matmul" }

// BatchMatMulOp represents batched matrix multiplication over 3D/4D tensors.
//
// Backward pass mirrors MatMulOp per batch element:
//   - grad_a = outputGrad @ b^T (batched, transposing the last two dims)
//   - grad_b = a^T @ outputGrad (batched)
type BatchMatMulOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewBatchMatMulOp creates a new BatchMatMulOp.
func NewBatchMatMulOp(a, b, output *tensor.RawTensor) *BatchMatMulOp {
	return &BatchMatMulOp{
		inputs: []*tensor.RawTensor{a, b},
		output: output,
	}
}

// Backward computes input gradients for batched matrix multiplication.
func (op *BatchMatMulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]

	gradA := backend.BatchMatMul(outputGrad, transposeLastTwo(b, backend))
	gradB := backend.BatchMatMul(transposeLastTwo(a, backend), outputGrad)

	return []*tensor.RawTensor{gradA, gradB}
}

// transposeLastTwo swaps the last two dimensions of a 3D/4D tensor.
func transposeLastTwo(t *tensor.RawTensor, backend tensor.Backend) *tensor.RawTensor {
	rank := len(t.Shape())
	axes := make([]int, rank)
	for i := range axes {
		axes[i] = i
	}
	axes[rank-2], axes[rank-1] = axes[rank-1], axes[rank-2]
	return backend.Transpose(t, axes...)
}

// Inputs returns the input tensors [a, b].
func (op *BatchMatMulOp) Inputs() []*tensor.RawTensor { return op.inputs }

// Output returns the output tensor.
func (op *BatchMatMulOp) Output() *tensor.RawTensor { return op.output }

// Name returns the operation kind.
func (op *BatchMatMulOp) Name() string { return "batchmatmul" }
