package ops

import "github.com/born-ml/prune/internal/tensor"

// ReshapeOp represents a reshape operation.
//
// Backward: reshape the output gradient back to the input shape.
type ReshapeOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewReshapeOp creates a new ReshapeOp.
func NewReshapeOp(input, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{input: input, output: output}
}

// Backward reshapes the output gradient to the input's shape.
func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(outputGrad, op.input.Shape())}
}

// Inputs returns the input tensors.
func (op *ReshapeOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the output tensor.
func (op *ReshapeOp) Output() *tensor.RawTensor { return op.output }

// Name returns the operation kind.
func (op *ReshapeOp) Name() string { return "reshape" }

// TransposeOp represents a transpose operation.
//
// Backward: transpose the output gradient with the inverse permutation.
type TransposeOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	axes   []int
}

// NewTransposeOp creates a new TransposeOp.
func NewTransposeOp(input, output *tensor.RawTensor, axes []int) *TransposeOp {
	return &TransposeOp{input: input, output: output, axes: axes}
}

// Backward computes the input gradient for transpose.
func (op *TransposeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inverse := make([]int, len(op.axes))
	for i, ax := range op.axes {
		inverse[ax] = i
	}
	return []*tensor.RawTensor{backend.Transpose(outputGrad, inverse...)}
}

// Inputs returns the input tensors.
func (op *TransposeOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the output tensor.
func (op *TransposeOp) Output() *tensor.RawTensor { return op.output }

// Name returns the operation kind.
func (op *TransposeOp) Name() string { return "transpose" }
