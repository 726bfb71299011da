package ops

import "github.com/born-ml/prune/internal/tensor"

// SoftmaxOp represents the softmax operation along the last dimension.
//
// Backward uses the simplified row-wise formula:
//
//	∂L/∂x_j = softmax_j * (∂L/∂softmax_j - Σ_i (∂L/∂softmax_i * softmax_i))
//
// Rows are the flattened leading dimensions, so any rank works as long as
// softmax was taken over the last dimension (the attention-score case).
type SoftmaxOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor // cached softmax output for backward
}

// NewSoftmaxOp creates a new softmax operation.
func NewSoftmaxOp(input, output *tensor.RawTensor) *SoftmaxOp {
	return &SoftmaxOp{input: input, output: output}
}

// Backward computes the gradient with respect to the input.
func (op *SoftmaxOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	shape := op.input.Shape()
	width := shape[len(shape)-1]

	inputGrad, err := tensor.NewRaw(shape, op.input.DType(), op.input.Device())
	if err != nil {
		panic(err)
	}

	soft := op.output.AsFloat32()
	outGrad := outputGrad.AsFloat32()
	inGrad := inputGrad.AsFloat32()

	for row := 0; row < len(soft); row += width {
		dot := float32(0)
		for i := row; i < row+width; i++ {
			dot += outGrad[i] * soft[i]
		}
		for i := row; i < row+width; i++ {
			inGrad[i] = soft[i] * (outGrad[i] - dot)
		}
	}

	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the input tensors.
func (op *SoftmaxOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the output tensor.
func (op *SoftmaxOp) Output() *tensor.RawTensor { return op.output }

// Name returns the operation kind.
func (op *SoftmaxOp) Name() string { return "softmax" }
