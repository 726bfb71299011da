package ops

import "github.com/born-ml/prune/internal/tensor"

// SumOp reduces a tensor to its total sum.
//
// Backward: the scalar gradient broadcasts to every input element.
type SumOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSumOp creates a new SumOp.
func NewSumOp(input, output *tensor.RawTensor) *SumOp {
	return &SumOp{input: input, output: output}
}

// Backward fills an input-shaped tensor with the scalar output gradient.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	inputGrad, err := tensor.NewRaw(op.input.Shape(), op.input.DType(), op.input.Device())
	if err != nil {
		panic(err)
	}

	g := outputGrad.AsFloat32()[0]
	data := inputGrad.AsFloat32()
	for i := range data {
		data[i] = g
	}
	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the input tensors.
func (op *SumOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the output tensor.
func (op *SumOp) Output() *tensor.RawTensor { return op.output }

// Name returns the operation kind.
func (op *SumOp) Name() string { return "sum" }
