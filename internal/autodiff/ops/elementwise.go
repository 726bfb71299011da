package ops

import "github.com/born-ml/prune/internal/tensor"

// AddOp represents an element-wise addition: output = a + b.
//
// Backward: gradient flows unchanged to both inputs, reduced over any
// broadcast dimensions.
type AddOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewAddOp creates a new AddOp.
func NewAddOp(a, b, output *tensor.RawTensor) *AddOp {
	return &AddOp{inputs: []*tensor.RawTensor{a, b}, output: output}
}

// Backward computes input gradients for addition.
func (op *AddOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(outputGrad, op.inputs[0].Shape()),
		reduceBroadcast(outputGrad, op.inputs[1].Shape()),
	}
}

// Inputs returns the input tensors [a, b].
func (op *AddOp) Inputs() []*tensor.RawTensor { return op.inputs }

// Output returns the output tensor a + b.
func (op *AddOp) Output() *tensor.RawTensor { return op.output }

// Name returns the operation kind.
func (op *AddOp) Name() string { return "add" }

// SubOp represents an element-wise subtraction: output = a - b.
type SubOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewSubOp creates a new SubOp.
func NewSubOp(a, b, output *tensor.RawTensor) *SubOp {
	return &SubOp{inputs: []*tensor.RawTensor{a, b}, output: output}
}

// Backward computes input gradients for subtraction: d(a-b)/da = 1, d(a-b)/db = -1.
func (op *SubOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	negGrad := backend.MulScalar(outputGrad, -1)
	return []*tensor.RawTensor{
		reduceBroadcast(outputGrad, op.inputs[0].Shape()),
		reduceBroadcast(negGrad, op.inputs[1].Shape()),
	}
}

// Inputs returns the input tensors [a, b].
func (op *SubOp) Inputs() []*tensor.RawTensor { return op.inputs }

// Output returns the output tensor a - b.
func (op *SubOp) Output() *tensor.RawTensor { return op.output }

// Name returns the operation kind.
func (op *SubOp) Name() string { return "sub" }

// MulOp represents an element-wise multiplication: output = a * b.
//
// Backward: d(a*b)/da = b, d(a*b)/db = a.
type MulOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewMulOp creates a new MulOp.
func NewMulOp(a, b, output *tensor.RawTensor) *MulOp {
	return &MulOp{inputs: []*tensor.RawTensor{a, b}, output: output}
}

// Backward computes input gradients for multiplication.
func (op *MulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		reduceBroadcast(backend.Mul(outputGrad, b), a.Shape()),
		reduceBroadcast(backend.Mul(outputGrad, a), b.Shape()),
	}
}

// Inputs returns the input tensors [a, b].
func (op *MulOp) Inputs() []*tensor.RawTensor { return op.inputs }

// Output returns the output tensor a * b.
func (op *MulOp) Output() *tensor.RawTensor { return op.output }

// Name returns the operation kind.
func (op *MulOp) Name() string { return "mul" }

// DivOp represents an element-wise division: output = a / b.
//
// Backward: d(a/b)/da = 1/b, d(a/b)/db = -a/b².
type DivOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewDivOp creates a new DivOp.
func NewDivOp(a, b, output *tensor.RawTensor) *DivOp {
	return &DivOp{inputs: []*tensor.RawTensor{a, b}, output: output}
}

// Backward computes input gradients for division.
func (op *DivOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]

	gradA := backend.Div(outputGrad, b)
	// grad_b = -outputGrad * a / b²
	gradB := backend.MulScalar(backend.Div(backend.Mul(outputGrad, a), backend.Mul(b, b)), -1)

	return []*tensor.RawTensor{
		reduceBroadcast(gradA, a.Shape()),
		reduceBroadcast(gradB, b.Shape()),
	}
}

// Inputs returns the input tensors [a, b].
func (op *DivOp) Inputs() []*tensor.RawTensor { return op.inputs }

// Output returns the output tensor a / b.
func (op *DivOp) Output() *tensor.RawTensor { return op.output }

// Name returns the operation kind.
func (op *DivOp) Name() string { return "div" }

// MulScalarOp represents scalar multiplication: output = x * s.
//
// Backward: d(x*s)/dx = s.
type MulScalarOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	scalar float32
}

// NewMulScalarOp creates a new MulScalarOp.
func NewMulScalarOp(x, output *tensor.RawTensor, scalar float32) *MulScalarOp {
	return &MulScalarOp{input: x, output: output, scalar: scalar}
}

// Backward computes the input gradient: outputGrad * s.
func (op *MulScalarOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(outputGrad, op.scalar)}
}

// Inputs returns the input tensors [x].
func (op *MulScalarOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the output tensor x * s.
func (op *MulScalarOp) Output() *tensor.RawTensor { return op.output }

// Name returns the operation kind.
func (op *MulScalarOp) Name() string { return "mulscalar" }

// AddScalarOp represents scalar addition: output = x + s.
//
// Backward: identity.
type AddScalarOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewAddScalarOp creates a new AddScalarOp.
func NewAddScalarOp(x, output *tensor.RawTensor) *AddScalarOp {
	return &AddScalarOp{input: x, output: output}
}

// Backward passes the output gradient through unchanged.
func (op *AddScalarOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad}
}

// Inputs returns the input tensors [x].
func (op *AddScalarOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the output tensor x + s.
func (op *AddScalarOp) Output() *tensor.RawTensor { return op.output }

// Name returns the operation kind.
func (op *AddScalarOp) Name() string { return "addscalar" }
