// Package ops defines operation interfaces and implementations for automatic differentiation.
//
// Each operation implements the Operation interface, which provides:
//   - Forward pass: computed by the backend
//   - Backward pass: computes gradients for inputs given output gradient
//
// The recorded inputs/outputs also give the tape a second role: a dataflow
// trace of the forward pass, which the pruning engine walks to detect the
// attention Q/K/V/output projection pattern.
package ops

import "github.com/born-ml/prune/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
// Each operation records its inputs and output during the forward pass,
// and computes input gradients during the backward pass.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns a slice of gradients corresponding to each input tensor.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor

	// Name returns the operation kind (e.g. "matmul", "softmax").
	Name() string
}
