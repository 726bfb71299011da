// Package nn implements the neural network modules the pruning engine
// operates on:
//   - Module interface: base interface for all NN components
//   - Parameter: trainable parameters with gradient tracking
//   - Linear: fully connected layer with native weight and bias masks
//   - MultiHeadAttention: attention built from four Linear projections
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"github.com/born-ml/prune/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Modules can be composed to build complex architectures. Type parameter B
// must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	//
	// The input tensor should have the appropriate shape for this module.
	// For example, Linear expects [batch_size, in_features].
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module.
	//
	// This includes weights, biases, and any nested module parameters.
	// Returns an empty slice for modules without trainable parameters.
	Parameters() []*Parameter[B]
}
