package nn

import (
	"github.com/born-ml/prune/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// Parameters are tensors that require gradient computation during training.
// They typically represent weights and biases of layers.
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[float32, B]
	grad   *tensor.Tensor[float32, B]
}

// NewParameter creates a new trainable parameter.
//
// The parameter tensor should be initialized before creating the Parameter.
// Gradient is assigned after the first backward pass.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Grad returns the gradient tensor.
//
// Returns nil if no gradient has been computed yet.
func (p *Parameter[B]) Grad() *tensor.Tensor[float32, B] {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter[B]) SetGrad(grad *tensor.Tensor[float32, B]) {
	p.grad = grad
}

// ZeroGrad clears the gradient tensor.
//
// This should be called before each training iteration to avoid
// accumulating gradients from previous iterations.
func (p *Parameter[B]) ZeroGrad() {
	p.grad = nil
}

// AssignGrads attaches gradients from a backward pass to their parameters.
//
// The grads map is keyed by raw tensor identity, as produced by the
// gradient tape. Parameters without an entry keep their current gradient.
func AssignGrads[B tensor.Backend](params []*Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor, backend B) {
	for _, p := range params {
		if g, ok := grads[p.Tensor().Raw()]; ok {
			p.SetGrad(tensor.New[float32](g, backend))
		}
	}
}
