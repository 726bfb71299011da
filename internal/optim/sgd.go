package optim

import (
	"github.com/born-ml/prune/internal/nn"
	"github.com/born-ml/prune/internal/tensor"
)

// SGD implements Stochastic Gradient Descent with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// Momentum helps accelerate SGD in relevant directions and dampens oscillations.
type SGD[B tensor.Backend] struct {
	params     []*nn.Parameter[B]
	lr         float32
	momentum   float32
	velocities map[*nn.Parameter[B]]*tensor.Tensor[float32, B]
	backend    B
}

// SGDConfig holds configuration for the SGD optimizer.
type SGDConfig struct {
	LR       float32 // Learning rate (default: 0.01)
	Momentum float32 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}

	return &SGD[B]{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B]),
		backend:    backend,
	}
}

// Step performs a single optimization step.
//
// Gradients are attached to their parameters before the update, so
// importance scorers can read them after training.
// Parameters with no gradient are skipped.
func (s *SGD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, param := range s.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		gradTensor := tensor.New[float32, B](grad, s.backend)
		param.SetGrad(gradTensor)

		if s.momentum == 0 {
			s.updateParameter(param, gradTensor)
		} else {
			s.updateParameterWithMomentum(param, gradTensor)
		}
	}
}

// updateParameter performs a plain SGD update without momentum.
func (s *SGD[B]) updateParameter(param *nn.Parameter[B], grad *tensor.Tensor[float32, B]) {
	updated := param.Tensor().Sub(grad.MulScalar(s.lr))
	copy(param.Tensor().Raw().AsFloat32(), updated.Raw().AsFloat32())
}

// updateParameterWithMomentum performs an SGD update with momentum.
func (s *SGD[B]) updateParameterWithMomentum(param *nn.Parameter[B], grad *tensor.Tensor[float32, B]) {
	velocity, exists := s.velocities[param]
	if !exists {
		velocity = tensor.Zeros[float32](param.Tensor().Shape(), s.backend)
		s.velocities[param] = velocity
	}

	// velocity = momentum * velocity + grad
	newVelocity := velocity.MulScalar(s.momentum).Add(grad)
	copy(velocity.Raw().AsFloat32(), newVelocity.Raw().AsFloat32())

	// param -= lr * velocity
	updated := param.Tensor().Sub(velocity.MulScalar(s.lr))
	copy(param.Tensor().Raw().AsFloat32(), updated.Raw().AsFloat32())
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD[B]) ZeroGrad() {
	for _, param := range s.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (s *SGD[B]) GetLR() float32 {
	return s.lr
}

// SetLR updates the learning rate.
//
// Useful for learning rate scheduling during finetuning.
func (s *SGD[B]) SetLR(lr float32) {
	s.lr = lr
}
