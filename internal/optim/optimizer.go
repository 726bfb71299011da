// Package optim implements optimization algorithms for training and
// finetuning neural networks.
//
// This package provides:
//   - Optimizer interface: base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//
// Design inspired by PyTorch's torch.optim but adapted for Go with type safety.
//
// Example usage:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.01}, backend)
//
//	for epoch := range epochs {
//	    backend.Tape().StartRecording()
//	    output := model.Forward(input)
//	    loss := computeLoss(output, targets)
//	    grads := autodiff.Backward(loss, backend)
//
//	    optimizer.Step(grads)
//	    optimizer.ZeroGrad()
//	}
package optim

import (
	"github.com/born-ml/prune/internal/nn"
	"github.com/born-ml/prune/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
//
// Optimizers update model parameters based on computed gradients to
// minimize the loss function during training.
type Optimizer interface {
	// Step applies gradient updates to all parameters.
	//
	// Takes a gradient map from Backward() keyed by raw tensor identity.
	// Gradients are also attached to their parameters, so importance
	// scorers can read them after the step.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears all parameter gradients.
	//
	// This should be called before each backward pass to prevent
	// gradient accumulation from previous iterations.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// getGradient safely retrieves the gradient for a parameter.
//
// Returns nil if no gradient is found (parameter wasn't part of the
// computation graph).
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	return grads[param.Tensor().Raw()]
}
