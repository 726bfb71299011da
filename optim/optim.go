// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/prune/internal/nn"
	"github.com/born-ml/prune/internal/optim"
	"github.com/born-ml/prune/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer = optim.Optimizer

// SGD implements stochastic gradient descent with optional momentum.
type SGD[B tensor.Backend] = optim.SGD[B]

// SGDConfig configures the SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer.
//
// Example:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	}, backend)
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) *SGD[B] {
	return optim.NewSGD(params, config, backend)
}

// Adam implements the Adam optimization algorithm.
type Adam[B tensor.Backend] = optim.Adam[B]

// AdamConfig configures the Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer.
//
// Example:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.001}, backend)
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	return optim.NewAdam(params, config, backend)
}
