// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimization algorithms for training and finetuning.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/prune/autodiff"
//	    "github.com/born-ml/prune/optim"
//	)
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.01}, backend)
//
//	for epoch := 0; epoch < epochs; epoch++ {
//	    backend.Tape().StartRecording()
//	    loss := computeLoss(model.Forward(input), targets)
//	    grads := autodiff.Backward(loss, backend)
//	    backend.Tape().StopRecording()
//
//	    optimizer.Step(grads)
//	    optimizer.ZeroGrad()
//	    backend.Tape().Clear()
//	}
//
// Step also attaches each gradient to its parameter, so gradient-based
// importance criteria can read them after a calibration pass.
package optim
