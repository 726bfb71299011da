// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides neural network layers and building blocks.
//
// # Overview
//
// This package contains:
//   - Layers: Linear (maskable), MultiHeadAttention
//   - Attention: ScaledDotProductAttention
//   - Utilities: Module interface, Parameter, AssignGrads
//   - Initialization: Xavier, Zeros, Ones, Randn
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/prune/nn"
//	    "github.com/born-ml/prune/backend/cpu"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    attn := nn.NewMultiHeadAttention(768, 12, backend)
//	    output := attn.Forward(input)
//	}
//
// # Masking
//
// Linear layers carry optional boolean masks over weight and bias. Masked
// entries are multiplied by zero during Forward, so they contribute nothing
// to the output and receive zero gradient when the forward pass is recorded
// on an autodiff tape. The prune package drives these masks to remove whole
// attention heads.
package nn
