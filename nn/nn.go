// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/prune/internal/nn"
	"github.com/born-ml/prune/internal/tensor"
)

// Module interface defines the common interface for all neural network modules.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter represents a trainable parameter in a neural network.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a new parameter with the given name and tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// AssignGrads attaches gradients from a backward pass to parameters,
// matched by raw-tensor identity. Parameters without a gradient entry
// are left untouched.
func AssignGrads[B tensor.Backend](params []*Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor, backend B) {
	nn.AssignGrads(params, grads, backend)
}

// Layers

// Linear represents a fully connected (dense) layer with optional
// boolean masks over its weight and bias.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a new linear layer with Xavier initialization.
//
// Example:
//
//	backend := cpu.New()
//	layer := nn.NewLinear(128, 64, backend)
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, backend)
}

// MultiHeadAttention implements multi-head attention with four exposed
// Linear projections (WQ, WK, WV, WO).
type MultiHeadAttention[B tensor.Backend] = nn.MultiHeadAttention[B]

// NewMultiHeadAttention creates a multi-head attention module.
// embedDim must be divisible by numHeads.
//
// Example:
//
//	backend := cpu.New()
//	attn := nn.NewMultiHeadAttention(768, 12, backend)
func NewMultiHeadAttention[B tensor.Backend](embedDim, numHeads int, backend B) *MultiHeadAttention[B] {
	return nn.NewMultiHeadAttention(embedDim, numHeads, backend)
}

// ScaledDotProductAttention computes softmax(QK^T * scale) V over 4D
// [batch, heads, seq, head_dim] tensors. Pass scale 0 to use
// 1/sqrt(head_dim). Returns the attended values and the attention weights.
func ScaledDotProductAttention[B tensor.Backend](
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
	scale float32,
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	return nn.ScaledDotProductAttention(query, key, value, mask, scale)
}

// Initialization

// Xavier creates a tensor initialized with Xavier/Glorot uniform distribution.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Xavier(fanIn, fanOut, shape, backend)
}

// Zeros creates a float32 tensor filled with zeros.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Zeros(shape, backend)
}

// Ones creates a float32 tensor filled with ones.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Ones(shape, backend)
}

// Randn creates a float32 tensor with standard normal values.
func Randn[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Randn(shape, backend)
}
