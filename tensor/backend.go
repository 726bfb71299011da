// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/prune/internal/tensor"

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// The op surface is intentionally small: it is the set of operations a
// transformer forward/backward pass and the mask machinery need.
//
// Implementations:
//   - backend/cpu: Pure Go with gonum BLAS matrix multiplication
//
// Decorator backends for additional functionality:
//   - autodiff: Automatic differentiation and dataflow tracing (wraps any backend)
//
// Example:
//
//	import (
//	    "github.com/born-ml/prune/backend/cpu"
//	    "github.com/born-ml/prune/tensor"
//	)
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	z := x.Add(y)  // Uses backend.Add under the hood
type Backend = tensor.Backend

// RawTensor is the low-level tensor representation.
//
// RawTensor provides:
//   - Shape and type information via Shape(), DType(), Device()
//   - Type-safe data access via AsFloat32() and AsBool()
//   - Deep copies via Clone()
//
// Most users should use the high-level Tensor[T, B] type instead. RawTensor
// identity (pointer equality) is what the autodiff tape and the weight-group
// tracer key on.
type RawTensor = tensor.RawTensor
