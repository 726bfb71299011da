// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for tensor operations.
//
// # Overview
//
// This package implements a CPU backend with:
//   - Pure Go implementation (no CGO)
//   - gonum BLAS single-precision matrix multiplication
//   - NumPy-compatible broadcasting for element-wise operations
//   - Float32 and Bool payloads
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/prune/backend/cpu"
//	    "github.com/born-ml/prune/tensor"
//	    "github.com/born-ml/prune/nn"
//	)
//
//	func main() {
//	    // Create CPU backend
//	    backend := cpu.New()
//
//	    // Use with tensors
//	    x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	    y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	    z := x.Add(y)
//
//	    // Use with neural networks
//	    layer := nn.NewLinear(128, 64, backend)
//	}
//
// # Thread Safety
//
// The CPU backend is safe for concurrent use. Each tensor operation
// is isolated and does not share mutable state.
package cpu
