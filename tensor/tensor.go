// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for tensor operations in the prune engine.
//
// The package defines core interfaces and types for type-safe tensor operations:
//   - Tensor[T, B]: High-level generic tensor with type safety
//   - RawTensor: Low-level tensor representation
//   - Backend: Interface for device-specific compute implementations
//   - Shape, DataType, Device: Core type definitions
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	z := x.Add(y)  // Element-wise addition
package tensor

import (
	"github.com/born-ml/prune/internal/tensor"
)

// Type aliases for public API

// DType is a constraint for tensor data types.
// Supported types: float32, bool.
type DType = tensor.DType

// DataType represents the underlying data type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Bool    DataType = tensor.Bool
)

// Device represents the device where tensor data resides.
type Device = tensor.Device

// Device constants.
const (
	CPU Device = tensor.CPU
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Backend is defined in backend.go as a proper interface.

// Tensor is a generic type-safe tensor.
//
// T is the data type (float32 or bool).
// B is the backend implementation.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	z := x.MatMul(y.T())
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// Creation functions

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T, B](shape, b)
}

// Ones creates a tensor filled with ones.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Ones[T, B](shape, b)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	backend := cpu.New()
//	mask := tensor.Full[bool](tensor.Shape{2, 3}, true, backend)
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full[T, B](shape, value, b)
}

// Randn creates a tensor filled with random values from standard normal distribution N(0, 1).
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Randn[float32](tensor.Shape{2, 3}, backend)
func Randn[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Randn[T, B](shape, b)
}

// FromSlice creates a tensor from a Go slice. The data is copied.
//
// Example:
//
//	backend := cpu.New()
//	data := []float32{1, 2, 3, 4, 5, 6}
//	x, err := tensor.FromSlice(data, tensor.Shape{2, 3}, backend)
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice[T, B](data, shape, b)
}

// New creates a tensor from a raw tensor.
//
// This is a low-level function. Most users should use creation functions like
// Zeros, Ones, or FromSlice instead.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return tensor.New[T, B](raw, b)
}

// NewRaw creates a new raw tensor with the given shape, dtype, and device.
//
// This is a low-level function. Most users should use high-level creation functions instead.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// Utility functions

// BroadcastShapes computes the broadcast shape for two shapes following NumPy
// broadcasting rules. Returns the resulting shape and a flag indicating
// whether broadcasting is needed.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}
