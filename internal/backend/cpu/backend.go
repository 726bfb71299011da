// Package cpu implements the CPU backend with gonum BLAS acceleration for matmul.
package cpu

import (
	"fmt"

	"github.com/born-ml/prune/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	device tensor.Device
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("add", a, b, func(x, y float32) float32 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("sub", a, b, func(x, y float32) float32 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("mul", a, b, func(x, y float32) float32 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("div", a, b, func(x, y float32) float32 { return x / y })
}

// binaryOp applies fn element-wise, broadcasting b (or a) where needed.
func (cpu *CPUBackend) binaryOp(name string, a, b *tensor.RawTensor, fn func(x, y float32) float32) *tensor.RawTensor {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	result, err := tensor.NewRaw(outShape, a.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	dst := result.AsFloat32()
	if !needsBroadcast && a.Shape().Equal(b.Shape()) {
		// Fast path: same shape, element-aligned
		av, bv := a.AsFloat32(), b.AsFloat32()
		for i := range dst {
			dst[i] = fn(av[i], bv[i])
		}
		return result
	}

	applyBroadcast(dst, a, b, outShape, fn)
	return result
}

// MulScalar multiplies every element by a scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	return cpu.scalarOp("mulscalar", x, func(v float32) float32 { return v * scalar })
}

// AddScalar adds a scalar to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	return cpu.scalarOp("addscalar", x, func(v float32) float32 { return v + scalar })
}

func (cpu *CPUBackend) scalarOp(name string, x *tensor.RawTensor, fn func(float32) float32) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	src := x.AsFloat32()
	dst := result.AsFloat32()
	for i, v := range src {
		dst[i] = fn(v)
	}
	return result
}
