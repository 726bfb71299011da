// Package autodiff implements automatic differentiation using the decorator pattern.
//
// AutodiffBackend wraps any Backend implementation and adds gradient tracking
// through a GradientTape. The same tape is the dataflow trace the pruning
// engine inspects to discover attention weight groups from a dummy input.
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	y := model.Forward(x)
//	grads := autodiff.Backward(y, backend)
package autodiff

import (
	"github.com/born-ml/prune/internal/autodiff/ops"
	"github.com/born-ml/prune/internal/tensor"
)

// AutodiffBackend wraps a Backend and adds automatic differentiation.
// It implements the tensor.Backend interface and records operations in a GradientTape.
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend for direct access.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Add(x, y)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewAddOp(x, y, result))
	}
	return result
}

// Sub performs element-wise subtraction and records the operation.
func (b *AutodiffBackend[B]) Sub(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sub(x, y)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSubOp(x, y, result))
	}
	return result
}

// Mul performs element-wise multiplication and records the operation.
func (b *AutodiffBackend[B]) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Mul(x, y)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMulOp(x, y, result))
	}
	return result
}

// Div performs element-wise division and records the operation.
func (b *AutodiffBackend[B]) Div(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Div(x, y)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewDivOp(x, y, result))
	}
	return result
}

// MatMul performs matrix multiplication and records the operation.
func (b *AutodiffBackend[B]) MatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.MatMul(x, y)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMatMulOp(x, y, result))
	}
	return result
}

// BatchMatMul performs batched matrix multiplication and records the operation.
func (b *AutodiffBackend[B]) BatchMatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.BatchMatMul(x, y)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewBatchMatMulOp(x, y, result))
	}
	return result
}

// MulScalar multiplies by a scalar and records the operation.
func (b *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	result := b.inner.MulScalar(x, scalar)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMulScalarOp(x, result, scalar))
	}
	return result
}

// AddScalar adds a scalar and records the operation.
func (b *AutodiffBackend[B]) AddScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	result := b.inner.AddScalar(x, scalar)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewAddScalarOp(x, result))
	}
	return result
}

// Softmax applies softmax along a dimension and records the operation.
func (b *AutodiffBackend[B]) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	result := b.inner.Softmax(x, dim)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSoftmaxOp(x, result))
	}
	return result
}

// Sum reduces to the total sum and records the operation.
func (b *AutodiffBackend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sum(x)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSumOp(x, result))
	}
	return result
}

// Reshape reshapes a tensor and records the operation.
//
// Reshape must be recorded: without it, gradients would not flow back to
// reshaped parameters, and the dataflow trace would lose the link between
// a projection's input and the attention subgraph.
func (b *AutodiffBackend[B]) Reshape(x *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Reshape(x, newShape)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewReshapeOp(x, result))
	}
	return result
}

// Transpose permutes dimensions and records the operation.
func (b *AutodiffBackend[B]) Transpose(x *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	result := b.inner.Transpose(x, axes...)
	if b.tape.IsRecording() {
		resolved := axes
		if len(resolved) == 0 {
			rank := len(x.Shape())
			resolved = make([]int, rank)
			for i := range resolved {
				resolved[i] = rank - 1 - i
			}
		}
		b.tape.Record(ops.NewTransposeOp(x, result, resolved))
	}
	return result
}
