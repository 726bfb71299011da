package cpu

import (
	"fmt"

	"github.com/born-ml/prune/internal/tensor"
)

// Reshape returns a tensor with the same data but a different shape.
// The element count must be unchanged. Data is copied so the result gets
// fresh identity on the autodiff tape.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("reshape: cannot reshape %v (%d elements) to %v (%d elements)",
			t.Shape(), t.NumElements(), newShape, newShape.NumElements()))
	}

	result, err := tensor.NewRaw(newShape, t.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	copy(result.Data(), t.Data())
	return result
}

// Transpose permutes tensor dimensions, materializing the result.
//
// With no axes, all dimensions are reversed (standard transpose for 2D).
// Otherwise axes must be a permutation of [0, rank).
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	rank := len(shape)

	if len(axes) == 0 {
		axes = make([]int, rank)
		for i := range axes {
			axes[i] = rank - 1 - i
		}
	}
	if len(axes) != rank {
		panic(fmt.Sprintf("transpose: got %d axes for rank-%d tensor", len(axes), rank))
	}

	seen := make([]bool, rank)
	outShape := make(tensor.Shape, rank)
	for i, ax := range axes {
		if ax < 0 || ax >= rank || seen[ax] {
			panic(fmt.Sprintf("transpose: invalid axes %v for shape %v", axes, shape))
		}
		seen[ax] = true
		outShape[i] = shape[ax]
	}

	result, err := tensor.NewRaw(outShape, t.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("transpose: %v", err))
	}

	src := t.AsFloat32()
	dst := result.AsFloat32()
	inStrides := shape.ComputeStrides()
	outStrides := outShape.ComputeStrides()

	idx := make([]int, rank)
	for flat := range dst {
		rem := flat
		for d, s := range outStrides {
			idx[d] = rem / s
			rem %= s
		}
		srcOffset := 0
		for d, ax := range axes {
			srcOffset += idx[d] * inStrides[ax]
		}
		dst[flat] = src[srcOffset]
	}
	return result
}
