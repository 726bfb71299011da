package ops

import (
	"fmt"

	"github.com/born-ml/prune/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: a[N, F] + b[1, F] -> c[N, F]  (b was broadcast along dim 0)
//	Backward: grad_c[N, F] -> grad_b[1, F] (sum along dim 0)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape) *tensor.RawTensor {
	gradShape := grad.Shape()
	if gradShape.Equal(targetShape) {
		return grad
	}

	result := grad
	// Sum away leading dimensions the target does not have
	for len(result.Shape()) > len(targetShape) {
		result = sumAlongDimension(result, 0, false)
	}

	// Sum along dimensions where the target is 1
	for d, size := range targetShape {
		if size == 1 && result.Shape()[d] > 1 {
			result = sumAlongDimension(result, d, true)
		}
	}
	return result
}

// sumAlongDimension sums a float32 tensor along one dimension.
// With keepDim the summed dimension stays as size 1, otherwise it is dropped.
func sumAlongDimension(t *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := t.Shape()
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("sumAlongDimension: invalid dimension %d for shape %v", dim, shape))
	}

	outShape := make(tensor.Shape, 0, len(shape))
	for d, size := range shape {
		switch {
		case d != dim:
			outShape = append(outShape, size)
		case keepDim:
			outShape = append(outShape, 1)
		}
	}
	if len(outShape) == 0 {
		outShape = tensor.Shape{1}
	}

	result, err := tensor.NewRaw(outShape, t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("sumAlongDimension: %v", err))
	}

	src := t.AsFloat32()
	dst := result.AsFloat32()

	// outer × dimSize × inner iteration over the source layout
	strides := shape.ComputeStrides()
	inner := strides[dim]
	dimSize := shape[dim]
	outer := len(src) / (inner * dimSize)

	for o := 0; o < outer; o++ {
		for j := 0; j < dimSize; j++ {
			base := o*dimSize*inner + j*inner
			for i := 0; i < inner; i++ {
				dst[o*inner+i] += src[base+i]
			}
		}
	}
	return result
}
