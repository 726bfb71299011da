package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/prune/internal/tensor"
)

// Softmax computes softmax along the given dimension.
// Only the last dimension is supported, which is what attention needs.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	if dim < 0 {
		dim += len(shape)
	}
	if dim != len(shape)-1 {
		panic(fmt.Sprintf("softmax: only the last dimension is supported, got dim=%d for shape %v", dim, shape))
	}

	result, err := tensor.NewRaw(shape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("softmax: %v", err))
	}

	width := shape[len(shape)-1]
	src := x.AsFloat32()
	dst := result.AsFloat32()

	for row := 0; row < len(src); row += width {
		// Max-subtraction for numerical stability
		maxVal := src[row]
		for _, v := range src[row+1 : row+width] {
			if v > maxVal {
				maxVal = v
			}
		}

		sum := float32(0)
		for i := row; i < row+width; i++ {
			e := float32(math.Exp(float64(src[i] - maxVal)))
			dst[i] = e
			sum += e
		}
		for i := row; i < row+width; i++ {
			dst[i] /= sum
		}
	}
	return result
}

// Sum reduces the tensor to its total sum, returned as a [1] tensor.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(tensor.Shape{1}, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sum: %v", err))
	}

	total := float32(0)
	for _, v := range x.AsFloat32() {
		total += v
	}
	result.AsFloat32()[0] = total
	return result
}
