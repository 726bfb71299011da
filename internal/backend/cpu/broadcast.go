package cpu

import "github.com/born-ml/prune/internal/tensor"

// applyBroadcast evaluates fn over every output position, mapping each output
// index back into a and b with size-1 dimensions pinned to index 0.
func applyBroadcast(dst []float32, a, b *tensor.RawTensor, outShape tensor.Shape, fn func(x, y float32) float32) {
	av, bv := a.AsFloat32(), b.AsFloat32()
	aShape, bShape := a.Shape(), b.Shape()
	aStrides, bStrides := aShape.ComputeStrides(), bShape.ComputeStrides()
	outStrides := outShape.ComputeStrides()

	idx := make([]int, len(outShape))
	for flat := range dst {
		// Decompose flat index into multi-dimensional coordinates
		rem := flat
		for d, s := range outStrides {
			idx[d] = rem / s
			rem %= s
		}
		dst[flat] = fn(av[broadcastOffset(idx, aShape, aStrides, len(outShape))],
			bv[broadcastOffset(idx, bShape, bStrides, len(outShape))])
	}
}

// broadcastOffset maps an output coordinate to a flat offset in a (possibly
// lower-rank, possibly size-1-padded) operand.
func broadcastOffset(idx []int, shape tensor.Shape, strides []int, outRank int) int {
	offset := 0
	pad := outRank - len(shape)
	for d := range shape {
		i := idx[d+pad]
		if shape[d] == 1 {
			i = 0
		}
		offset += i * strides[d]
	}
	return offset
}
