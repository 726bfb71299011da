package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/prune/internal/tensor"
)

// MatMul performs matrix multiplication.
// For 2D tensors: (M, K) @ (K, N) -> (M, N)
// Backed by gonum's SGEMM.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]

	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	result, err := tensor.NewRaw(tensor.Shape{m, n}, a.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("matmul: failed to create result tensor: %v", err))
	}

	sgemm(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), m, k, n)
	return result
}

// BatchMatMul performs batched matrix multiplication for 3D/4D tensors.
// For 3D: [B, M, K] @ [B, K, N] -> [B, M, N]
// For 4D: [B, H, M, K] @ [B, H, K, N] -> [B, H, M, N]
func (cpu *CPUBackend) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != len(bShape) || (len(aShape) != 3 && len(aShape) != 4) {
		panic(fmt.Sprintf("batchmatmul: expected matching 3D or 4D tensors, got %v and %v", aShape, bShape))
	}

	rank := len(aShape)
	batch := 1
	for d := 0; d < rank-2; d++ {
		if aShape[d] != bShape[d] {
			panic(fmt.Sprintf("batchmatmul: batch dimension mismatch %v vs %v", aShape, bShape))
		}
		batch *= aShape[d]
	}

	m, k := aShape[rank-2], aShape[rank-1]
	kAlt, n := bShape[rank-2], bShape[rank-1]
	if k != kAlt {
		panic(fmt.Sprintf("batchmatmul: inner dimension mismatch %v @ %v", aShape, bShape))
	}

	outShape := aShape.Clone()
	outShape[rank-1] = n

	result, err := tensor.NewRaw(outShape, a.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("batchmatmul: failed to create result tensor: %v", err))
	}

	av, bv, cv := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()
	for i := 0; i < batch; i++ {
		sgemm(cv[i*m*n:(i+1)*m*n], av[i*m*k:(i+1)*m*k], bv[i*k*n:(i+1)*k*n], m, k, n)
	}
	return result
}

// sgemm computes c = a @ b via gonum's float32 BLAS implementation.
func sgemm(c, a, b []float32, m, k, n int) {
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		blas32.General{Rows: m, Cols: k, Stride: k, Data: a},
		blas32.General{Rows: k, Cols: n, Stride: n, Data: b},
		0,
		blas32.General{Rows: m, Cols: n, Stride: n, Data: c})
}
