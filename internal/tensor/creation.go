package tensor

import (
	"math"
	"math/rand"
)

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](Shape{3, 4}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var dummy T
	dtype := inferDataType(dummy)

	raw, err := NewRaw(shape, dtype, b.Device())
	if err != nil {
		panic(err) // Shape validation should prevent this
	}

	// Data is already zero-initialized by make()
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones (true for bool tensors).
//
// Example:
//
//	mask := tensor.Ones[bool](Shape{768, 768}, backend)
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()

	var dummy T
	var one any
	switch any(dummy).(type) {
	case float32:
		one = float32(1)
	case bool:
		one = true
	}

	for i := range data {
		data[i] = one.(T)
	}
	return t
}

// Full creates a tensor filled with a specific value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Randn creates a tensor with random values from a normal distribution (mean=0, std=1).
// Uses Box-Muller transform. Only works with float32 tensors.
// Note: Uses math/rand (not crypto/rand) - appropriate for ML/statistical purposes.
func Randn[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()

	var dummy T
	switch any(dummy).(type) {
	case float32:
		dataF32 := any(data).([]float32)
		for i := 0; i < len(dataF32); i += 2 {
			u1 := rand.Float64() //nolint:gosec // G404: math/rand is intentional for reproducibility
			u2 := rand.Float64() //nolint:gosec // G404: math/rand is intentional for reproducibility
			z0 := math.Sqrt(-2.0*math.Log(u1)) * math.Cos(2.0*math.Pi*u2)
			z1 := math.Sqrt(-2.0*math.Log(u1)) * math.Sin(2.0*math.Pi*u2)
			dataF32[i] = float32(z0)
			if i+1 < len(dataF32) {
				dataF32[i+1] = float32(z1)
			}
		}
	default:
		panic("Randn only supports float32 tensors")
	}
	return t
}
