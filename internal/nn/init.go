package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/prune/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// This initialization helps maintain variance of activations across layers.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	t, err := tensor.NewRaw(shape, tensor.Float32, backend.Device())
	if err != nil {
		panic(err)
	}

	data := t.AsFloat32()
	for i := range data {
		//nolint:gosec // Using math/rand for weight initialization (not security-critical)
		data[i] = float32((rand.Float64()*2.0 - 1.0) * bound)
	}

	return tensor.New[float32, B](t, backend)
}

// Zeros creates a tensor filled with zeros.
//
// This is commonly used for bias initialization.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}

// Ones creates a tensor filled with ones.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Ones[float32](shape, backend)
}

// Randn creates a tensor with random values from standard normal distribution.
func Randn[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Randn[float32](shape, backend)
}
