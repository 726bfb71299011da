package autodiff

import (
	"github.com/born-ml/prune/internal/tensor"
)

// BackwardCapable is a backend that carries a gradient tape.
type BackwardCapable interface {
	tensor.Backend
	Tape() *GradientTape
}

// Backward computes gradients of a scalar loss with respect to all tensors
// reachable on the tape. The loss gradient is seeded with ones.
func Backward[T tensor.DType, B BackwardCapable](loss *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	raw := loss.Raw()

	seed, err := tensor.NewRaw(raw.Shape(), raw.DType(), raw.Device())
	if err != nil {
		panic("autodiff: backward seed: " + err.Error())
	}
	data := seed.AsFloat32()
	for i := range data {
		data[i] = 1.0
	}

	return backend.Tape().Backward(seed, raw, backend)
}
