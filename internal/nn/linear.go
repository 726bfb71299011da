package nn

import (
	"fmt"

	"github.com/born-ml/prune/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output tensor with shape [batch_size, out_features]
//
// Weights are initialized using Xavier/Glorot initialization.
// Biases are initialized to zeros.
//
// A Linear layer optionally carries boolean masks over its weight and bias.
// Masked entries are multiplied by zero during Forward, so they contribute
// nothing to the output and receive zero gradient through the tape.
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter[B] // [out_features, in_features]
	bias        *Parameter[B] // [out_features]

	weightMask  *tensor.Tensor[bool, B]
	biasMask    *tensor.Tensor[bool, B]
	weightMaskF *tensor.Tensor[float32, B]
	biasMaskF   *tensor.Tensor[float32, B]

	inputObserver func(*tensor.RawTensor)
	backend       B
}

// NewLinear creates a new Linear layer.
//
// Weights are initialized using Xavier/Glorot uniform distribution.
// Biases are initialized to zeros. No masks are set.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	weightShape := tensor.Shape{outFeatures, inFeatures}
	weight := NewParameter("weight", Xavier(inFeatures, outFeatures, weightShape, backend))

	biasShape := tensor.Shape{outFeatures}
	bias := NewParameter("bias", Zeros(biasShape, backend))

	return &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      weight,
		bias:        bias,
		backend:     backend,
	}
}

// Forward computes the output of the linear layer.
//
// Performs: y = x @ (W * mask).T + b * mask
//
// Input shape: [batch_size, in_features]
// Output shape: [batch_size, out_features]
//
// If an input observer is registered it sees the raw input before the
// projection is applied.
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 2 {
		panic(fmt.Sprintf("Linear.Forward: expected 2D input [batch, features], got shape %v", inputShape))
	}
	if inputShape[1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, inputShape[1]))
	}

	if l.inputObserver != nil {
		l.inputObserver(input.Raw())
	}

	w := l.weight.Tensor() // [out_features, in_features]
	if l.weightMaskF != nil {
		// Recorded on the tape so masked entries get zero gradient.
		w = w.Mul(l.weightMaskF)
	}

	// [batch_size, in_features] @ [in_features, out_features] = [batch_size, out_features]
	output := input.MatMul(w.T())

	if l.bias != nil {
		b := l.bias.Tensor() // [out_features]
		if l.biasMaskF != nil {
			b = b.Mul(l.biasMaskF)
		}
		output = output.Add(b.Reshape(1, l.outFeatures))
	}

	return output
}

// Parameters returns the trainable parameters of this layer.
//
// Returns [weight, bias] if bias is present, otherwise [weight].
func (l *Linear[B]) Parameters() []*Parameter[B] {
	if l.bias != nil {
		return []*Parameter[B]{l.weight, l.bias}
	}
	return []*Parameter[B]{l.weight}
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear[B]) Bias() *Parameter[B] {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear[B]) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear[B]) OutFeatures() int {
	return l.outFeatures
}

// SetMasks installs boolean masks over the weight and bias.
//
// weightMask must have shape [out_features, in_features]. biasMask must
// have shape [out_features]; pass nil to leave the bias unmasked. A false
// entry zeros the corresponding value during Forward.
func (l *Linear[B]) SetMasks(weightMask, biasMask *tensor.Tensor[bool, B]) {
	if weightMask == nil {
		panic("Linear.SetMasks: weight mask must not be nil")
	}
	expected := tensor.Shape{l.outFeatures, l.inFeatures}
	if !weightMask.Shape().Equal(expected) {
		panic(fmt.Sprintf("Linear.SetMasks: weight mask shape %v, want %v", weightMask.Shape(), expected))
	}
	l.weightMask = weightMask
	l.weightMaskF = maskToFloat(weightMask, l.backend)

	if biasMask != nil {
		expectedBias := tensor.Shape{l.outFeatures}
		if !biasMask.Shape().Equal(expectedBias) {
			panic(fmt.Sprintf("Linear.SetMasks: bias mask shape %v, want %v", biasMask.Shape(), expectedBias))
		}
		l.biasMask = biasMask
		l.biasMaskF = maskToFloat(biasMask, l.backend)
	} else {
		l.biasMask = nil
		l.biasMaskF = nil
	}
}

// ClearMasks removes any installed masks.
func (l *Linear[B]) ClearMasks() {
	l.weightMask = nil
	l.biasMask = nil
	l.weightMaskF = nil
	l.biasMaskF = nil
}

// WeightMask returns the current weight mask, or nil if unmasked.
func (l *Linear[B]) WeightMask() *tensor.Tensor[bool, B] {
	return l.weightMask
}

// BiasMask returns the current bias mask, or nil if unmasked.
func (l *Linear[B]) BiasMask() *tensor.Tensor[bool, B] {
	return l.biasMask
}

// MaskedWeight returns the weight with the current mask applied, without
// touching the tape. Returns the plain weight when no mask is set.
func (l *Linear[B]) MaskedWeight() *tensor.Tensor[float32, B] {
	w := l.weight.Tensor()
	if l.weightMask == nil {
		return w
	}
	out := w.Clone()
	data := out.Data()
	mask := l.weightMask.Data()
	for i := range data {
		if !mask[i] {
			data[i] = 0
		}
	}
	return out
}

// SetInputObserver registers a callback invoked with the raw input tensor
// on every Forward call. Pass nil to remove it.
func (l *Linear[B]) SetInputObserver(fn func(*tensor.RawTensor)) {
	l.inputObserver = fn
}

// maskToFloat converts a boolean mask to a float tensor of zeros and ones.
func maskToFloat[B tensor.Backend](mask *tensor.Tensor[bool, B], backend B) *tensor.Tensor[float32, B] {
	raw, err := tensor.NewRaw(mask.Shape(), tensor.Float32, backend.Device())
	if err != nil {
		panic(err)
	}
	data := raw.AsFloat32()
	for i, keep := range mask.Data() {
		if keep {
			data[i] = 1
		}
	}
	return tensor.New[float32](raw, backend)
}
