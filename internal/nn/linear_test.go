package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/prune/internal/backend/cpu"
	"github.com/born-ml/prune/internal/tensor"
)

func TestLinear_Forward(t *testing.T) {
	backend := cpu.New()
	layer := NewLinear(3, 2, backend)

	// Known weights: W = [[1,0,0],[0,1,0]], b = [1, -1]
	copy(layer.Weight().Tensor().Data(), []float32{1, 0, 0, 0, 1, 0})
	copy(layer.Bias().Tensor().Data(), []float32{1, -1})

	input, err := tensor.FromSlice([]float32{2, 3, 4}, tensor.Shape{1, 3}, backend)
	require.NoError(t, err)

	output := layer.Forward(input)

	require.True(t, output.Shape().Equal(tensor.Shape{1, 2}))
	assert.InDelta(t, 3.0, output.At(0, 0), 1e-6)
	assert.InDelta(t, 2.0, output.At(0, 1), 1e-6)
}

func TestLinear_Forward_ShapeValidation(t *testing.T) {
	backend := cpu.New()
	layer := NewLinear(4, 2, backend)

	input := tensor.Randn[float32](tensor.Shape{1, 3}, backend)

	assert.Panics(t, func() {
		layer.Forward(input)
	})
}

func TestLinear_WeightMask_ZerosOutput(t *testing.T) {
	backend := cpu.New()
	layer := NewLinear(2, 2, backend)

	copy(layer.Weight().Tensor().Data(), []float32{1, 1, 1, 1})
	copy(layer.Bias().Tensor().Data(), []float32{0, 0})

	// Mask out the entire first output row.
	weightMask, err := tensor.FromSlice(
		[]bool{false, false, true, true},
		tensor.Shape{2, 2}, backend)
	require.NoError(t, err)
	layer.SetMasks(weightMask, nil)

	input, err := tensor.FromSlice([]float32{1, 1}, tensor.Shape{1, 2}, backend)
	require.NoError(t, err)

	output := layer.Forward(input)

	assert.InDelta(t, 0.0, output.At(0, 0), 1e-6)
	assert.InDelta(t, 2.0, output.At(0, 1), 1e-6)
}

func TestLinear_BiasMask(t *testing.T) {
	backend := cpu.New()
	layer := NewLinear(2, 2, backend)

	copy(layer.Weight().Tensor().Data(), []float32{0, 0, 0, 0})
	copy(layer.Bias().Tensor().Data(), []float32{5, 7})

	weightMask := tensor.Full[bool](tensor.Shape{2, 2}, true, backend)
	biasMask, err := tensor.FromSlice([]bool{false, true}, tensor.Shape{2}, backend)
	require.NoError(t, err)
	layer.SetMasks(weightMask, biasMask)

	input, err := tensor.FromSlice([]float32{1, 1}, tensor.Shape{1, 2}, backend)
	require.NoError(t, err)

	output := layer.Forward(input)

	assert.InDelta(t, 0.0, output.At(0, 0), 1e-6)
	assert.InDelta(t, 7.0, output.At(0, 1), 1e-6)
}

func TestLinear_ClearMasks(t *testing.T) {
	backend := cpu.New()
	layer := NewLinear(2, 1, backend)

	copy(layer.Weight().Tensor().Data(), []float32{1, 1})
	copy(layer.Bias().Tensor().Data(), []float32{0})

	weightMask := tensor.Full[bool](tensor.Shape{1, 2}, false, backend)
	layer.SetMasks(weightMask, nil)
	layer.ClearMasks()

	input, err := tensor.FromSlice([]float32{3, 4}, tensor.Shape{1, 2}, backend)
	require.NoError(t, err)

	output := layer.Forward(input)
	assert.InDelta(t, 7.0, output.At(0, 0), 1e-6)
	assert.Nil(t, layer.WeightMask())
}

func TestLinear_MaskedWeight(t *testing.T) {
	backend := cpu.New()
	layer := NewLinear(2, 2, backend)

	copy(layer.Weight().Tensor().Data(), []float32{1, 2, 3, 4})

	weightMask, err := tensor.FromSlice(
		[]bool{true, false, false, true},
		tensor.Shape{2, 2}, backend)
	require.NoError(t, err)
	layer.SetMasks(weightMask, nil)

	masked := layer.MaskedWeight()
	assert.Equal(t, []float32{1, 0, 0, 4}, masked.Data())

	// Original weight is untouched.
	assert.Equal(t, []float32{1, 2, 3, 4}, layer.Weight().Tensor().Data())
}

func TestLinear_InputObserver(t *testing.T) {
	backend := cpu.New()
	layer := NewLinear(2, 2, backend)

	var seen []*tensor.RawTensor
	layer.SetInputObserver(func(raw *tensor.RawTensor) {
		seen = append(seen, raw)
	})

	input := tensor.Randn[float32](tensor.Shape{3, 2}, backend)
	layer.Forward(input)
	layer.Forward(input)

	require.Len(t, seen, 2)
	assert.Same(t, input.Raw(), seen[0])

	layer.SetInputObserver(nil)
	layer.Forward(input)
	assert.Len(t, seen, 2)
}
