package tensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/prune/internal/backend/cpu"
	"github.com/born-ml/prune/internal/tensor"
)

func TestShape_NumElements(t *testing.T) {
	assert.Equal(t, 24, tensor.Shape{2, 3, 4}.NumElements())
	assert.Equal(t, 1, tensor.Shape{}.NumElements())
}

func TestShape_Equal(t *testing.T) {
	assert.True(t, tensor.Shape{2, 3}.Equal(tensor.Shape{2, 3}))
	assert.False(t, tensor.Shape{2, 3}.Equal(tensor.Shape{3, 2}))
	assert.False(t, tensor.Shape{2, 3}.Equal(tensor.Shape{2, 3, 1}))
}

func TestBroadcastShapes(t *testing.T) {
	shape, needs, err := tensor.BroadcastShapes(tensor.Shape{2, 3}, tensor.Shape{3})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, shape)
	assert.True(t, needs)

	shape, needs, err = tensor.BroadcastShapes(tensor.Shape{2, 3}, tensor.Shape{2, 3})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, shape)
	assert.False(t, needs)

	_, _, err = tensor.BroadcastShapes(tensor.Shape{2, 3}, tensor.Shape{4})
	assert.Error(t, err)
}

func TestNewRaw(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)

	assert.Equal(t, tensor.Shape{2, 3}, raw.Shape())
	assert.Equal(t, tensor.Float32, raw.DType())
	assert.Equal(t, 6, raw.NumElements())
	assert.Len(t, raw.AsFloat32(), 6)
}

func TestFromSlice(t *testing.T) {
	backend := cpu.New()

	data := []float32{1, 2, 3, 4, 5, 6}
	x, err := tensor.FromSlice(data, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)

	assert.Equal(t, tensor.Shape{2, 3}, x.Shape())
	assert.Equal(t, data, x.Data())

	// The tensor owns a copy.
	data[0] = 100
	assert.Equal(t, float32(1), x.At(0, 0))
}

func TestFromSlice_LengthMismatch(t *testing.T) {
	backend := cpu.New()

	_, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{2, 2}, backend)
	assert.Error(t, err)
}

func TestTensor_Clone(t *testing.T) {
	backend := cpu.New()

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)

	y := x.Clone()
	y.Data()[0] = 99

	assert.Equal(t, float32(1), x.At(0, 0))
	assert.NotSame(t, x.Raw(), y.Raw())
}

func TestTensor_Ops(t *testing.T) {
	backend := cpu.New()

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)
	y := tensor.Ones[float32](tensor.Shape{2, 2}, backend)

	sum := x.Add(y)
	assert.Equal(t, []float32{2, 3, 4, 5}, sum.Data())

	total := x.Sum()
	assert.InDelta(t, 10.0, float64(total.Item()), 1e-6)

	transposed := x.T()
	assert.Equal(t, []float32{1, 3, 2, 4}, transposed.Data())
}

func TestFull_Bool(t *testing.T) {
	backend := cpu.New()

	mask := tensor.Full[bool](tensor.Shape{3}, true, backend)

	assert.Equal(t, []bool{true, true, true}, mask.Data())
}
