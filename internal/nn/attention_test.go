package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/prune/internal/autodiff"
	"github.com/born-ml/prune/internal/backend/cpu"
	"github.com/born-ml/prune/internal/tensor"
)

func TestMultiHeadAttention_SelfAttention(t *testing.T) {
	backend := cpu.New()

	embedDim := 32
	numHeads := 4
	mha := NewMultiHeadAttention(embedDim, numHeads, backend)

	batch := 2
	seq := 5
	input := tensor.Randn[float32](tensor.Shape{batch, seq, embedDim}, backend)

	output := mha.Forward(input, input, input, nil)

	require.True(t, output.Shape().Equal(tensor.Shape{batch, seq, embedDim}))
}

func TestMultiHeadAttention_HeadDivisibility(t *testing.T) {
	backend := cpu.New()

	assert.Panics(t, func() {
		NewMultiHeadAttention(10, 3, backend)
	})
}

func TestMultiHeadAttention_Parameters(t *testing.T) {
	backend := cpu.New()
	mha := NewMultiHeadAttention(16, 2, backend)

	params := mha.Parameters()
	// Four projections with weight and bias each.
	assert.Len(t, params, 8)
}

func TestScaledDotProductAttention_WeightsSumToOne(t *testing.T) {
	backend := cpu.New()

	q := tensor.Randn[float32](tensor.Shape{1, 2, 3, 4}, backend)
	k := tensor.Randn[float32](tensor.Shape{1, 2, 3, 4}, backend)
	v := tensor.Randn[float32](tensor.Shape{1, 2, 3, 4}, backend)

	output, weights := ScaledDotProductAttention(q, k, v, nil, 0)

	require.True(t, output.Shape().Equal(tensor.Shape{1, 2, 3, 4}))
	require.True(t, weights.Shape().Equal(tensor.Shape{1, 2, 3, 3}))

	data := weights.Data()
	for row := 0; row < len(data); row += 3 {
		sum := data[row] + data[row+1] + data[row+2]
		assert.InDelta(t, 1.0, sum, 1e-5)
	}
}

// Masked projections must receive zero gradient through the tape.
func TestMultiHeadAttention_MaskedGradientsAreZero(t *testing.T) {
	backend := autodiff.New(cpu.New())

	embedDim := 8
	numHeads := 2
	mha := NewMultiHeadAttention(embedDim, numHeads, backend)

	// Mask out head 0 of the query projection: rows [0, headDim).
	headDim := embedDim / numHeads
	maskData := make([]bool, embedDim*embedDim)
	for row := 0; row < embedDim; row++ {
		for col := 0; col < embedDim; col++ {
			maskData[row*embedDim+col] = row >= headDim
		}
	}
	weightMask, err := tensor.FromSlice(maskData, tensor.Shape{embedDim, embedDim}, backend)
	require.NoError(t, err)
	mha.WQ.SetMasks(weightMask, nil)

	input := tensor.Randn[float32](tensor.Shape{1, 3, embedDim}, backend)

	backend.Tape().StartRecording()
	output := mha.Forward(input, input, input, nil)
	loss := output.Sum()
	grads := autodiff.Backward(loss, backend)
	backend.Tape().StopRecording()
	backend.Tape().Clear()

	grad, ok := grads[mha.WQ.Weight().Tensor().Raw()]
	require.True(t, ok, "query weight should receive a gradient")

	gradData := grad.AsFloat32()
	for col := 0; col < embedDim; col++ {
		for row := 0; row < headDim; row++ {
			assert.Zero(t, gradData[row*embedDim+col],
				"masked entry (%d,%d) must have zero gradient", row, col)
		}
	}
}
