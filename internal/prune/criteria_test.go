package prune

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/prune/internal/backend/cpu"
	"github.com/born-ml/prune/internal/tensor"
)

func TestCriterion_Valid(t *testing.T) {
	for _, c := range []Criterion{L1Weight, L2Weight, L1Activation, L2Activation, TaylorFO} {
		assert.True(t, c.Valid(), string(c))
	}
	assert.False(t, Criterion("magnitude").Valid())
	assert.False(t, Criterion("").Valid())
}

func TestCriterion_NeedsTrainer(t *testing.T) {
	assert.False(t, L1Weight.NeedsTrainer())
	assert.False(t, L2Weight.NeedsTrainer())
	assert.True(t, L1Activation.NeedsTrainer())
	assert.True(t, L2Activation.NeedsTrainer())
	assert.True(t, TaylorFO.NeedsTrainer())
}

// fixtureGroup builds a 2-head group over 4x4 projections with known
// weights: head 0 rows are all a, head 1 rows are all b.
func fixtureGroup(t *testing.T, a, b float32, backend *cpu.CPUBackend) *WeightGroup[*cpu.CPUBackend] {
	t.Helper()
	g := makeGroup(4, 4, 4, 4, 4, 4, 0.5, backend)
	require.NoError(t, finishGroup(g, 2))

	for _, w := range [3]*LinearWrapper[*cpu.CPUBackend]{g.Q, g.K, g.V} {
		data := w.Linear().Weight().Tensor().Data()
		for i := range data {
			if i < 8 {
				data[i] = a
			} else {
				data[i] = b
			}
		}
	}
	return g
}

func TestWeightNormScorer_L1(t *testing.T) {
	backend := cpu.New()
	g := fixtureGroup(t, -0.5, 2.0, backend)

	scorer := &weightNormScorer[*cpu.CPUBackend]{ord: 1}
	scores := scorer.Score(g)

	require.Len(t, scores, 2)
	// 8 entries of |−0.5| per projection, averaged over three projections.
	assert.InDelta(t, 4.0, scores[0], 1e-6)
	assert.InDelta(t, 16.0, scores[1], 1e-6)
}

func TestWeightNormScorer_L2(t *testing.T) {
	backend := cpu.New()
	g := fixtureGroup(t, -0.5, 2.0, backend)

	scorer := &weightNormScorer[*cpu.CPUBackend]{ord: 2}
	scores := scorer.Score(g)

	require.Len(t, scores, 2)
	assert.InDelta(t, 2.0, scores[0], 1e-6)
	assert.InDelta(t, 32.0, scores[1], 1e-6)
}

// Scores come from the masked weight, so a pruned head scores zero on the
// next pass.
func TestWeightNormScorer_UsesMaskedWeight(t *testing.T) {
	backend := cpu.New()
	g := fixtureGroup(t, 1.0, 2.0, backend)

	maskData := make([]bool, 16)
	for i := 8; i < 16; i++ {
		maskData[i] = true
	}
	for _, w := range [3]*LinearWrapper[*cpu.CPUBackend]{g.Q, g.K, g.V} {
		mask := mustFromSlice(maskData, tensor.Shape{4, 4}, backend)
		w.Linear().SetMasks(mask, nil)
	}

	scorer := &weightNormScorer[*cpu.CPUBackend]{ord: 1}
	scores := scorer.Score(g)

	assert.InDelta(t, 0.0, scores[0], 1e-9)
	assert.InDelta(t, 16.0, scores[1], 1e-6)
}

func TestActivationScorer(t *testing.T) {
	backend := cpu.New()
	g := fixtureGroup(t, 1.0, 1.0, backend)

	scorer := newActivationScorer[*cpu.CPUBackend](1)
	scorer.attach(g)

	// Before any forward pass: no statistics.
	assert.Nil(t, scorer.Score(g))

	// Head 0 columns carry magnitude 1, head 1 columns magnitude 3.
	input := mustFromSlice([]float32{1, -1, 3, -3}, tensor.Shape{1, 4}, backend)
	g.Output.Linear().Forward(input)
	g.Output.Linear().Forward(input)

	scores := scorer.Score(g)
	require.Len(t, scores, 2)
	assert.InDelta(t, 4.0, scores[0], 1e-6)
	assert.InDelta(t, 12.0, scores[1], 1e-6)

	scorer.Reset()
	assert.Nil(t, scorer.Score(g))
}

func TestTaylorScorer_NoGradients(t *testing.T) {
	backend := cpu.New()
	g := fixtureGroup(t, 1.0, 1.0, backend)

	scorer := &taylorScorer[*cpu.CPUBackend]{}
	assert.Nil(t, scorer.Score(g))
}

func TestTaylorScorer(t *testing.T) {
	backend := cpu.New()
	g := fixtureGroup(t, 2.0, 2.0, backend)

	// Gradient 0.5 on head 0 rows, 1.0 on head 1 rows, for q, k, v.
	for _, w := range [3]*LinearWrapper[*cpu.CPUBackend]{g.Q, g.K, g.V} {
		gradData := make([]float32, 16)
		for i := range gradData {
			if i < 8 {
				gradData[i] = 0.5
			} else {
				gradData[i] = 1.0
			}
		}
		w.Linear().Weight().SetGrad(mustFromSlice(gradData, tensor.Shape{4, 4}, backend))
	}

	scorer := &taylorScorer[*cpu.CPUBackend]{}
	scores := scorer.Score(g)

	require.Len(t, scores, 2)
	// sum over q,k,v of 8 * |2.0 * grad|
	assert.InDelta(t, 24.0, scores[0], 1e-6)
	assert.InDelta(t, 48.0, scores[1], 1e-6)
}
