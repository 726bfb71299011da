package prune

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/prune/internal/autodiff"
	"github.com/born-ml/prune/internal/backend/cpu"
	"github.com/born-ml/prune/internal/nn"
	"github.com/born-ml/prune/internal/tensor"
)

type adBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// Tracing a two-layer encoder discovers both attention groups with the
// projections in q, k, v, output order.
func TestTraceGroups_DiscoversAttention(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model := newTestEncoder(2, 8, 2, true, backend)
	dummy := tensor.Randn[float32](tensor.Shape{1, 3, 8}, backend)

	pruner, err := NewHeadPruner(Options[adBackend]{
		Model:      model,
		Backend:    backend,
		ConfigList: []Config{{Sparsity: 0.5, OpTypes: []string{"Linear"}}},
		DummyInput: dummy,
		Criterion:  L1Weight,
		HeadDim:    4,
	})
	require.NoError(t, err)

	groups := pruner.Groups()
	require.Len(t, groups, 2)

	for i, g := range groups {
		assert.Same(t, model.layers[i].WQ, g.Q.Linear())
		assert.Same(t, model.layers[i].WK, g.K.Linear())
		assert.Same(t, model.layers[i].WV, g.V.Linear())
		assert.Same(t, model.layers[i].WO, g.Output.Linear())
		assert.Equal(t, 2, g.NumHeads)
	}

	// The feed forward layer is not part of any group.
	for _, w := range pruner.wrappers {
		assert.NotEqual(t, "encoder.ffn", w.Name())
	}
}

// The trace is discarded and the recording state restored after discovery.
func TestTraceGroups_RestoresTapeState(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model := newTestEncoder(1, 8, 2, false, backend)
	dummy := tensor.Randn[float32](tensor.Shape{1, 3, 8}, backend)

	wrappers := wrapAll(model, 0.5)
	_, err := traceGroups[adBackend](model, dummy, backend, wrappers)
	require.NoError(t, err)

	assert.False(t, backend.Tape().IsRecording())
	assert.Zero(t, backend.Tape().NumOps())
	assert.True(t, model.Training())
}

func TestTraceGroups_NoDummyInput(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model := newTestEncoder(1, 8, 2, false, backend)

	_, err := traceGroups[adBackend](model, nil, backend, wrapAll(model, 0.5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "explicit weight groups")
}

func TestTraceGroups_BackendWithoutTrace(t *testing.T) {
	backend := cpu.New()
	model := newTestEncoder(1, 8, 2, false, backend)
	dummy := tensor.Randn[float32](tensor.Shape{1, 3, 8}, backend)

	_, err := traceGroups[*cpu.CPUBackend](model, dummy, backend, wrapAll(model, 0.5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "explicit weight groups")
}

// A model with no attention pattern yields a descriptive failure, and the
// tape is still restored.
func TestTraceGroups_NoPatternDetected(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model := &linearOnlyModel{linear: newTestEncoder(1, 8, 2, false, backend).layers[0].WQ}
	dummy := tensor.Randn[float32](tensor.Shape{2, 8}, backend)

	wrappers := []*LinearWrapper[adBackend]{
		newLinearWrapper("only", model.linear, 0.5),
	}
	_, err := traceGroups[adBackend](model, dummy, backend, wrappers)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no attention pattern")
	assert.Zero(t, backend.Tape().NumOps())
}

func wrapAll[B tensor.Backend](model Model[B], sparsity float64) []*LinearWrapper[B] {
	var wrappers []*LinearWrapper[B]
	for _, nl := range model.NamedLinears() {
		wrappers = append(wrappers, newLinearWrapper(nl.Name, nl.Linear, sparsity))
	}
	return wrappers
}

// linearOnlyModel has a single projection and no attention subgraph.
type linearOnlyModel struct {
	linear   *nn.Linear[adBackend]
	training bool
}

func (m *linearOnlyModel) Forward(x *tensor.Tensor[float32, adBackend]) *tensor.Tensor[float32, adBackend] {
	return m.linear.Forward(x)
}

func (m *linearOnlyModel) NamedLinears() []NamedLinear[adBackend] {
	return []NamedLinear[adBackend]{{Name: "only", Linear: m.linear}}
}

func (m *linearOnlyModel) Parameters() []*nn.Parameter[adBackend] {
	return m.linear.Parameters()
}

func (m *linearOnlyModel) SetTraining(training bool) { m.training = training }
func (m *linearOnlyModel) Training() bool            { return m.training }
