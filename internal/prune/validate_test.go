package prune

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/prune/internal/backend/cpu"
	"github.com/born-ml/prune/internal/nn"
)

func makeGroup(qIn, qOut, kIn, kOut, oIn, oOut int, sparsity float64, backend *cpu.CPUBackend) *WeightGroup[*cpu.CPUBackend] {
	q := newLinearWrapper("q", nn.NewLinear(qIn, qOut, backend), sparsity)
	k := newLinearWrapper("k", nn.NewLinear(kIn, kOut, backend), sparsity)
	v := newLinearWrapper("v", nn.NewLinear(qIn, qOut, backend), sparsity)
	o := newLinearWrapper("o", nn.NewLinear(oIn, oOut, backend), sparsity)
	return &WeightGroup[*cpu.CPUBackend]{Q: q, K: k, V: v, Output: o}
}

func TestFinishGroup_Valid(t *testing.T) {
	backend := cpu.New()
	g := makeGroup(8, 8, 8, 8, 8, 8, 0.5, backend)

	require.NoError(t, finishGroup(g, 2))
	assert.Equal(t, 4, g.NumHeads)
	assert.Equal(t, 2, g.HeadDim)
	assert.InDelta(t, 0.5, g.Sparsity, 1e-9)
}

func TestFinishGroup_RejectsShapeMismatch(t *testing.T) {
	backend := cpu.New()
	g := makeGroup(8, 8, 8, 4, 8, 8, 0.5, backend)

	err := finishGroup(g, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shapes must match")
}

func TestFinishGroup_RejectsOutputDimensionMismatch(t *testing.T) {
	backend := cpu.New()
	g := makeGroup(8, 8, 8, 8, 4, 8, 0.5, backend)

	err := finishGroup(g, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output projection")
}

func TestFinishGroup_RejectsNonDivisorHeadDim(t *testing.T) {
	backend := cpu.New()
	g := makeGroup(8, 8, 8, 8, 8, 8, 0.5, backend)

	err := finishGroup(g, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not divide")
}

func TestFinishGroup_RejectsMixedSparsity(t *testing.T) {
	backend := cpu.New()
	g := makeGroup(8, 8, 8, 8, 8, 8, 0.5, backend)
	g.V.sparsity = 0.25

	err := finishGroup(g, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "share one sparsity")
}

func TestFinishGroups_GlobalRequiresUniformSparsity(t *testing.T) {
	backend := cpu.New()
	g0 := makeGroup(8, 8, 8, 8, 8, 8, 0.5, backend)
	g1 := makeGroup(8, 8, 8, 8, 8, 8, 0.25, backend)
	g1.Index = 1
	groups := []*WeightGroup[*cpu.CPUBackend]{g0, g1}

	assert.NoError(t, finishGroups(groups, 2, false))
	err := finishGroups(groups, 2, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "global ranking")
}
