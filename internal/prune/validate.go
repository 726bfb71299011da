package prune

import (
	"fmt"

	"github.com/born-ml/prune/internal/tensor"
)

// finishGroups resolves per-group sparsity and head geometry and enforces
// the structural invariants. Any violation is a configuration error; the
// engine fails fast before tracing or training begins.
func finishGroups[B tensor.Backend](groups []*WeightGroup[B], headDim int, globalSort bool) error {
	if headDim <= 0 {
		return fmt.Errorf("prune: head dimension must be positive, got %d", headDim)
	}

	for _, g := range groups {
		if err := finishGroup(g, headDim); err != nil {
			return err
		}
	}

	if globalSort {
		for _, g := range groups[1:] {
			if g.Sparsity != groups[0].Sparsity {
				return fmt.Errorf("prune: global ranking requires one sparsity for all groups, got %v (group %d) and %v (group %d)",
					groups[0].Sparsity, groups[0].Index, g.Sparsity, g.Index)
			}
		}
	}
	return nil
}

func finishGroup[B tensor.Backend](g *WeightGroup[B], headDim int) error {
	qShape := g.Q.linear.Weight().Tensor().Shape()
	kShape := g.K.linear.Weight().Tensor().Shape()
	vShape := g.V.linear.Weight().Tensor().Shape()
	oShape := g.Output.linear.Weight().Tensor().Shape()

	if !qShape.Equal(kShape) || !qShape.Equal(vShape) {
		return fmt.Errorf("prune: group %d: q, k, v weight shapes must match, got %v, %v, %v",
			g.Index, qShape, kShape, vShape)
	}
	if oShape[1] != qShape[0] {
		return fmt.Errorf("prune: group %d: output projection input dimension %d does not match projection output dimension %d",
			g.Index, oShape[1], qShape[0])
	}

	sparsity := g.Q.sparsity
	for _, w := range g.Wrappers() {
		if w.sparsity != sparsity {
			return fmt.Errorf("prune: group %d: members must share one sparsity, %q has %v while %q has %v",
				g.Index, w.name, w.sparsity, g.Q.name, sparsity)
		}
	}

	projDim := qShape[0]
	if projDim%headDim != 0 {
		return fmt.Errorf("prune: group %d: head dimension %d does not divide projection dimension %d",
			g.Index, headDim, projDim)
	}

	g.HeadDim = headDim
	g.NumHeads = projDim / headDim
	g.Sparsity = sparsity
	return nil
}
