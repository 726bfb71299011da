package prune

import (
	"math"
	"sort"

	"github.com/born-ml/prune/internal/tensor"
)

// numToPrune returns the cumulative number of heads to remove by the end
// of the given iteration (0-based). Each iteration removes an equal share
// of the final target, which is reached at the last iteration. Layers with
// fewer than two heads are never pruned.
func numToPrune(numHeads int, sparsity float64, iterations, iter int) int {
	if numHeads < 2 {
		return 0
	}
	return int(math.Floor(float64(numHeads) * sparsity * float64(iter+1) / float64(iterations)))
}

// pruneThreshold returns the largest of the k smallest scores. k must be
// in [1, len(scores)].
func pruneThreshold(scores []float64, k int) float64 {
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	return sorted[k-1]
}

// keepMask marks the heads that survive a threshold. Heads scoring exactly
// at the threshold are pruned; ties there may remove more heads than the
// nominal count, which is accepted behavior.
func keepMask(scores []float64, threshold float64) []bool {
	keep := make([]bool, len(scores))
	for i, s := range scores {
		keep[i] = s > threshold
	}
	return keep
}

// updateMask runs one masking pass over all groups for the given
// iteration. A scorer returning no scores for a group is a recoverable
// condition: the group's mask is left unchanged this iteration.
func (p *HeadPruner[B]) updateMask(iter int) {
	if p.globalSort {
		p.updateMaskGlobal(iter)
		return
	}

	for _, g := range p.groups {
		scores := p.scorer.Score(g)
		if len(scores) == 0 {
			p.logger.Warn().Int("group", g.Index).Msg("no importance scores for group, leaving mask unchanged")
			continue
		}

		k := numToPrune(g.NumHeads, g.Sparsity, p.iterations, iter)
		if k == 0 {
			p.logger.Debug().Int("group", g.Index).Msg("prune count is zero, mask unchanged")
			continue
		}

		p.applyMasks(g, keepMask(scores, pruneThreshold(scores, k)))
	}
}

// updateMaskGlobal pools importance scores across all groups and applies a
// single global threshold, so a group may lose zero or many heads
// depending on relative scores.
func (p *HeadPruner[B]) updateMaskGlobal(iter int) {
	type scored struct {
		group  *WeightGroup[B]
		scores []float64
	}

	var eligible []scored
	var pooled []float64
	totalHeads := 0

	for _, g := range p.groups {
		if g.NumHeads < 2 {
			continue
		}
		scores := p.scorer.Score(g)
		if len(scores) == 0 {
			p.logger.Warn().Int("group", g.Index).Msg("no importance scores for group, skipping global mask update")
			return
		}
		eligible = append(eligible, scored{group: g, scores: scores})
		pooled = append(pooled, scores...)
		totalHeads += g.NumHeads
	}
	if totalHeads == 0 {
		return
	}

	k := numToPrune(totalHeads, p.groups[0].Sparsity, p.iterations, iter)
	if k == 0 {
		p.logger.Debug().Msg("global prune count is zero, masks unchanged")
		return
	}

	threshold := pruneThreshold(pooled, k)
	for _, e := range eligible {
		p.applyMasks(e.group, keepMask(e.scores, threshold))
	}
}

// applyMasks installs head masks on all four wrappers of a group and
// records the pruned head indices in the registry.
//
// For each pruned head: its rows in the q, k, v weights and biases are
// masked, along with the matching input columns of the output projection
// weight. The output projection bias stays all-true, since removing a head
// does not remove an output dimension.
func (p *HeadPruner[B]) applyMasks(g *WeightGroup[B], keep []bool) {
	projDim := g.NumHeads * g.HeadDim
	inFeatures := g.Q.linear.InFeatures()

	// Row masks for q, k, v.
	rowMask := make([]bool, projDim)
	for h, kept := range keep {
		for r := h * g.HeadDim; r < (h+1)*g.HeadDim; r++ {
			rowMask[r] = kept
		}
	}

	weightMaskData := make([]bool, projDim*inFeatures)
	for r, kept := range rowMask {
		for c := 0; c < inFeatures; c++ {
			weightMaskData[r*inFeatures+c] = kept
		}
	}

	for _, w := range [3]*LinearWrapper[B]{g.Q, g.K, g.V} {
		weightMask := mustFromSlice(weightMaskData, tensor.Shape{projDim, inFeatures}, p.backend)
		biasMask := mustFromSlice(rowMask, tensor.Shape{projDim}, p.backend)
		w.linear.SetMasks(weightMask, biasMask)
	}

	// Column mask for the output projection, all-true bias.
	outFeatures := g.Output.linear.OutFeatures()
	outMaskData := make([]bool, outFeatures*projDim)
	for r := 0; r < outFeatures; r++ {
		for c := 0; c < projDim; c++ {
			outMaskData[r*projDim+c] = rowMask[c]
		}
	}
	outWeightMask := mustFromSlice(outMaskData, tensor.Shape{outFeatures, projDim}, p.backend)
	outBiasMask := tensor.Full[bool](tensor.Shape{outFeatures}, true, p.backend)
	g.Output.linear.SetMasks(outWeightMask, outBiasMask)

	pruned := p.pruned[g.Index]
	if pruned == nil {
		pruned = make(map[int]bool)
		p.pruned[g.Index] = pruned
	}
	newlyPruned := 0
	for h, kept := range keep {
		if !kept {
			if !pruned[h] {
				newlyPruned++
			}
			pruned[h] = true
		}
	}

	p.logger.Info().
		Int("group", g.Index).
		Int("newly_pruned", newlyPruned).
		Int("total_pruned", len(pruned)).
		Int("heads", g.NumHeads).
		Msg("applied head masks")
}

// mustFromSlice wraps tensor.FromSlice for mask construction, where the
// shape is derived from the data and cannot mismatch.
func mustFromSlice[T tensor.DType, B tensor.Backend](data []T, shape tensor.Shape, backend B) *tensor.Tensor[T, B] {
	t, err := tensor.FromSlice(data, shape, backend)
	if err != nil {
		panic(err)
	}
	return t
}
