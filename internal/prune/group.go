package prune

import (
	"fmt"

	"github.com/born-ml/prune/internal/tensor"
)

// WeightGroup is the ordered 4-tuple of projection wrappers belonging to
// one attention layer: query, key, value, and output projection. Group
// membership is immutable after construction; only mask contents change.
type WeightGroup[B tensor.Backend] struct {
	Index    int
	Q        *LinearWrapper[B]
	K        *LinearWrapper[B]
	V        *LinearWrapper[B]
	Output   *LinearWrapper[B]
	NumHeads int
	HeadDim  int
	Sparsity float64
}

// Wrappers returns the group members in Q, K, V, output order.
func (g *WeightGroup[B]) Wrappers() [4]*LinearWrapper[B] {
	return [4]*LinearWrapper[B]{g.Q, g.K, g.V, g.Output}
}

// groupsFromNames builds weight groups from explicit 4-tuples of module
// names. Every tuple must contain exactly four names in Q, K, V, output
// order, and every name must resolve to a selected wrapper.
func groupsFromNames[B tensor.Backend](names [][]string, wrappers []*LinearWrapper[B]) ([]*WeightGroup[B], error) {
	byName := make(map[string]*LinearWrapper[B], len(wrappers))
	for _, w := range wrappers {
		byName[w.name] = w
	}

	groups := make([]*WeightGroup[B], 0, len(names))
	for i, tuple := range names {
		if len(tuple) != 4 {
			return nil, fmt.Errorf("prune: group %d must contain exactly 4 module names (q, k, v, output), got %d", i, len(tuple))
		}

		members := make([]*LinearWrapper[B], 4)
		for j, name := range tuple {
			w, ok := byName[name]
			if !ok {
				return nil, fmt.Errorf("prune: group %d names module %q which is not selected by the config list", i, name)
			}
			if w.group != -1 {
				return nil, fmt.Errorf("prune: module %q appears in more than one group", name)
			}
			members[j] = w
		}

		g := &WeightGroup[B]{
			Index:  i,
			Q:      members[0],
			K:      members[1],
			V:      members[2],
			Output: members[3],
		}
		for _, w := range members {
			w.group = i
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// dropUngrouped returns only the wrappers that belong to a group. Modules
// captured by a broad config-list filter but not part of any attention
// group are dropped from the active pruning set.
func dropUngrouped[B tensor.Backend](wrappers []*LinearWrapper[B]) (kept, dropped []*LinearWrapper[B]) {
	for _, w := range wrappers {
		if w.group >= 0 {
			kept = append(kept, w)
		} else {
			dropped = append(dropped, w)
		}
	}
	return kept, dropped
}
