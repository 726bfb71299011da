package prune

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNumToPrune(t *testing.T) {
	tests := []struct {
		name       string
		heads      int
		sparsity   float64
		iterations int
		iter       int
		want       int
	}{
		{"single iteration", 12, 0.5, 1, 0, 6},
		{"first of two", 12, 0.5, 2, 0, 3},
		{"second of two", 12, 0.5, 2, 1, 6},
		{"floor rounding", 12, 0.3, 1, 0, 3},
		{"uneven split grows", 10, 0.5, 3, 0, 1},
		{"uneven split middle", 10, 0.5, 3, 1, 3},
		{"uneven split final", 10, 0.5, 3, 2, 5},
		{"tiny layer untouched", 1, 0.9, 1, 0, 0},
		{"rounds to zero", 4, 0.2, 1, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, numToPrune(tt.heads, tt.sparsity, tt.iterations, tt.iter))
		})
	}
}

func TestPruneThreshold(t *testing.T) {
	scores := []float64{3.0, 1.0, 4.0, 1.5, 2.0}

	assert.InDelta(t, 1.0, pruneThreshold(scores, 1), 1e-9)
	assert.InDelta(t, 1.5, pruneThreshold(scores, 2), 1e-9)
	assert.InDelta(t, 3.0, pruneThreshold(scores, 4), 1e-9)

	// Input order is preserved.
	assert.Equal(t, []float64{3.0, 1.0, 4.0, 1.5, 2.0}, scores)
}

func TestKeepMask(t *testing.T) {
	scores := []float64{3.0, 1.0, 4.0, 1.5}

	keep := keepMask(scores, pruneThreshold(scores, 2))
	assert.Equal(t, []bool{true, false, true, false}, keep)
}

// Heads scoring exactly at the threshold are all pruned, even beyond the
// nominal count.
func TestKeepMask_TiesAtThresholdArePruned(t *testing.T) {
	scores := []float64{2.0, 1.0, 1.0, 3.0}

	keep := keepMask(scores, pruneThreshold(scores, 1))
	assert.Equal(t, []bool{true, false, false, true}, keep)
}
