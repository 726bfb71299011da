package prune

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/prune/internal/tensor"
)

// Criterion selects the head-importance scoring strategy.
type Criterion string

const (
	// L1Weight ranks heads by the mean L1 norm of their rows in the
	// masked q, k, v projection weights.
	L1Weight Criterion = "l1_weight"

	// L2Weight ranks heads by the mean sum of squares of their rows in
	// the masked q, k, v projection weights.
	L2Weight Criterion = "l2_weight"

	// L1Activation ranks heads by the accumulated L1 magnitude of the
	// attention context entering the output projection during a
	// calibration pass.
	L1Activation Criterion = "l1_activation"

	// L2Activation is L1Activation with squared magnitudes.
	L2Activation Criterion = "l2_activation"

	// TaylorFO ranks heads by the first-order Taylor sensitivity
	// sum(|weight * gradient|) over their q, k, v rows, using gradients
	// left by a calibration forward+backward pass.
	TaylorFO Criterion = "taylorfo"
)

// Valid reports whether the criterion is one of the supported strategies.
func (c Criterion) Valid() bool {
	switch c {
	case L1Weight, L2Weight, L1Activation, L2Activation, TaylorFO:
		return true
	}
	return false
}

// NeedsTrainer reports whether the criterion requires a calibration pass
// through the trainer callback.
func (c Criterion) NeedsTrainer() bool {
	switch c {
	case L1Activation, L2Activation, TaylorFO:
		return true
	}
	return false
}

// headScorer produces one importance scalar per head for a group.
//
// A nil or empty result signals that the scorer has nothing to report yet
// (for example no calibration statistics); the caller treats this as a
// recoverable skip, not an error.
type headScorer[B tensor.Backend] interface {
	Score(g *WeightGroup[B]) []float64

	// Reset clears any accumulated state. Called between iterations so
	// statistics from weights that have since been finetuned do not leak
	// into the next scoring pass.
	Reset()
}

// weightNormScorer implements the l1_weight and l2_weight criteria.
type weightNormScorer[B tensor.Backend] struct {
	ord int // 1 or 2
}

func (s *weightNormScorer[B]) Score(g *WeightGroup[B]) []float64 {
	scores := make([]float64, g.NumHeads)
	buf := make([]float64, 0)

	for _, w := range [3]*LinearWrapper[B]{g.Q, g.K, g.V} {
		weight := w.linear.MaskedWeight().Data()
		rowLen := w.linear.InFeatures()
		headLen := g.HeadDim * rowLen

		for h := 0; h < g.NumHeads; h++ {
			slice := weight[h*headLen : (h+1)*headLen]
			buf = buf[:0]
			for _, v := range slice {
				buf = append(buf, float64(v))
			}
			if s.ord == 1 {
				scores[h] += floats.Norm(buf, 1)
			} else {
				scores[h] += floats.Dot(buf, buf)
			}
		}
	}

	for h := range scores {
		scores[h] /= 3
	}
	return scores
}

func (s *weightNormScorer[B]) Reset() {}

// activationScorer implements the l1_activation and l2_activation
// criteria. It observes the input of each group's output projection (the
// concatenated attention context) and accumulates per-head magnitude
// statistics across the calibration pass.
type activationScorer[B tensor.Backend] struct {
	ord    int
	stats  map[int][]float64
	counts map[int]int
}

func newActivationScorer[B tensor.Backend](ord int) *activationScorer[B] {
	return &activationScorer[B]{
		ord:    ord,
		stats:  make(map[int][]float64),
		counts: make(map[int]int),
	}
}

// attach installs the observer collecting statistics for one group.
func (s *activationScorer[B]) attach(g *WeightGroup[B]) {
	idx := g.Index
	headDim := g.HeadDim
	numHeads := g.NumHeads

	g.Output.linear.SetInputObserver(func(raw *tensor.RawTensor) {
		acc, ok := s.stats[idx]
		if !ok {
			acc = make([]float64, numHeads)
			s.stats[idx] = acc
		}

		shape := raw.Shape()
		width := shape[len(shape)-1]
		data := raw.AsFloat32()

		for i, v := range data {
			head := (i % width) / headDim
			if head >= numHeads {
				continue
			}
			x := float64(v)
			if s.ord == 1 {
				acc[head] += math.Abs(x)
			} else {
				acc[head] += x * x
			}
		}
		s.counts[idx]++
	})
}

func (s *activationScorer[B]) Score(g *WeightGroup[B]) []float64 {
	if s.counts[g.Index] == 0 {
		return nil
	}
	acc := s.stats[g.Index]
	out := make([]float64, len(acc))
	copy(out, acc)
	return out
}

func (s *activationScorer[B]) Reset() {
	s.stats = make(map[int][]float64)
	s.counts = make(map[int]int)
}

// taylorScorer implements the taylorfo criterion. It reads the gradients
// the calibration pass left on the q, k, v weight parameters.
type taylorScorer[B tensor.Backend] struct{}

func (s *taylorScorer[B]) Score(g *WeightGroup[B]) []float64 {
	scores := make([]float64, g.NumHeads)

	for _, w := range [3]*LinearWrapper[B]{g.Q, g.K, g.V} {
		grad := w.linear.Weight().Grad()
		if grad == nil {
			return nil
		}

		weight := w.linear.Weight().Tensor().Data()
		gradData := grad.Data()
		rowLen := w.linear.InFeatures()
		headLen := g.HeadDim * rowLen

		for h := 0; h < g.NumHeads; h++ {
			sum := 0.0
			for i := h * headLen; i < (h+1)*headLen; i++ {
				sum += math.Abs(float64(weight[i]) * float64(gradData[i]))
			}
			scores[h] += sum
		}
	}
	return scores
}

func (s *taylorScorer[B]) Reset() {}
