package prune

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/born-ml/prune/internal/optim"
	"github.com/born-ml/prune/internal/tensor"
)

// Trainer is the injected calibration and finetuning callback. Epoch 0 is
// the calibration pass: a forward (and, for gradient-based criteria, a
// backward) pass that populates statistics without updating weights.
// Epochs 1 and above are finetuning epochs with gradient updates enabled.
// Batch iteration and loss computation are entirely the caller's concern.
type Trainer[B tensor.Backend] func(model Model[B], optimizer optim.Optimizer, epoch int) error

// State is the controller state of a HeadPruner.
type State int

const (
	StateIdle State = iota
	StateScoring
	StateMasking
	StateFinetuning
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScoring:
		return "scoring"
	case StateMasking:
		return "masking"
	case StateFinetuning:
		return "finetuning"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options configures a HeadPruner.
type Options[B tensor.Backend] struct {
	// Model is the model to prune.
	Model Model[B]

	// Backend performs tensor computation. When Groups is empty it must
	// also record a dataflow trace (the autodiff backend does).
	Backend B

	// ConfigList selects the prunable modules and their sparsity.
	ConfigList []Config

	// Groups optionally lists explicit weight groups as 4-tuples of
	// module names in q, k, v, output order. When empty, groups are
	// discovered by tracing the model with DummyInput.
	Groups [][]string

	// DummyInput is one representative input, used only for tracing.
	DummyInput *tensor.Tensor[float32, B]

	// HeadDim is the per-head hidden dimension.
	HeadDim int

	// Criterion selects the importance scoring strategy.
	Criterion Criterion

	// GlobalSort ranks heads across all groups together instead of
	// independently per group.
	GlobalSort bool

	// Iterations is the number of score-mask-finetune rounds. Zero means
	// one round.
	Iterations int

	// EpochsPerIteration is the number of finetuning epochs between
	// iterations.
	EpochsPerIteration int

	// Trainer and Optimizer are required by calibration-based criteria
	// and by multi-iteration runs; Optimizer is passed through to the
	// Trainer untouched.
	Trainer   Trainer[B]
	Optimizer optim.Optimizer
}

// HeadPruner prunes whole attention heads from a model.
//
// Construction discovers and validates the weight groups; Compress runs
// the iterative score-mask-finetune loop. After compression the pruned
// head registry is readable through PrunedHeads and the binary masks stay
// attached to each wrapped Linear, consumable by an external speedup step.
type HeadPruner[B tensor.Backend] struct {
	model      Model[B]
	backend    B
	wrappers   []*LinearWrapper[B]
	groups     []*WeightGroup[B]
	scorer     headScorer[B]
	criterion  Criterion
	globalSort bool
	iterations int
	epochs     int
	trainer    Trainer[B]
	optimizer  optim.Optimizer
	state      State
	pruned     map[int]map[int]bool
	logger     zerolog.Logger
}

// NewHeadPruner builds a pruner: selects modules via the config list,
// forms weight groups (explicit names or graph tracing), validates them,
// and drops modules that ended up in no group. All configuration errors
// surface here, before any compute-heavy work.
func NewHeadPruner[B tensor.Backend](opts Options[B]) (*HeadPruner[B], error) {
	if opts.Model == nil {
		return nil, fmt.Errorf("prune: model is required")
	}
	if !opts.Criterion.Valid() {
		return nil, fmt.Errorf("prune: unsupported criterion %q", opts.Criterion)
	}
	if err := validateConfigList(opts.ConfigList); err != nil {
		return nil, err
	}

	iterations := opts.Iterations
	if iterations <= 0 {
		iterations = 1
	}

	needsTrainer := opts.Criterion.NeedsTrainer() || iterations > 1
	if needsTrainer && (opts.Trainer == nil || opts.Optimizer == nil) {
		return nil, fmt.Errorf("prune: criterion %q with %d iteration(s) requires a trainer and an optimizer",
			opts.Criterion, iterations)
	}

	var wrappers []*LinearWrapper[B]
	for _, nl := range opts.Model.NamedLinears() {
		if s, ok := sparsityFor(nl.Name, opts.ConfigList); ok {
			wrappers = append(wrappers, newLinearWrapper(nl.Name, nl.Linear, s))
		}
	}
	if len(wrappers) == 0 {
		return nil, fmt.Errorf("prune: config list selects no modules")
	}

	logger := log.With().Str("component", "head_pruner").Logger()

	var groups []*WeightGroup[B]
	var err error
	if len(opts.Groups) > 0 {
		groups, err = groupsFromNames(opts.Groups, wrappers)
	} else {
		groups, err = traceGroups(opts.Model, opts.DummyInput, opts.Backend, wrappers)
	}
	if err != nil {
		return nil, err
	}

	if err := finishGroups(groups, opts.HeadDim, opts.GlobalSort); err != nil {
		return nil, err
	}

	kept, dropped := dropUngrouped(wrappers)
	for _, w := range dropped {
		logger.Info().Str("module", w.name).Msg("module not part of any attention group, dropped from pruning set")
	}

	p := &HeadPruner[B]{
		model:      opts.Model,
		backend:    opts.Backend,
		wrappers:   kept,
		groups:     groups,
		criterion:  opts.Criterion,
		globalSort: opts.GlobalSort,
		iterations: iterations,
		epochs:     opts.EpochsPerIteration,
		trainer:    opts.Trainer,
		optimizer:  opts.Optimizer,
		state:      StateIdle,
		pruned:     make(map[int]map[int]bool),
		logger:     logger,
	}
	p.scorer = p.newScorer()

	logger.Info().
		Int("groups", len(groups)).
		Int("heads_per_group", groups[0].NumHeads).
		Str("criterion", string(opts.Criterion)).
		Bool("global_sort", opts.GlobalSort).
		Int("iterations", iterations).
		Msg("pruner initialized")

	return p, nil
}

// newScorer builds the strategy for the configured criterion. Activation
// scorers attach observers to each group's output projection.
func (p *HeadPruner[B]) newScorer() headScorer[B] {
	switch p.criterion {
	case L1Weight:
		return &weightNormScorer[B]{ord: 1}
	case L2Weight:
		return &weightNormScorer[B]{ord: 2}
	case L1Activation, L2Activation:
		ord := 1
		if p.criterion == L2Activation {
			ord = 2
		}
		s := newActivationScorer[B](ord)
		for _, g := range p.groups {
			s.attach(g)
		}
		return s
	case TaylorFO:
		return &taylorScorer[B]{}
	}
	panic("prune: unreachable criterion " + string(p.criterion))
}

// Compress runs the configured number of score-mask-finetune iterations.
//
// Errors from the trainer callback abort the run; already-applied masks
// are not rolled back and the pruner cannot be restarted.
func (p *HeadPruner[B]) Compress() error {
	if p.state != StateIdle {
		return fmt.Errorf("prune: compress cannot restart from state %q", p.state)
	}

	for iter := 0; iter < p.iterations; iter++ {
		p.logger.Info().Int("iteration", iter).Msg("starting pruning iteration")

		p.state = StateScoring
		if p.criterion.NeedsTrainer() {
			if err := p.calibrate(); err != nil {
				p.state = StateDone
				return fmt.Errorf("prune: calibration pass failed: %w", err)
			}
		}

		p.state = StateMasking
		p.updateMask(iter)

		if iter < p.iterations-1 {
			p.state = StateFinetuning
			if err := p.finetune(); err != nil {
				p.state = StateDone
				return fmt.Errorf("prune: finetuning failed: %w", err)
			}
			// Weight values changed; stale statistics must not leak
			// into the next scoring pass.
			p.scorer.Reset()
		}
	}

	p.state = StateDone
	p.logSummary()
	return nil
}

// calibrate runs the trainer once in evaluation mode (epoch 0) and
// restores the model's previous training mode on all exits.
func (p *HeadPruner[B]) calibrate() error {
	prev := p.model.Training()
	p.model.SetTraining(false)
	defer p.model.SetTraining(prev)

	return p.trainer(p.model, p.optimizer, 0)
}

// finetune runs the configured number of finetuning epochs in training
// mode. Masks are reapplied on every forward pass, so masked entries
// receive no gradient updates that would undo pruning.
func (p *HeadPruner[B]) finetune() error {
	prev := p.model.Training()
	p.model.SetTraining(true)
	defer p.model.SetTraining(prev)

	for epoch := 1; epoch <= p.epochs; epoch++ {
		if err := p.trainer(p.model, p.optimizer, epoch); err != nil {
			return err
		}
	}
	return nil
}

// State returns the controller state.
func (p *HeadPruner[B]) State() State {
	return p.state
}

// Groups returns the validated weight groups.
func (p *HeadPruner[B]) Groups() []*WeightGroup[B] {
	return p.groups
}

// PrunedHeads returns the registry of pruned head indices per group,
// sorted ascending. The registry grows monotonically across iterations.
func (p *HeadPruner[B]) PrunedHeads() map[int][]int {
	out := make(map[int][]int, len(p.pruned))
	for idx, heads := range p.pruned {
		list := make([]int, 0, len(heads))
		for h := range heads {
			list = append(list, h)
		}
		sort.Ints(list)
		out[idx] = list
	}
	return out
}

func (p *HeadPruner[B]) logSummary() {
	total := 0
	for _, heads := range p.pruned {
		total += len(heads)
	}
	p.logger.Info().
		Int("groups", len(p.groups)).
		Int("total_pruned_heads", total).
		Msg("compression finished")
}
