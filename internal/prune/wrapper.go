package prune

import (
	"github.com/born-ml/prune/internal/nn"
	"github.com/born-ml/prune/internal/tensor"
)

// NamedLinear pairs a Linear layer with its fully qualified module name.
type NamedLinear[B tensor.Backend] struct {
	Name   string
	Linear *nn.Linear[B]
}

// Model is the surface the pruning engine needs from a model. The concrete
// model stays opaque; the trainer callback works with it directly.
type Model[B tensor.Backend] interface {
	// Forward runs the model on one input. Used for graph tracing with
	// the dummy input.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// NamedLinears returns every Linear layer with its module name, in
	// deterministic model order.
	NamedLinears() []NamedLinear[B]

	// Parameters returns all trainable parameters.
	Parameters() []*nn.Parameter[B]

	// SetTraining switches between training and evaluation mode.
	SetTraining(training bool)

	// Training reports the current mode.
	Training() bool
}

// LinearWrapper is a pruning handle around one selected Linear layer. It
// carries the module name, the resolved sparsity target, and the group the
// layer was assigned to. Mask state lives on the wrapped Linear itself.
type LinearWrapper[B tensor.Backend] struct {
	name     string
	linear   *nn.Linear[B]
	sparsity float64
	group    int // -1 until grouped
}

func newLinearWrapper[B tensor.Backend](name string, linear *nn.Linear[B], sparsity float64) *LinearWrapper[B] {
	return &LinearWrapper[B]{
		name:     name,
		linear:   linear,
		sparsity: sparsity,
		group:    -1,
	}
}

// Name returns the wrapped module's name.
func (w *LinearWrapper[B]) Name() string {
	return w.name
}

// Linear returns the wrapped layer.
func (w *LinearWrapper[B]) Linear() *nn.Linear[B] {
	return w.linear
}

// Sparsity returns the configured sparsity target.
func (w *LinearWrapper[B]) Sparsity() float64 {
	return w.sparsity
}

// GroupIndex returns the index of the group this wrapper belongs to, or -1
// if ungrouped.
func (w *LinearWrapper[B]) GroupIndex() int {
	return w.group
}
