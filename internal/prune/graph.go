package prune

import (
	"fmt"

	"github.com/born-ml/prune/internal/autodiff"
	"github.com/born-ml/prune/internal/autodiff/ops"
	"github.com/born-ml/prune/internal/tensor"
)

// traceBackend is satisfied by backends that record a dataflow trace,
// such as the autodiff decorator backend.
type traceBackend interface {
	Tape() *autodiff.GradientTape
}

// errNoTrace instructs the caller to fall back to explicit groups.
func errNoTrace(reason string) error {
	return fmt.Errorf("prune: graph tracing failed (%s); supply explicit weight groups instead", reason)
}

// traceGroups discovers attention weight groups by running the model on a
// dummy input and inspecting the recorded dataflow. The detected pattern
// is three parallel weight projections of a common source feeding a fourth
// combined output projection.
//
// The tape and the model's training mode are restored on every exit path,
// including trace failure.
func traceGroups[B tensor.Backend](
	model Model[B],
	dummy *tensor.Tensor[float32, B],
	backend B,
	wrappers []*LinearWrapper[B],
) (groups []*WeightGroup[B], err error) {
	tb, ok := any(backend).(traceBackend)
	if !ok {
		return nil, errNoTrace("backend does not record a dataflow trace")
	}
	if dummy == nil {
		return nil, errNoTrace("no dummy input provided")
	}

	tape := tb.Tape()
	wasRecording := tape.IsRecording()
	start := tape.NumOps()
	prevTraining := model.Training()

	defer func() {
		tape.Truncate(start)
		if wasRecording {
			tape.StartRecording()
		} else {
			tape.StopRecording()
		}
		model.SetTraining(prevTraining)

		if r := recover(); r != nil {
			groups = nil
			err = errNoTrace(fmt.Sprintf("forward pass panicked: %v", r))
		}
	}()

	model.SetTraining(false)
	tape.StartRecording()
	model.Forward(dummy)
	tape.StopRecording()

	trace := tape.Operations()[start:]
	groups = detectAttentionGroups(trace, wrappers)
	if len(groups) == 0 {
		return nil, errNoTrace("no attention pattern detected in the trace")
	}
	return groups, nil
}

// detectAttentionGroups scans a recorded trace for the attention subgraph
// shape. Wrappers already consumed by one group are not reused.
func detectAttentionGroups[B tensor.Backend](trace []ops.Operation, wrappers []*LinearWrapper[B]) []*WeightGroup[B] {
	producer := make(map[*tensor.RawTensor]ops.Operation, len(trace))
	for _, op := range trace {
		producer[op.Output()] = op
	}

	weightOf := make(map[*tensor.RawTensor]*LinearWrapper[B], len(wrappers))
	for _, w := range wrappers {
		weightOf[w.linear.Weight().Tensor().Raw()] = w
	}

	projByOutput := make(map[*tensor.RawTensor]*projApp[B])
	var projOrder []ops.Operation

	for _, op := range trace {
		if op.Name() != "matmul" {
			continue
		}
		inputs := op.Inputs()
		if len(inputs) != 2 {
			continue
		}
		if w := resolveWeight(inputs[1], producer, weightOf); w != nil {
			projByOutput[op.Output()] = &projApp[B]{wrapper: w, input: inputs[0]}
			projOrder = append(projOrder, op)
		} else if w := resolveWeight(inputs[0], producer, weightOf); w != nil {
			projByOutput[op.Output()] = &projApp[B]{wrapper: w, input: inputs[1]}
			projOrder = append(projOrder, op)
		}
	}

	var groups []*WeightGroup[B]

	for _, op := range projOrder {
		out := projByOutput[op.Output()]
		if out.wrapper.group != -1 {
			continue
		}

		// Wrappers applied upstream of this projection's input, in
		// tape order, stopping the walk at each projection found.
		var feeders []*projApp[B]
		seen := make(map[*tensor.RawTensor]bool)
		var walk func(x *tensor.RawTensor)
		walk = func(x *tensor.RawTensor) {
			if seen[x] {
				return
			}
			seen[x] = true
			if p, ok := projByOutput[x]; ok {
				feeders = append(feeders, p)
				return
			}
			src, ok := producer[x]
			if !ok {
				return
			}
			for _, in := range src.Inputs() {
				walk(in)
			}
		}
		walk(out.input)

		if !isAttentionCandidate(out.wrapper, feeders, producer) {
			continue
		}

		idx := len(groups)
		g := &WeightGroup[B]{
			Index:  idx,
			Q:      feeders[0].wrapper,
			K:      feeders[1].wrapper,
			V:      feeders[2].wrapper,
			Output: out.wrapper,
		}
		for _, w := range g.Wrappers() {
			w.group = idx
		}
		groups = append(groups, g)
	}

	return groups
}

// projApp records one application of a wrapper's weight in the trace: a
// matmul whose weight-side operand resolved to that wrapper.
type projApp[B tensor.Backend] struct {
	wrapper *LinearWrapper[B]
	input   *tensor.RawTensor // data-side operand
}

// isAttentionCandidate checks that exactly three distinct ungrouped
// projections feed the candidate output projection and that all three read
// the same source tensor.
func isAttentionCandidate[B tensor.Backend](
	output *LinearWrapper[B],
	feeders []*projApp[B],
	producer map[*tensor.RawTensor]ops.Operation,
) bool {
	if len(feeders) != 3 {
		return false
	}

	distinct := map[*LinearWrapper[B]]bool{output: true}
	var source *tensor.RawTensor
	for i, f := range feeders {
		if f.wrapper.group != -1 || distinct[f.wrapper] {
			return false
		}
		distinct[f.wrapper] = true

		src := resolveSource(f.input, producer)
		if i == 0 {
			source = src
		} else if src != source {
			return false
		}
	}
	return true
}

// resolveWeight follows view operations (transpose, reshape, mask
// multiplication) backwards until it reaches a wrapper weight tensor.
// Returns nil when the chain ends anywhere else.
func resolveWeight[B tensor.Backend](
	x *tensor.RawTensor,
	producer map[*tensor.RawTensor]ops.Operation,
	weightOf map[*tensor.RawTensor]*LinearWrapper[B],
) *LinearWrapper[B] {
	for depth := 0; depth < 8; depth++ {
		if w, ok := weightOf[x]; ok {
			return w
		}
		op, ok := producer[x]
		if !ok {
			return nil
		}
		switch op.Name() {
		case "transpose", "reshape":
			x = op.Inputs()[0]
		case "mul":
			// Mask multiplication: one side is the weight.
			a, b := op.Inputs()[0], op.Inputs()[1]
			if w, ok := weightOf[a]; ok {
				return w
			}
			if w, ok := weightOf[b]; ok {
				return w
			}
			x = a
		default:
			return nil
		}
	}
	return nil
}

// resolveSource follows pure view operations backwards to the tensor a
// projection actually reads.
func resolveSource(x *tensor.RawTensor, producer map[*tensor.RawTensor]ops.Operation) *tensor.RawTensor {
	for depth := 0; depth < 8; depth++ {
		op, ok := producer[x]
		if !ok {
			return x
		}
		switch op.Name() {
		case "transpose", "reshape":
			x = op.Inputs()[0]
		default:
			return x
		}
	}
	return x
}
