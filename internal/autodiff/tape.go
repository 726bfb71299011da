package autodiff

import (
	"github.com/born-ml/prune/internal/autodiff/ops"
	"github.com/born-ml/prune/internal/tensor"
)

// GradientTape records operations during the forward pass for automatic differentiation.
// Operations are recorded in execution order and replayed in reverse during the
// backward pass. The recorded sequence is also readable as a dataflow trace.
type GradientTape struct {
	operations []ops.Operation
	recording  bool
}

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{
		operations: make([]ops.Operation, 0, 64),
	}
}

// StartRecording begins recording operations.
func (t *GradientTape) StartRecording() {
	t.recording = true
}

// StopRecording stops recording operations.
func (t *GradientTape) StopRecording() {
	t.recording = false
}

// IsRecording returns whether the tape is currently recording.
func (t *GradientTape) IsRecording() bool {
	return t.recording
}

// Record adds an operation to the tape.
func (t *GradientTape) Record(op ops.Operation) {
	t.operations = append(t.operations, op)
}

// Clear removes all recorded operations.
func (t *GradientTape) Clear() {
	t.operations = t.operations[:0]
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int {
	return len(t.operations)
}

// Operations returns the recorded operations in execution order.
// The slice is owned by the tape; callers must not mutate it.
func (t *GradientTape) Operations() []ops.Operation {
	return t.operations
}

// Truncate drops every operation recorded at index n or later. Used to
// discard a scoped trace without touching operations recorded before it.
func (t *GradientTape) Truncate(n int) {
	if n < 0 || n >= len(t.operations) {
		return
	}
	t.operations = t.operations[:n]
}

// Backward computes gradients by replaying the tape in reverse.
// outputGrad is the gradient of the loss with respect to the final output.
// Returns a map from tensor to its accumulated gradient.
func (t *GradientTape) Backward(outputGrad *tensor.RawTensor, output *tensor.RawTensor, backend tensor.Backend) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := make(map[*tensor.RawTensor]*tensor.RawTensor)
	grads[output] = outputGrad

	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]

		outGrad, ok := grads[op.Output()]
		if !ok {
			continue
		}

		inputGrads := op.Backward(outGrad, backend)
		inputs := op.Inputs()

		for j, input := range inputs {
			if inputGrads[j] == nil {
				continue
			}
			if existing, ok := grads[input]; ok {
				grads[input] = addRaw(existing, inputGrads[j])
			} else {
				grads[input] = inputGrads[j]
			}
		}
	}

	return grads
}

// addRaw accumulates two gradient tensors element-wise.
func addRaw(a, b *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(a.Shape(), a.DType(), a.Device())
	if err != nil {
		panic("autodiff: gradient accumulation: " + err.Error())
	}
	ra := result.AsFloat32()
	da := a.AsFloat32()
	db := b.AsFloat32()
	for i := range ra {
		ra[i] = da[i] + db[i]
	}
	return result
}
