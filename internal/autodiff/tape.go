package autodiff

import (
	"github.com/born-ml/metakit/internal/autodiff/ops"
	"github.com/born-ml/metakit/internal/tensor"
)

// GradientTape records operations during the forward pass and computes
// gradients during the backward pass.
//
// The tape is not safe for concurrent use; each worker owns its own backend.
type GradientTape struct {
	operations []ops.Operation
	recording  bool
}

// NewGradientTape creates a new gradient tape that is not yet recording.
func NewGradientTape() *GradientTape {
	return &GradientTape{
		operations: make([]ops.Operation, 0, 64),
	}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() {
	t.recording = true
}

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() {
	t.recording = false
}

// IsRecording returns true if the tape is currently recording operations.
func (t *GradientTape) IsRecording() bool {
	return t.recording
}

// Record adds an operation to the tape. It is a no-op while not recording.
func (t *GradientTape) Record(op ops.Operation) {
	if t.recording {
		t.operations = append(t.operations, op)
	}
}

// Clear removes all recorded operations. Recording state is preserved.
func (t *GradientTape) Clear() {
	clear(t.operations)
	t.operations = t.operations[:0]
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int {
	return len(t.operations)
}

// Backward computes gradients of output with respect to every tensor that
// contributed to it, seeding output with outputGrad.
//
// The walk starts from the most recent operation and visits the whole tape,
// so output need not be the last recorded tensor. Operations that do not
// lead to output receive no gradient. Recording is suspended for the
// duration of the walk, and the tape itself is left intact so it can be
// walked again from a different output.
func (t *GradientTape) Backward(
	output, outputGrad *tensor.RawTensor,
	backend tensor.Backend,
) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := map[*tensor.RawTensor]*tensor.RawTensor{output: outputGrad}
	if len(t.operations) == 0 {
		return grads
	}

	wasRecording := t.recording
	t.recording = false
	defer func() {
		t.recording = wasRecording
	}()

	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		opGrad, ok := grads[op.Output()]
		if !ok {
			continue
		}
		t.accumulate(op.Inputs(), op.Backward(opGrad, backend), grads, backend)
	}

	return grads
}

func (t *GradientTape) accumulate(
	inputs, inputGrads []*tensor.RawTensor,
	grads map[*tensor.RawTensor]*tensor.RawTensor,
	backend tensor.Backend,
) {
	for j, input := range inputs {
		if j >= len(inputGrads) || inputGrads[j] == nil {
			continue
		}
		if existing, ok := grads[input]; ok {
			grads[input] = backend.Add(existing, inputGrads[j])
		} else {
			grads[input] = inputGrads[j]
		}
	}
}
