// Package ops defines the differentiable operations recorded on a GradientTape.
//
// Every operation remembers its input and output RawTensors and knows how to
// turn the gradient of its output into gradients for its inputs.
package ops

import "github.com/born-ml/metakit/internal/tensor"

// Operation is a recorded forward computation.
type Operation interface {
	// Inputs returns the tensors the operation read, in a fixed order.
	Inputs() []*tensor.RawTensor

	// Output returns the tensor the operation produced.
	Output() *tensor.RawTensor

	// Backward maps ∂L/∂output to ∂L/∂input for each input (same order as Inputs).
	// A nil entry means no gradient flows to that input.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor
}

// base holds the bookkeeping shared by every op.
type base struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// Inputs returns the recorded inputs.
func (b *base) Inputs() []*tensor.RawTensor {
	return b.inputs
}

// Output returns the recorded output.
func (b *base) Output() *tensor.RawTensor {
	return b.output
}

func record(output *tensor.RawTensor, inputs ...*tensor.RawTensor) base {
	return base{inputs: inputs, output: output}
}
