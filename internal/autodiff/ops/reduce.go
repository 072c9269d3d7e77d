package ops

import "github.com/born-ml/metakit/internal/tensor"

// SumOp records output = Σ input (scalar).
//
// Backward broadcasts the scalar gradient to every input element.
type SumOp struct{ base }

// NewSumOp creates a new SumOp.
func NewSumOp(input, output *tensor.RawTensor) *SumOp {
	return &SumOp{record(output, input)}
}

// Backward computes the input gradient.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{expandTo(outputGrad, op.inputs[0].Shape(), backend)}
}

// SumDimOp records a sum (or mean) along one dimension.
type SumDimOp struct {
	base
	dim     int
	keepDim bool
	mean    bool
}

// NewSumDimOp creates a new SumDimOp. dim must already be non-negative.
func NewSumDimOp(input, output *tensor.RawTensor, dim int, keepDim, mean bool) *SumDimOp {
	return &SumDimOp{base: record(output, input), dim: dim, keepDim: keepDim, mean: mean}
}

// Backward restores the reduced dimension and broadcasts along it.
func (op *SumDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inShape := op.inputs[0].Shape()

	grad := outputGrad
	if !op.keepDim {
		kept := inShape.Clone()
		kept[op.dim] = 1
		grad = backend.Reshape(grad, kept)
	}
	if op.mean {
		grad = backend.MulScalar(grad, 1/float32(inShape[op.dim]))
	}
	return []*tensor.RawTensor{expandTo(grad, inShape, backend)}
}
