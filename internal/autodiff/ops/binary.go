package ops

import "github.com/born-ml/metakit/internal/tensor"

// AddOp records output = a + b.
//
// Backward: both inputs receive outputGrad, reduced over any broadcast dimensions.
type AddOp struct{ base }

// NewAddOp creates a new AddOp.
func NewAddOp(a, b, output *tensor.RawTensor) *AddOp {
	return &AddOp{record(output, a, b)}
}

// Backward computes input gradients for addition.
func (op *AddOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		reduceBroadcast(outputGrad, a.Shape(), backend),
		reduceBroadcast(outputGrad, b.Shape(), backend),
	}
}

// SubOp records output = a - b.
type SubOp struct{ base }

// NewSubOp creates a new SubOp.
func NewSubOp(a, b, output *tensor.RawTensor) *SubOp {
	return &SubOp{record(output, a, b)}
}

// Backward: grad_a = outputGrad, grad_b = -outputGrad.
func (op *SubOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		reduceBroadcast(outputGrad, a.Shape(), backend),
		reduceBroadcast(backend.MulScalar(outputGrad, -1), b.Shape(), backend),
	}
}

// MulOp records output = a * b.
type MulOp struct{ base }

// NewMulOp creates a new MulOp.
func NewMulOp(a, b, output *tensor.RawTensor) *MulOp {
	return &MulOp{record(output, a, b)}
}

// Backward: grad_a = outputGrad * b, grad_b = outputGrad * a.
func (op *MulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		reduceBroadcast(backend.Mul(outputGrad, b), a.Shape(), backend),
		reduceBroadcast(backend.Mul(outputGrad, a), b.Shape(), backend),
	}
}

// DivOp records output = a / b.
type DivOp struct{ base }

// NewDivOp creates a new DivOp.
func NewDivOp(a, b, output *tensor.RawTensor) *DivOp {
	return &DivOp{record(output, a, b)}
}

// Backward: grad_a = outputGrad / b, grad_b = -outputGrad * a / b².
func (op *DivOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	gradA := backend.Div(outputGrad, b)
	gradB := backend.MulScalar(backend.Div(backend.Mul(outputGrad, op.output), b), -1)
	return []*tensor.RawTensor{
		reduceBroadcast(gradA, a.Shape(), backend),
		reduceBroadcast(gradB, b.Shape(), backend),
	}
}

// MatMulOp records output = a @ b for 2D operands.
//
// Backward: grad_a = outputGrad @ bᵀ, grad_b = aᵀ @ outputGrad.
type MatMulOp struct{ base }

// NewMatMulOp creates a new MatMulOp.
func NewMatMulOp(a, b, output *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{record(output, a, b)}
}

// Backward computes input gradients for matrix multiplication.
func (op *MatMulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		backend.MatMul(outputGrad, backend.Transpose(b)),
		backend.MatMul(backend.Transpose(a), outputGrad),
	}
}

// TransposeOp records output = inputᵀ.
//
// The CPU backend copies on transpose, so without this op a Linear layer's
// gradient would stop at the transposed copy and never reach the weight.
type TransposeOp struct{ base }

// NewTransposeOp creates a new TransposeOp.
func NewTransposeOp(input, output *tensor.RawTensor) *TransposeOp {
	return &TransposeOp{record(output, input)}
}

// Backward transposes the gradient back.
func (op *TransposeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Transpose(outputGrad)}
}

// ReshapeOp records output = reshape(input).
type ReshapeOp struct{ base }

// NewReshapeOp creates a new ReshapeOp.
func NewReshapeOp(input, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{record(output, input)}
}

// Backward reshapes the gradient to the input's shape.
func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(outputGrad, op.inputs[0].Shape())}
}
