package ops

import (
	"fmt"
	"math"

	"github.com/born-ml/metakit/internal/tensor"
)

// MulScalarOp records output = input * scalar.
type MulScalarOp struct {
	base
	scalar float32
}

// NewMulScalarOp creates a new MulScalarOp.
func NewMulScalarOp(input, output *tensor.RawTensor, scalar float32) *MulScalarOp {
	return &MulScalarOp{base: record(output, input), scalar: scalar}
}

// Backward scales the gradient by the same scalar.
func (op *MulScalarOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(outputGrad, op.scalar)}
}

// AddScalarOp records output = input + scalar.
type AddScalarOp struct{ base }

// NewAddScalarOp creates a new AddScalarOp.
func NewAddScalarOp(input, output *tensor.RawTensor) *AddScalarOp {
	return &AddScalarOp{record(output, input)}
}

// Backward passes the gradient through unchanged.
func (op *AddScalarOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad}
}

// UnaryKind selects the element-wise function of a UnaryOp.
type UnaryKind int

// Supported element-wise functions.
const (
	Exp UnaryKind = iota
	Log
	Abs
	Sqrt
	ReLU
	Softplus
)

// String returns the function name.
func (k UnaryKind) String() string {
	switch k {
	case Exp:
		return "exp"
	case Log:
		return "log"
	case Abs:
		return "abs"
	case Sqrt:
		return "sqrt"
	case ReLU:
		return "relu"
	case Softplus:
		return "softplus"
	default:
		return fmt.Sprintf("unary(%d)", int(k))
	}
}

// UnaryOp records output = f(input) for an element-wise f.
//
// Backward multiplies outputGrad by f'(input):
//   - exp:      e^x (the output)
//   - log:      1/x
//   - abs:      sign(x), 0 at 0
//   - sqrt:     1/(2·sqrt(x))
//   - relu:     1 if x > 0 else 0
//   - softplus: sigmoid(x)
type UnaryOp struct {
	base
	kind UnaryKind
}

// NewUnaryOp creates a new UnaryOp.
func NewUnaryOp(kind UnaryKind, input, output *tensor.RawTensor) *UnaryOp {
	return &UnaryOp{base: record(output, input), kind: kind}
}

// Kind returns the element-wise function.
func (op *UnaryOp) Kind() UnaryKind {
	return op.kind
}

// Backward computes the input gradient.
func (op *UnaryOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	input := op.inputs[0]

	var local *tensor.RawTensor
	switch op.kind {
	case Exp:
		local = op.output
	case Log:
		local = elementwise(input, func(v float32) float32 { return 1 / v })
	case Abs:
		local = elementwise(input, func(v float32) float32 {
			switch {
			case v > 0:
				return 1
			case v < 0:
				return -1
			default:
				return 0
			}
		})
	case Sqrt:
		local = elementwise(op.output, func(v float32) float32 { return 0.5 / v })
	case ReLU:
		local = elementwise(input, func(v float32) float32 {
			if v > 0 {
				return 1
			}
			return 0
		})
	case Softplus:
		local = elementwise(input, func(v float32) float32 {
			return float32(1 / (1 + math.Exp(-float64(v))))
		})
	default:
		panic(fmt.Sprintf("unary backward: unknown kind %v", op.kind))
	}

	return []*tensor.RawTensor{backend.Mul(outputGrad, local)}
}
