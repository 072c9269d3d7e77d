package nn

import (
	"fmt"

	"github.com/born-ml/metakit/internal/tensor"
)

// BatchNormEps is added to the running variance before the square root.
const BatchNormEps = 1e-5

// BatchNorm2D normalizes [N, C, H, W] inputs per channel with its running
// statistics:
//
//	y = (x - running_mean) / sqrt(running_var + eps) * weight + bias
//
// The running statistics are buffers filled by weight loading; they are never
// updated from batch statistics. weight and bias are parameters.
type BatchNorm2D[B tensor.Backend] struct {
	numFeatures int

	weight      *Parameter[B]
	bias        *Parameter[B]
	runningMean *Buffer[B]
	runningVar  *Buffer[B]
}

// NewBatchNorm2D creates an identity-initialized batch-norm layer:
// weight 1, bias 0, running mean 0, running variance 1.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, backend B) *BatchNorm2D[B] {
	shape := tensor.Shape{numFeatures}
	return &BatchNorm2D[B]{
		numFeatures: numFeatures,
		weight:      NewParameter("weight", tensor.Ones(shape, backend)),
		bias:        NewParameter("bias", tensor.Zeros(shape, backend)),
		runningMean: NewBuffer("running_mean", tensor.Zeros(shape, backend)),
		runningVar:  NewBuffer("running_var", tensor.Ones(shape, backend)),
	}
}

// Forward applies the normalization.
func (bn *BatchNorm2D[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	shape := input.Shape()
	if len(shape) != 4 || shape[1] != bn.numFeatures {
		panic(fmt.Sprintf("batchnorm2d: expected [N,%d,H,W], got %v", bn.numFeatures, shape))
	}

	c := bn.numFeatures
	mean := bn.runningMean.Tensor().Reshape(1, c, 1, 1)
	std := bn.runningVar.Tensor().AddScalar(BatchNormEps).Sqrt().Reshape(1, c, 1, 1)
	w := bn.weight.Tensor().Reshape(1, c, 1, 1)
	b := bn.bias.Tensor().Reshape(1, c, 1, 1)

	return input.Sub(mean).Div(std).Mul(w).Add(b)
}

// Parameters returns [weight, bias].
func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	return bn.NamedParameters()
}

// NamedParameters returns [weight, bias].
func (bn *BatchNorm2D[B]) NamedParameters() []*Parameter[B] {
	return []*Parameter[B]{bn.weight, bn.bias}
}

// NamedBuffers returns [running_mean, running_var].
func (bn *BatchNorm2D[B]) NamedBuffers() []*Buffer[B] {
	return []*Buffer[B]{bn.runningMean, bn.runningVar}
}

// Children returns nil.
func (bn *BatchNorm2D[B]) Children() []NamedModule[B] { return nil }

// RunningMean returns the running mean buffer.
func (bn *BatchNorm2D[B]) RunningMean() *Buffer[B] {
	return bn.runningMean
}

// RunningVar returns the running variance buffer.
func (bn *BatchNorm2D[B]) RunningVar() *Buffer[B] {
	return bn.runningVar
}
