package nn

import (
	"fmt"

	"github.com/born-ml/metakit/internal/tensor"
)

// Linear implements a fully connected layer: y = x @ Wᵀ + b.
//
//   - x: [batch, in_features]
//   - W: [out_features, in_features]
//   - b: [out_features]
//
// Weights start from XavierUniform, biases at zero.
//
// Example:
//
//	layer := nn.NewLinear(512, 10, backend)
//	logits := layer.Forward(features) // [batch, 10]
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter[B]
	bias        *Parameter[B]
}

// NewLinear creates a new Linear layer with bias.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	l := &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", tensor.Zeros(tensor.Shape{outFeatures, inFeatures}, backend)),
		bias:        NewParameter("bias", tensor.Zeros(tensor.Shape{outFeatures}, backend)),
	}
	Initialize[B](l, XavierUniform)
	return l
}

// Forward computes x @ Wᵀ + b.
func (l *Linear[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	shape := input.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("Linear.Forward: expected 2D input [batch, features], got shape %v", shape))
	}
	if shape[1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, shape[1]))
	}

	output := input.MatMul(l.weight.Tensor().T())
	if l.bias != nil {
		output = output.Add(l.bias.Tensor().Reshape(1, l.outFeatures))
	}
	return output
}

// Parameters returns [weight, bias].
func (l *Linear[B]) Parameters() []*Parameter[B] {
	return l.NamedParameters()
}

// NamedParameters returns [weight, bias].
func (l *Linear[B]) NamedParameters() []*Parameter[B] {
	if l.bias != nil {
		return []*Parameter[B]{l.weight, l.bias}
	}
	return []*Parameter[B]{l.weight}
}

// NamedBuffers returns nil.
func (l *Linear[B]) NamedBuffers() []*Buffer[B] { return nil }

// Children returns nil.
func (l *Linear[B]) Children() []NamedModule[B] { return nil }

// LayerSpec describes the layer for an Initializer.
func (l *Linear[B]) LayerSpec() LayerSpec {
	spec := LayerSpec{
		Kind:        "linear",
		FanIn:       l.inFeatures,
		FanOut:      l.outFeatures,
		WeightShape: tensor.Shape{l.outFeatures, l.inFeatures},
	}
	if l.bias != nil {
		spec.BiasShape = tensor.Shape{l.outFeatures}
	}
	return spec
}

// SetInitial copies initial values into the weight and bias.
func (l *Linear[B]) SetInitial(weight, bias []float32) {
	copyInto(l.weight, weight)
	copyInto(l.bias, bias)
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear[B]) Bias() *Parameter[B] {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear[B]) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear[B]) OutFeatures() int {
	return l.outFeatures
}
