package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/metakit/internal/tensor"
)

// LayerSpec describes a weight-bearing layer to an Initializer.
type LayerSpec struct {
	Kind        string // "linear" or "conv2d"
	FanIn       int
	FanOut      int
	WeightShape tensor.Shape
	BiasShape   tensor.Shape // nil when the layer has no bias
}

// Initializer computes initial weight and bias values for a layer.
//
// bias must be nil when spec.BiasShape is nil. Returned slices are copied
// into the layer's parameters.
type Initializer func(spec LayerSpec) (weight, bias []float32)

// Initializable is implemented by layers an Initializer can reset.
type Initializable interface {
	LayerSpec() LayerSpec
	SetInitial(weight, bias []float32)
}

// XavierUniform draws weights from U(-a, a) with a = sqrt(6/(fan_in+fan_out))
// and zeroes the bias.
func XavierUniform(spec LayerSpec) (weight, bias []float32) {
	bound := math.Sqrt(6.0 / float64(spec.FanIn+spec.FanOut))
	weight = make([]float32, spec.WeightShape.NumElements())
	for i := range weight {
		//nolint:gosec // G404: weight init does not need crypto randomness
		weight[i] = float32((rand.Float64()*2 - 1) * bound)
	}
	if spec.BiasShape != nil {
		bias = make([]float32, spec.BiasShape.NumElements())
	}
	return weight, bias
}

// Constant returns an Initializer filling weights with w and biases with b.
func Constant(w, b float32) Initializer {
	return func(spec LayerSpec) (weight, bias []float32) {
		weight = fill(spec.WeightShape.NumElements(), w)
		if spec.BiasShape != nil {
			bias = fill(spec.BiasShape.NumElements(), b)
		}
		return weight, bias
	}
}

// ClassifierInit is XavierUniform for linear weights with every bias set to
// 0.01. Layers other than Linear keep their current values.
func ClassifierInit(spec LayerSpec) (weight, bias []float32) {
	if spec.Kind != "linear" {
		return nil, nil
	}
	weight, _ = XavierUniform(spec)
	if spec.BiasShape != nil {
		bias = fill(spec.BiasShape.NumElements(), 0.01)
	}
	return weight, bias
}

// Initialize applies init to every Initializable module in the tree rooted at m.
// A nil weight or bias from init leaves that parameter unchanged.
func Initialize[B tensor.Backend](m Module[B], init Initializer) {
	if layer, ok := m.(Initializable); ok {
		weight, bias := init(layer.LayerSpec())
		layer.SetInitial(weight, bias)
	}
	if node, ok := m.(Node[B]); ok {
		for _, child := range node.Children() {
			Initialize(child.Module, init)
		}
	}
}

func fill(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// copyInto overwrites p's current tensor with values when values is non-nil.
func copyInto[B tensor.Backend](p *Parameter[B], values []float32) {
	if p == nil || values == nil {
		return
	}
	copy(p.Tensor().Data(), values)
}
