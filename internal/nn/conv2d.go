package nn

import (
	"fmt"

	"github.com/born-ml/metakit/internal/tensor"
)

// Conv2D is a 2D convolutional layer with a square kernel.
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels, k, k]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
//	out_h = (height + 2*padding - k) / stride + 1
//
// Example:
//
//	conv := nn.NewConv2D(3, 64, 7, 2, 3, false, backend) // ResNet stem
//	out := conv.Forward(images)                          // [N, 64, H/2, W/2]
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int

	weight *Parameter[B]
	bias   *Parameter[B] // nil without bias
}

// NewConv2D creates a new 2D convolutional layer with XavierUniform weights
// and a zero bias.
func NewConv2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelSize, stride, padding int,
	useBias bool,
	backend B,
) *Conv2D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 || stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid geometry kernel=%d stride=%d padding=%d", kernelSize, stride, padding))
	}

	c := &Conv2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		weight: NewParameter("weight",
			tensor.Zeros(tensor.Shape{outChannels, inChannels, kernelSize, kernelSize}, backend)),
	}
	if useBias {
		c.bias = NewParameter("bias", tensor.Zeros(tensor.Shape{outChannels}, backend))
	}
	Initialize[B](c, XavierUniform)
	return c
}

// Forward performs the convolution and adds the bias per channel.
func (c *Conv2D[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if shape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: expected %d input channels, got %d", c.inChannels, shape[1]))
	}

	output := input.Conv2D(c.weight.Tensor(), c.stride, c.padding)
	if c.bias != nil {
		output = output.Add(c.bias.Tensor().Reshape(1, c.outChannels, 1, 1))
	}
	return output
}

// Parameters returns [weight] or [weight, bias].
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	return c.NamedParameters()
}

// NamedParameters returns [weight] or [weight, bias].
func (c *Conv2D[B]) NamedParameters() []*Parameter[B] {
	if c.bias != nil {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// NamedBuffers returns nil.
func (c *Conv2D[B]) NamedBuffers() []*Buffer[B] { return nil }

// Children returns nil.
func (c *Conv2D[B]) Children() []NamedModule[B] { return nil }

// LayerSpec describes the layer for an Initializer.
//
//	fan_in  = in_channels * k * k
//	fan_out = out_channels * k * k
func (c *Conv2D[B]) LayerSpec() LayerSpec {
	area := c.kernelSize * c.kernelSize
	spec := LayerSpec{
		Kind:        "conv2d",
		FanIn:       c.inChannels * area,
		FanOut:      c.outChannels * area,
		WeightShape: tensor.Shape{c.outChannels, c.inChannels, c.kernelSize, c.kernelSize},
	}
	if c.bias != nil {
		spec.BiasShape = tensor.Shape{c.outChannels}
	}
	return spec
}

// SetInitial copies initial values into the weight and bias.
func (c *Conv2D[B]) SetInitial(weight, bias []float32) {
	copyInto(c.weight, weight)
	copyInto(c.bias, bias)
}

// Weight returns the weight parameter.
func (c *Conv2D[B]) Weight() *Parameter[B] {
	return c.weight
}

// Bias returns the bias parameter, or nil.
func (c *Conv2D[B]) Bias() *Parameter[B] {
	return c.bias
}
