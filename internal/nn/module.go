// Package nn implements the neural network modules used by metakit.
//
// Building blocks:
//   - Module: Forward plus Parameters, the interface every layer implements
//   - Node: the tree view (own leaves, buffers, named children) used by
//     paramtree to resolve dotted names such as "layer1.0.conv1.weight"
//   - Parameter and Buffer: rebindable slots
//   - Layers: Linear, Conv2D, BatchNorm2D, ReLU, Softplus, MaxPool2D,
//     AvgPool2D, Flatten, Sequential
//   - Initializer: explicit weight initialization from a LayerSpec
//
// Modules read their parameter slots at Forward time, never caching the
// tensors, so a slot rebound between calls takes effect on the next call.
package nn

import (
	"github.com/born-ml/metakit/internal/tensor"
)

// Module is the base interface for all neural network components.
//
//	model := nn.NewSequential[Backend](
//	    nn.NewLinear(512, 128, backend),
//	    nn.NewReLU[Backend](),
//	    nn.NewLinear(128, 10, backend),
//	)
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module.
	Forward(input *tensor.Tensor[B]) *tensor.Tensor[B]

	// Parameters returns every parameter of the module and its children,
	// in tree order.
	Parameters() []*Parameter[B]
}

// Node exposes a module's position in the parameter tree.
//
// Modules that are not Nodes (activations, pooling) are leaves without
// parameters.
type Node[B tensor.Backend] interface {
	// NamedParameters returns the module's own parameters, not its children's.
	NamedParameters() []*Parameter[B]

	// NamedBuffers returns the module's own buffers.
	NamedBuffers() []*Buffer[B]

	// Children returns the direct sub-modules with their attribute names.
	Children() []NamedModule[B]
}

// NamedModule pairs a child module with its attribute name.
type NamedModule[B tensor.Backend] struct {
	Name   string
	Module Module[B]
}

// CollectParameters gathers own parameters followed by every child's, depth-first.
func CollectParameters[B tensor.Backend](n Node[B]) []*Parameter[B] {
	params := append([]*Parameter[B](nil), n.NamedParameters()...)
	for _, child := range n.Children() {
		params = append(params, child.Module.Parameters()...)
	}
	return params
}
