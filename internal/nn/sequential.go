package nn

import (
	"strconv"

	"github.com/born-ml/metakit/internal/tensor"
)

// Sequential chains modules: each module's output is the next one's input.
//
// Children are named by position ("0", "1", ...), so the weight of the
// first layer of a Sequential is addressed as "0.weight".
//
// Example:
//
//	model := nn.NewSequential[Backend](
//	    nn.NewReLU[Backend](),
//	    nn.NewLinear(4096, 10, backend),
//	)
//	model.Parameters()[0] // "1.weight"
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
}

// NewSequential creates a new Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{modules: modules}
}

// Forward applies all modules in order.
func (s *Sequential[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	output := input
	for _, module := range s.modules {
		output = module.Forward(output)
	}
	return output
}

// Parameters returns all parameters from all modules.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	return CollectParameters[B](s)
}

// NamedParameters returns nil; a Sequential owns no parameters itself.
func (s *Sequential[B]) NamedParameters() []*Parameter[B] { return nil }

// NamedBuffers returns nil.
func (s *Sequential[B]) NamedBuffers() []*Buffer[B] { return nil }

// Children returns the modules named by index.
func (s *Sequential[B]) Children() []NamedModule[B] {
	children := make([]NamedModule[B], len(s.modules))
	for i, m := range s.modules {
		children[i] = NamedModule[B]{Name: strconv.Itoa(i), Module: m}
	}
	return children
}

// Add appends a module to the sequence.
func (s *Sequential[B]) Add(module Module[B]) {
	s.modules = append(s.modules, module)
}

// Len returns the number of modules in the sequence.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}

// Module returns the module at index. It panics when index is out of range.
func (s *Sequential[B]) Module(index int) Module[B] {
	if index < 0 || index >= len(s.modules) {
		panic("Sequential.Module: index out of bounds")
	}
	return s.modules[index]
}
