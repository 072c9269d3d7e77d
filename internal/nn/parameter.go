package nn

import (
	"github.com/born-ml/metakit/internal/tensor"
)

// Parameter is a named, differentiable leaf of a module.
//
// A Parameter does not own its tensor: it holds a slot that modules read on
// every Forward call. Rebind swaps the slot for another tensor without copying
// data, which is how functional overrides and hot-swapped SGD steps are
// threaded through an unchanged module.
//
// Gradients live on the tensor, not the slot. Grad reports the gradient of
// whatever tensor currently occupies the slot.
//
// Example:
//
//	w := nn.NewParameter("weight", tensor.Randn(tensor.Shape{4, 2}, backend))
//	out := x.MatMul(w.Tensor().T())
type Parameter[B tensor.Backend] struct {
	name         string
	tensor       *tensor.Tensor[B]
	requiresGrad bool
}

// NewParameter creates a parameter that requires gradients.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[B]) *Parameter[B] {
	return &Parameter[B]{
		name:         name,
		tensor:       t,
		requiresGrad: true,
	}
}

// Name returns the leaf name (e.g. "weight"), not the fully-qualified path.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the tensor currently in the slot.
func (p *Parameter[B]) Tensor() *tensor.Tensor[B] {
	return p.tensor
}

// Rebind replaces the slot with t. No data is copied.
func (p *Parameter[B]) Rebind(t *tensor.Tensor[B]) {
	p.tensor = t
}

// Shape returns the shape of the tensor in the slot.
func (p *Parameter[B]) Shape() tensor.Shape {
	return p.tensor.Shape()
}

// RequiresGrad reports whether the parameter takes part in optimization and
// functional overrides.
func (p *Parameter[B]) RequiresGrad() bool {
	return p.requiresGrad
}

// SetRequiresGrad freezes (false) or unfreezes (true) the parameter.
func (p *Parameter[B]) SetRequiresGrad(requiresGrad bool) {
	p.requiresGrad = requiresGrad
}

// Grad returns the gradient attached to the slot's tensor, or nil.
func (p *Parameter[B]) Grad() *tensor.Tensor[B] {
	return p.tensor.Grad()
}

// SetGrad attaches grad to the slot's tensor.
func (p *Parameter[B]) SetGrad(grad *tensor.Tensor[B]) {
	p.tensor.SetGrad(grad)
}

// ZeroGrad clears the gradient of the slot's tensor.
func (p *Parameter[B]) ZeroGrad() {
	p.tensor.SetGrad(nil)
}

// Buffer is a named, non-differentiable slot such as batch-norm running
// statistics. Overrides never touch buffers; weight loading does.
type Buffer[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[B]
}

// NewBuffer creates a buffer.
func NewBuffer[B tensor.Backend](name string, t *tensor.Tensor[B]) *Buffer[B] {
	return &Buffer[B]{name: name, tensor: t}
}

// Name returns the leaf name.
func (b *Buffer[B]) Name() string {
	return b.name
}

// Tensor returns the buffer's tensor.
func (b *Buffer[B]) Tensor() *tensor.Tensor[B] {
	return b.tensor
}

// Rebind replaces the buffer's tensor.
func (b *Buffer[B]) Rebind(t *tensor.Tensor[B]) {
	b.tensor = t
}
