package nn

import (
	"github.com/born-ml/metakit/internal/tensor"
)

// ReLU applies f(x) = max(0, x) element-wise.
type ReLU[B tensor.Backend] struct{}

// NewReLU creates a new ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies ReLU.
func (r *ReLU[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	return input.ReLU()
}

// Parameters returns nil.
func (r *ReLU[B]) Parameters() []*Parameter[B] {
	return nil
}

// Softplus applies f(x) = ln(1 + e^x) element-wise.
//
// Used as the output activation of the critics so the learned loss is
// strictly positive.
type Softplus[B tensor.Backend] struct{}

// NewSoftplus creates a new Softplus activation module.
func NewSoftplus[B tensor.Backend]() *Softplus[B] {
	return &Softplus[B]{}
}

// Forward applies Softplus.
func (s *Softplus[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	return input.Softplus()
}

// Parameters returns nil.
func (s *Softplus[B]) Parameters() []*Parameter[B] {
	return nil
}

// Flatten reshapes [N, ...] into [N, prod(...)].
type Flatten[B tensor.Backend] struct{}

// NewFlatten creates a new Flatten module.
func NewFlatten[B tensor.Backend]() *Flatten[B] {
	return &Flatten[B]{}
}

// Forward flattens every dimension after the first.
func (f *Flatten[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	return input.Flatten()
}

// Parameters returns nil.
func (f *Flatten[B]) Parameters() []*Parameter[B] {
	return nil
}

// L1Penalty returns |t| element-wise.
func L1Penalty[B tensor.Backend](t *tensor.Tensor[B]) *tensor.Tensor[B] {
	return t.Abs()
}
