// Package models holds the networks of a Feature-Critic training loop: the
// ResNet-18 feature extractor, the classifier heads and the learned-loss
// critics.
package models

import (
	"fmt"

	"github.com/born-ml/metakit/internal/nn"
	"github.com/born-ml/metakit/internal/tensor"
)

// Critic is a learned auxiliary loss:
//
//	mean(softplus(fc2(relu(fc1(x)))))
//
// The result is a scalar tensor and always positive.
type Critic[B tensor.Backend] struct {
	inFeatures int
	flattenFTF bool

	fc1 *nn.Linear[B]
	fc2 *nn.Linear[B]
}

// NewCriticMLP creates a critic over [N, h] feature rows with hh hidden units.
func NewCriticMLP[B tensor.Backend](h, hh int, backend B) *Critic[B] {
	return &Critic[B]{
		inFeatures: h,
		fc1:        nn.NewLinear(h, hh, backend),
		fc2:        nn.NewLinear(hh, 1, backend),
	}
}

// NewCriticFlattenFTF creates a critic over feature-transpose-feature
// products: [N, h, h] inputs (or rows already flattened to h²).
func NewCriticFlattenFTF[B tensor.Backend](h, hh int, backend B) *Critic[B] {
	return &Critic[B]{
		inFeatures: h * h,
		flattenFTF: true,
		fc1:        nn.NewLinear(h*h, hh, backend),
		fc2:        nn.NewLinear(hh, 1, backend),
	}
}

// Forward returns the scalar critic loss for x.
func (c *Critic[B]) Forward(x *tensor.Tensor[B]) *tensor.Tensor[B] {
	if c.flattenFTF && len(x.Shape()) == 3 {
		x = x.Flatten()
	}
	if len(x.Shape()) != 2 || x.Shape()[1] != c.inFeatures {
		panic(fmt.Sprintf("critic: expected [N,%d], got %v", c.inFeatures, x.Shape()))
	}
	return c.fc2.Forward(c.fc1.Forward(x).ReLU()).Softplus().Mean()
}

// InFeatures returns the width of an input row.
func (c *Critic[B]) InFeatures() int {
	return c.inFeatures
}

// Parameters returns fc1's then fc2's parameters.
func (c *Critic[B]) Parameters() []*nn.Parameter[B] {
	return append(c.fc1.Parameters(), c.fc2.Parameters()...)
}

// NamedParameters returns nil; every leaf belongs to fc1 or fc2.
func (c *Critic[B]) NamedParameters() []*nn.Parameter[B] { return nil }

// NamedBuffers returns nil.
func (c *Critic[B]) NamedBuffers() []*nn.Buffer[B] { return nil }

// Children returns fc1 and fc2.
func (c *Critic[B]) Children() []nn.NamedModule[B] {
	return []nn.NamedModule[B]{
		{Name: "fc1", Module: c.fc1},
		{Name: "fc2", Module: c.fc2},
	}
}
