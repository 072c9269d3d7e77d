// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package paramtree names, overrides and hot-swaps the parameters of a model.
//
// Every parameter and buffer has a dotted name built from child attribute
// names ("layer1.0.conv1.weight"). Override rebinds parameters to external
// tensors so gradients flow to them; HotSwap temporarily installs
// θ - lr·∇θ and restores the originals.
//
// Example:
//
//	theta := map[string]*tensor.Tensor[B]{"0.weight": w, "0.bias": b}
//	head, err := paramtree.Override(classifier, theta, paramtree.WithStrict())
//	loss := head.Forward(x).Mean()
package paramtree

import (
	"github.com/born-ml/metakit/internal/paramtree"
	"github.com/born-ml/metakit/nn"
	"github.com/born-ml/metakit/tensor"
)

// Slot is one named parameter or buffer.
type Slot[B tensor.Backend] = paramtree.Slot[B]

// Option configures Override.
type Option = paramtree.Option

// HotSwap snapshots a model's parameters and installs stepped copies.
type HotSwap[B tensor.Backend] = paramtree.HotSwap[B]

// State is a HotSwap state.
type State = paramtree.State

// HotSwap states.
const (
	Original = paramtree.Original
	Stepped  = paramtree.Stepped
)

// Walk calls fn for every parameter and buffer of root in definition order.
func Walk[B tensor.Backend](root nn.Module[B], fn func(Slot[B]) error) error {
	return paramtree.Walk(root, fn)
}

// Parameters returns the parameter slots of root.
func Parameters[B tensor.Backend](root nn.Module[B]) ([]Slot[B], error) {
	return paramtree.Parameters(root)
}

// Names returns the parameter names of root.
func Names[B tensor.Backend](root nn.Module[B]) ([]string, error) {
	return paramtree.Names(root)
}

// Resolve finds the slot called name.
func Resolve[B tensor.Backend](root nn.Module[B], name string) (Slot[B], error) {
	return paramtree.Resolve(root, name)
}

// WithStrict requires external to name exactly the differentiable parameters.
func WithStrict() Option { return paramtree.WithStrict() }

// WithShapeCheck rejects replacements of a different shape.
func WithShapeCheck() Option { return paramtree.WithShapeCheck() }

// Override rebinds the parameters of root named in external and returns root.
func Override[B tensor.Backend](root nn.Module[B], external map[string]*tensor.Tensor[B], opts ...Option) (nn.Module[B], error) {
	return paramtree.Override(root, external, opts...)
}

// NewHotSwap snapshots every parameter of root.
func NewHotSwap[B tensor.Backend](root nn.Module[B]) (*HotSwap[B], error) {
	return paramtree.NewHotSwap(root)
}
