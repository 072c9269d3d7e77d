// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides layers whose parameters live in rebindable slots.
//
// A Parameter holds the tensor a layer reads on every Forward. Rebinding it
// to another tensor (see the paramtree package) changes what the layer
// computes without rebuilding the model, which is what meta-learning inner
// loops need.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	model := nn.NewSequential[B](
//	    nn.NewLinear(512, 64, backend),
//	    nn.NewReLU[B](),
//	    nn.NewLinear(64, 7, backend),
//	)
//	out := model.Forward(x)
package nn

import (
	"github.com/born-ml/metakit/internal/nn"
	"github.com/born-ml/metakit/tensor"
)

// Module is anything with a Forward pass and parameters.
type Module[B tensor.Backend] = nn.Module[B]

// Node is a Module that exposes its named parameters, buffers and children.
type Node[B tensor.Backend] = nn.Node[B]

// NamedModule is a child module with its attribute name.
type NamedModule[B tensor.Backend] = nn.NamedModule[B]

// Parameter is a rebindable, trainable tensor slot.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// Buffer is a rebindable, non-trainable tensor slot.
type Buffer[B tensor.Backend] = nn.Buffer[B]

// NewParameter creates a parameter slot holding t.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// NewBuffer creates a buffer slot holding t.
func NewBuffer[B tensor.Backend](name string, t *tensor.Tensor[B]) *Buffer[B] {
	return nn.NewBuffer(name, t)
}

// Layers.
type (
	Linear[B tensor.Backend]      = nn.Linear[B]
	Conv2D[B tensor.Backend]      = nn.Conv2D[B]
	BatchNorm2D[B tensor.Backend] = nn.BatchNorm2D[B]
	MaxPool2D[B tensor.Backend]   = nn.MaxPool2D[B]
	AvgPool2D[B tensor.Backend]   = nn.AvgPool2D[B]
	ReLU[B tensor.Backend]        = nn.ReLU[B]
	Softplus[B tensor.Backend]    = nn.Softplus[B]
	Flatten[B tensor.Backend]     = nn.Flatten[B]
	Sequential[B tensor.Backend]  = nn.Sequential[B]
)

// NewLinear creates a Xavier-initialized fully connected layer.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, backend)
}

// NewConv2D creates a square-kernel 2D convolution.
func NewConv2D[B tensor.Backend](inChannels, outChannels, kernelSize, stride, padding int, useBias bool, backend B) *Conv2D[B] {
	return nn.NewConv2D(inChannels, outChannels, kernelSize, stride, padding, useBias, backend)
}

// NewBatchNorm2D creates a batch norm layer that normalizes with running statistics.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, backend B) *BatchNorm2D[B] {
	return nn.NewBatchNorm2D(numFeatures, backend)
}

// NewMaxPool2D creates a max pooling layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride, padding int) *MaxPool2D[B] {
	return nn.NewMaxPool2D[B](kernelSize, stride, padding)
}

// NewAvgPool2D creates an average pooling layer.
func NewAvgPool2D[B tensor.Backend](kernelSize, stride, padding int) *AvgPool2D[B] {
	return nn.NewAvgPool2D[B](kernelSize, stride, padding)
}

// NewReLU creates a ReLU activation.
func NewReLU[B tensor.Backend]() *ReLU[B] { return nn.NewReLU[B]() }

// NewSoftplus creates a Softplus activation.
func NewSoftplus[B tensor.Backend]() *Softplus[B] { return nn.NewSoftplus[B]() }

// NewFlatten creates a layer that flattens all but the batch dimension.
func NewFlatten[B tensor.Backend]() *Flatten[B] { return nn.NewFlatten[B]() }

// NewSequential chains modules; children are named "0", "1", ...
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// L1Penalty returns |t| element-wise.
func L1Penalty[B tensor.Backend](t *tensor.Tensor[B]) *tensor.Tensor[B] {
	return nn.L1Penalty(t)
}

// CollectParameters returns n's parameters followed by its children's, recursively.
func CollectParameters[B tensor.Backend](n Node[B]) []*Parameter[B] {
	return nn.CollectParameters(n)
}

// CollectGrads attaches grads to the tensors currently held by m's
// parameters and returns how many received one.
func CollectGrads[B tensor.Backend](m Module[B], grads map[*tensor.RawTensor]*tensor.RawTensor) int {
	return nn.CollectGrads(m, grads)
}

// ZeroGrad clears the gradient of every parameter of m.
func ZeroGrad[B tensor.Backend](m Module[B]) {
	nn.ZeroGrad(m)
}

// TrainableParameters freezes the first frozen children of model and
// returns the parameters of the rest.
func TrainableParameters[B tensor.Backend](model Node[B], frozen int) []*Parameter[B] {
	return nn.TrainableParameters(model, frozen)
}
