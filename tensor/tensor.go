// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor is the public tensor API of metakit.
//
// Tensors are float32, row-major and bound to a Backend. Wrapping a backend
// with autodiff.New makes every operation differentiable.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.MustFromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
//	y := x.MatMul(x.T()).Sum()
package tensor

import "github.com/born-ml/metakit/internal/tensor"

// Shape is a tensor's dimensions, outermost first.
type Shape = tensor.Shape

// RawTensor is an untyped float32 buffer with a shape.
type RawTensor = tensor.RawTensor

// Backend computes tensor operations.
type Backend = tensor.Backend

// Tensor is a float32 tensor bound to backend B.
type Tensor[B Backend] = tensor.Tensor[B]

// New wraps raw on backend b without copying.
func New[B Backend](raw *RawTensor, b B) *Tensor[B] {
	return tensor.New(raw, b)
}

// FromSlice copies data into a new tensor of the given shape.
func FromSlice[B Backend](data []float32, shape Shape, b B) (*Tensor[B], error) {
	return tensor.FromSlice(data, shape, b)
}

// MustFromSlice is FromSlice that panics on a size mismatch.
func MustFromSlice[B Backend](data []float32, shape Shape, b B) *Tensor[B] {
	return tensor.MustFromSlice(data, shape, b)
}

// Zeros returns a tensor filled with 0.
func Zeros[B Backend](shape Shape, b B) *Tensor[B] { return tensor.Zeros(shape, b) }

// Ones returns a tensor filled with 1.
func Ones[B Backend](shape Shape, b B) *Tensor[B] { return tensor.Ones(shape, b) }

// Full returns a tensor filled with value.
func Full[B Backend](shape Shape, value float32, b B) *Tensor[B] {
	return tensor.Full(shape, value, b)
}

// Randn samples a standard normal tensor.
func Randn[B Backend](shape Shape, b B) *Tensor[B] { return tensor.Randn(shape, b) }

// Rand samples a uniform [0, 1) tensor.
func Rand[B Backend](shape Shape, b B) *Tensor[B] { return tensor.Rand(shape, b) }

// Uniform samples a uniform [low, high) tensor.
func Uniform[B Backend](shape Shape, low, high float64, b B) *Tensor[B] {
	return tensor.Uniform(shape, low, high, b)
}
