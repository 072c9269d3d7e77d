// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation.
//
// The autodiff backend wraps another backend and records every operation on
// a gradient tape while recording is on. Backward walks the tape from an
// output and returns gradients keyed by input RawTensor.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	w := tensor.Ones(tensor.Shape{3}, backend)
//	loss := w.Mul(w).Sum()
//	grads := autodiff.Backward(loss, backend)
//	gw := grads[w.Raw()] // 2·w
package autodiff

import (
	"github.com/born-ml/metakit/internal/autodiff"
	"github.com/born-ml/metakit/tensor"
)

// Backend is a differentiable wrapper around B.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// GradientTape records operations for Backward.
type GradientTape = autodiff.GradientTape

// New wraps backend with gradient recording.
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// Backward computes d t / d x for every recorded input x, seeding with ones.
func Backward[B tensor.Backend](t *tensor.Tensor[*Backend[B]], backend *Backend[B]) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(t, backend)
}

// GradOf returns the gradient of t in grads, or nil.
func GradOf[B tensor.Backend](grads map[*tensor.RawTensor]*tensor.RawTensor, t *tensor.Tensor[B]) *tensor.Tensor[B] {
	return autodiff.GradOf(grads, t)
}
