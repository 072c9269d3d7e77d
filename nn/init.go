// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/metakit/internal/nn"
	"github.com/born-ml/metakit/tensor"
)

// LayerSpec describes a layer for an Initializer.
type LayerSpec = nn.LayerSpec

// Initializer produces weight and bias values for a layer.
type Initializer = nn.Initializer

// XavierUniform is the default initializer of Linear and Conv2D.
func XavierUniform(spec LayerSpec) (weight, bias []float32) {
	return nn.XavierUniform(spec)
}

// ClassifierInit is XavierUniform for linear weights with biases set to 0.01.
func ClassifierInit(spec LayerSpec) (weight, bias []float32) {
	return nn.ClassifierInit(spec)
}

// Constant fills weights with w and biases with b.
func Constant(w, b float32) Initializer {
	return nn.Constant(w, b)
}

// Initialize applies init to every initializable layer in m.
func Initialize[B tensor.Backend](m Module[B], init Initializer) {
	nn.Initialize(m, init)
}
