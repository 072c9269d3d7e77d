// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the SGD optimizer and the step learning-rate schedule.
//
// Example:
//
//	opt := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.1, Momentum: 0.9})
//	for epoch := 1; epoch <= epochs; epoch++ {
//	    opt.SetLR(float32(optim.LearningRate(0.1, epoch)))
//	    grads := autodiff.Backward(loss, backend)
//	    opt.Step(grads)
//	}
package optim

import (
	"github.com/born-ml/metakit/internal/optim"
	"github.com/born-ml/metakit/nn"
	"github.com/born-ml/metakit/tensor"
)

// Optimizer updates parameters from gradients.
type Optimizer = optim.Optimizer

// SGD is stochastic gradient descent with optional momentum.
type SGD[B tensor.Backend] = optim.SGD[B]

// SGDConfig configures SGD.
type SGDConfig = optim.SGDConfig

// NewSGD creates an SGD optimizer over params.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig) *SGD[B] {
	return optim.NewSGD(params, config)
}

// LearningRate returns initLR decayed by 0.2 after epochs 60, 120 and 160.
func LearningRate(initLR float64, epoch int) float64 {
	return optim.LearningRate(initLR, epoch)
}
