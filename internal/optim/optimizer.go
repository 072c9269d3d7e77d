// Package optim updates parameters from gradients and schedules the
// learning rate.
//
// Updates write into the tensor currently held by each parameter slot, so an
// optimizer keeps working after paramtree.Override or HotSwap has rebound a
// slot; it then updates whatever tensor the slot holds.
//
// Example:
//
//	opt := optim.NewSGD(critic.Parameters(), optim.SGDConfig{LR: 0.01})
//	for epoch := range epochs {
//	    opt.SetLR(float32(optim.LearningRate(0.01, epoch)))
//	    grads := autodiff.Backward(loss, backend)
//	    opt.Step(grads)
//	    opt.ZeroGrad()
//	}
package optim

import (
	"github.com/born-ml/metakit/internal/nn"
	"github.com/born-ml/metakit/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies one update from a gradient map returned by
	// autodiff.Backward. Parameters without an entry are skipped.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears the gradients attached to the parameters.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32

	// SetLR replaces the learning rate, e.g. from a schedule.
	SetLR(lr float32)
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float32 // Learning rate
}

// getGradient returns the gradient of the tensor currently in param's slot,
// or nil when it did not take part in the backward pass.
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	return grads[param.Tensor().Raw()]
}
