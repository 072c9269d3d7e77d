package optim

import (
	"fmt"

	"github.com/born-ml/metakit/internal/nn"
	"github.com/born-ml/metakit/internal/tensor"
)

// SGD implements stochastic gradient descent with optional momentum.
//
// Without momentum:
//
//	param = param - lr * grad
//
// With momentum:
//
//	velocity = momentum * velocity + grad
//	param = param - lr * velocity
//
// Frozen parameters (RequiresGrad false) are never updated.
type SGD[B tensor.Backend] struct {
	params     []*nn.Parameter[B]
	lr         float32
	momentum   float32
	velocities map[*nn.Parameter[B]][]float32
}

// SGDConfig holds configuration for the SGD optimizer.
type SGDConfig struct {
	LR       float32 // Learning rate (default: 0.01)
	Momentum float32 // Momentum factor (default: 0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer over params.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}
	if config.Momentum < 0 || config.Momentum >= 1 {
		panic(fmt.Sprintf("sgd: momentum must be in [0, 1), got %v", config.Momentum))
	}
	return &SGD[B]{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter[B]][]float32),
	}
}

// Step performs a single in-place update of every trainable parameter with
// a gradient in grads.
func (s *SGD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, param := range s.params {
		if !param.RequiresGrad() {
			continue
		}
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		data := param.Tensor().Data()
		g := grad.Data()
		if len(g) != len(data) {
			panic(fmt.Sprintf("sgd: gradient of %q has %d elements, parameter has %d",
				param.Name(), len(g), len(data)))
		}

		if s.momentum == 0 {
			for i := range data {
				data[i] -= s.lr * g[i]
			}
			continue
		}

		v, ok := s.velocities[param]
		if !ok {
			v = make([]float32, len(data))
			s.velocities[param] = v
		}
		for i := range data {
			v[i] = s.momentum*v[i] + g[i]
			data[i] -= s.lr * v[i]
		}
	}
}

// ZeroGrad clears the gradient of every parameter.
func (s *SGD[B]) ZeroGrad() {
	for _, p := range s.params {
		p.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (s *SGD[B]) GetLR() float32 {
	return s.lr
}

// SetLR replaces the learning rate.
func (s *SGD[B]) SetLR(lr float32) {
	s.lr = lr
}
