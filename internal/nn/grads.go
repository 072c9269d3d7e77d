package nn

import (
	"github.com/born-ml/metakit/internal/tensor"
)

// CollectGrads attaches the gradients from an autodiff backward pass to the
// tensors currently in m's parameter slots and returns how many received one.
//
// Gradients are looked up by the slot's RawTensor, so after a functional
// override the gradient lands on the external tensor. A slot with no entry
// in grads has its gradient cleared; earlier gradients are overwritten, never
// accumulated.
func CollectGrads[B tensor.Backend](m Module[B], grads map[*tensor.RawTensor]*tensor.RawTensor) int {
	n := 0
	for _, p := range m.Parameters() {
		g, ok := grads[p.Tensor().Raw()]
		if !ok {
			p.ZeroGrad()
			continue
		}
		p.SetGrad(tensor.New(g, p.Tensor().Backend()))
		n++
	}
	return n
}

// ZeroGrad clears the gradient of every parameter in m.
func ZeroGrad[B tensor.Backend](m Module[B]) {
	for _, p := range m.Parameters() {
		p.ZeroGrad()
	}
}

// TrainableParameters freezes the parameters of the first frozen children of
// model and returns the parameters of the remaining children for an optimizer.
//
// frozen = 0 freezes nothing and returns every child's parameters. Parameters
// owned directly by model are not returned.
func TrainableParameters[B tensor.Backend](model Node[B], frozen int) []*Parameter[B] {
	var params []*Parameter[B]
	for i, child := range model.Children() {
		if i < frozen {
			for _, p := range child.Module.Parameters() {
				p.SetRequiresGrad(false)
			}
			continue
		}
		params = append(params, child.Module.Parameters()...)
	}
	return params
}
