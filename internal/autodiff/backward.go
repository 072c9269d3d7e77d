package autodiff

import (
	"github.com/born-ml/metakit/internal/tensor"
)

// Backward computes gradients of t using the backend's tape.
//
// The seed gradient is ones with t's shape. Gradient kernels run on the
// wrapped backend, so they never land on the tape.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	x := tensor.Ones(tensor.Shape{2}, backend)
//	y := x.Mul(x).Sum()
//	grads := autodiff.Backward(y, backend)
//	gx := grads[x.Raw()]
func Backward[B tensor.Backend](
	t *tensor.Tensor[*AutodiffBackend[B]],
	backend *AutodiffBackend[B],
) map[*tensor.RawTensor]*tensor.RawTensor {
	seed := tensor.MustRaw(t.Shape())
	data := seed.Data()
	for i := range data {
		data[i] = 1
	}
	return backend.tape.Backward(t.Raw(), seed, backend.inner)
}

// GradOf looks up the gradient of t in grads and wraps it on t's backend.
// It returns nil when t received no gradient.
func GradOf[B tensor.Backend](grads map[*tensor.RawTensor]*tensor.RawTensor, t *tensor.Tensor[B]) *tensor.Tensor[B] {
	g, ok := grads[t.Raw()]
	if !ok {
		return nil
	}
	return tensor.New(g, t.Backend())
}
