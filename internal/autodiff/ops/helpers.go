package ops

import "github.com/born-ml/metakit/internal/tensor"

// reduceBroadcast sums a gradient back down to the shape of an input that was
// broadcast in the forward pass.
//
//	Forward:  a[3,1] + b[3,4] -> c[3,4]
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, target tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(target) {
		return grad
	}
	if len(target) == 0 {
		return backend.Sum(grad)
	}

	result := grad
	for len(result.Shape()) > len(target) {
		result = backend.SumDim(result, 0, false)
	}
	for i, dim := range target {
		if dim == 1 && result.Shape()[i] > 1 {
			result = backend.SumDim(result, i, true)
		}
	}
	if !result.Shape().Equal(target) {
		result = backend.Reshape(result, target)
	}
	return result
}

// expandTo broadcasts grad (already shaped to broadcast against shape) to shape.
func expandTo(grad *tensor.RawTensor, shape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	ones := tensor.MustRaw(shape)
	data := ones.Data()
	for i := range data {
		data[i] = 1
	}
	return backend.Mul(ones, grad)
}

// elementwise builds a tensor of x's shape from f applied to x's elements.
func elementwise(x *tensor.RawTensor, f func(float32) float32) *tensor.RawTensor {
	out := tensor.MustRaw(x.Shape())
	dst := out.Data()
	for i, v := range x.Data() {
		dst[i] = f(v)
	}
	return out
}
