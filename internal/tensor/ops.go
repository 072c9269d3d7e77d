package tensor

// Add performs element-wise addition with broadcasting.
//
// Example:
//
//	a := tensor.Ones(Shape{3, 1}, backend)
//	b := tensor.Ones(Shape{3, 5}, backend)
//	c := a.Add(b) // Shape: [3, 5]
func (t *Tensor[B]) Add(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.Add(t.raw, other.raw), t.backend)
}

// Sub performs element-wise subtraction with broadcasting.
func (t *Tensor[B]) Sub(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.Sub(t.raw, other.raw), t.backend)
}

// Mul performs element-wise multiplication with broadcasting.
func (t *Tensor[B]) Mul(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.Mul(t.raw, other.raw), t.backend)
}

// Div performs element-wise division with broadcasting.
func (t *Tensor[B]) Div(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.Div(t.raw, other.raw), t.backend)
}

// MatMul performs 2D matrix multiplication: (M, K) @ (K, N) → (M, N).
func (t *Tensor[B]) MatMul(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.MatMul(t.raw, other.raw), t.backend)
}

// T transposes a 2D tensor.
func (t *Tensor[B]) T() *Tensor[B] {
	return New(t.backend.Transpose(t.raw), t.backend)
}

// Reshape returns a tensor with the same data and a new shape.
func (t *Tensor[B]) Reshape(newShape ...int) *Tensor[B] {
	return New(t.backend.Reshape(t.raw, Shape(newShape)), t.backend)
}

// Flatten reshapes [N, ...] into [N, prod(...)].
func (t *Tensor[B]) Flatten() *Tensor[B] {
	shape := t.Shape()
	if len(shape) < 2 {
		return t.Reshape(1, t.NumElements())
	}
	return t.Reshape(shape[0], t.NumElements()/shape[0])
}

// MulScalar multiplies every element by s.
func (t *Tensor[B]) MulScalar(s float32) *Tensor[B] {
	return New(t.backend.MulScalar(t.raw, s), t.backend)
}

// AddScalar adds s to every element.
func (t *Tensor[B]) AddScalar(s float32) *Tensor[B] {
	return New(t.backend.AddScalar(t.raw, s), t.backend)
}

// Exp computes e^x element-wise.
func (t *Tensor[B]) Exp() *Tensor[B] {
	return New(t.backend.Exp(t.raw), t.backend)
}

// Log computes the natural logarithm element-wise.
func (t *Tensor[B]) Log() *Tensor[B] {
	return New(t.backend.Log(t.raw), t.backend)
}

// Abs computes |x| element-wise.
func (t *Tensor[B]) Abs() *Tensor[B] {
	return New(t.backend.Abs(t.raw), t.backend)
}

// Sqrt computes the square root element-wise.
func (t *Tensor[B]) Sqrt() *Tensor[B] {
	return New(t.backend.Sqrt(t.raw), t.backend)
}

// ReLU computes max(0, x) element-wise.
func (t *Tensor[B]) ReLU() *Tensor[B] {
	return New(t.backend.ReLU(t.raw), t.backend)
}

// Softplus computes log(1 + e^x) element-wise.
func (t *Tensor[B]) Softplus() *Tensor[B] {
	return New(t.backend.Softplus(t.raw), t.backend)
}

// Sum reduces every element to a scalar.
func (t *Tensor[B]) Sum() *Tensor[B] {
	return New(t.backend.Sum(t.raw), t.backend)
}

// Mean averages every element into a scalar.
func (t *Tensor[B]) Mean() *Tensor[B] {
	return t.Sum().MulScalar(1 / float32(t.NumElements()))
}

// SumDim sums along dim.
func (t *Tensor[B]) SumDim(dim int, keepDim bool) *Tensor[B] {
	return New(t.backend.SumDim(t.raw, dim, keepDim), t.backend)
}

// MeanDim averages along dim.
func (t *Tensor[B]) MeanDim(dim int, keepDim bool) *Tensor[B] {
	return New(t.backend.MeanDim(t.raw, dim, keepDim), t.backend)
}

// Conv2D convolves an [N, C_in, H, W] input with a [C_out, C_in, K_h, K_w] kernel.
func (t *Tensor[B]) Conv2D(kernel *Tensor[B], stride, padding int) *Tensor[B] {
	return New(t.backend.Conv2D(t.raw, kernel.raw, stride, padding), t.backend)
}

// MaxPool2D applies max pooling over the spatial dimensions.
func (t *Tensor[B]) MaxPool2D(kernelSize, stride, padding int) *Tensor[B] {
	return New(t.backend.MaxPool2D(t.raw, kernelSize, stride, padding), t.backend)
}

// AvgPool2D applies average pooling over the spatial dimensions.
// Padded cells count towards the divisor.
func (t *Tensor[B]) AvgPool2D(kernelSize, stride, padding int) *Tensor[B] {
	return New(t.backend.AvgPool2D(t.raw, kernelSize, stride, padding), t.backend)
}

// Argmax returns, for each row of a 2D tensor, the column of its largest value.
// It reads data directly and is not differentiable.
func (t *Tensor[B]) Argmax() []int {
	shape := t.Shape()
	if len(shape) != 2 {
		panic("Argmax: expected a 2D tensor")
	}
	rows, cols := shape[0], shape[1]
	data := t.Data()
	out := make([]int, rows)
	for r := 0; r < rows; r++ {
		row := data[r*cols : (r+1)*cols]
		best := 0
		for c := 1; c < cols; c++ {
			if row[c] > row[best] {
				best = c
			}
		}
		out[r] = best
	}
	return out
}
