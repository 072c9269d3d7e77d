// Package autodiff implements reverse-mode automatic differentiation as a
// backend decorator.
//
// AutodiffBackend wraps any tensor.Backend and, while its GradientTape is
// recording, appends one ops.Operation per forward call. Gradients are keyed
// by *tensor.RawTensor identity, so a tensor that is substituted into a model
// from outside receives its own gradient entry.
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//
//	x := tensor.MustFromSlice([]float32{2}, tensor.Shape{1}, backend)
//	y := x.Mul(x)
//
//	grads := autodiff.Backward(y, backend)
//	fmt.Println(grads[x.Raw()]) // dy/dx = 2x = 4
package autodiff

import (
	"github.com/born-ml/metakit/internal/autodiff/ops"
	"github.com/born-ml/metakit/internal/tensor"
)

// AutodiffBackend wraps a Backend and records operations in a GradientTape.
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Add(a, c)
	b.tape.Record(ops.NewAddOp(a, c, result))
	return result
}

// Sub performs element-wise subtraction and records the operation.
func (b *AutodiffBackend[B]) Sub(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sub(a, c)
	b.tape.Record(ops.NewSubOp(a, c, result))
	return result
}

// Mul performs element-wise multiplication and records the operation.
func (b *AutodiffBackend[B]) Mul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Mul(a, c)
	b.tape.Record(ops.NewMulOp(a, c, result))
	return result
}

// Div performs element-wise division and records the operation.
func (b *AutodiffBackend[B]) Div(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Div(a, c)
	b.tape.Record(ops.NewDivOp(a, c, result))
	return result
}

// MatMul performs matrix multiplication and records the operation.
func (b *AutodiffBackend[B]) MatMul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.MatMul(a, c)
	b.tape.Record(ops.NewMatMulOp(a, c, result))
	return result
}

// Transpose transposes a 2D tensor and records the operation.
func (b *AutodiffBackend[B]) Transpose(t *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Transpose(t)
	b.tape.Record(ops.NewTransposeOp(t, result))
	return result
}

// Reshape changes the tensor shape and records the operation.
func (b *AutodiffBackend[B]) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Reshape(t, newShape)
	b.tape.Record(ops.NewReshapeOp(t, result))
	return result
}

// MulScalar multiplies by a scalar and records the operation.
func (b *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	result := b.inner.MulScalar(x, scalar)
	b.tape.Record(ops.NewMulScalarOp(x, result, scalar))
	return result
}

// AddScalar adds a scalar and records the operation.
func (b *AutodiffBackend[B]) AddScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	result := b.inner.AddScalar(x, scalar)
	b.tape.Record(ops.NewAddScalarOp(x, result))
	return result
}

// Exp computes e^x and records the operation.
func (b *AutodiffBackend[B]) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return b.unary(ops.Exp, x, b.inner.Exp)
}

// Log computes ln(x) and records the operation.
func (b *AutodiffBackend[B]) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return b.unary(ops.Log, x, b.inner.Log)
}

// Abs computes |x| and records the operation.
func (b *AutodiffBackend[B]) Abs(x *tensor.RawTensor) *tensor.RawTensor {
	return b.unary(ops.Abs, x, b.inner.Abs)
}

// Sqrt computes √x and records the operation.
func (b *AutodiffBackend[B]) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return b.unary(ops.Sqrt, x, b.inner.Sqrt)
}

// ReLU computes max(0, x) and records the operation.
func (b *AutodiffBackend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return b.unary(ops.ReLU, x, b.inner.ReLU)
}

// Softplus computes ln(1 + e^x) and records the operation.
func (b *AutodiffBackend[B]) Softplus(x *tensor.RawTensor) *tensor.RawTensor {
	return b.unary(ops.Softplus, x, b.inner.Softplus)
}

func (b *AutodiffBackend[B]) unary(kind ops.UnaryKind, x *tensor.RawTensor, f func(*tensor.RawTensor) *tensor.RawTensor) *tensor.RawTensor {
	result := f(x)
	b.tape.Record(ops.NewUnaryOp(kind, x, result))
	return result
}

// Sum reduces all elements to a scalar and records the operation.
func (b *AutodiffBackend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sum(x)
	b.tape.Record(ops.NewSumOp(x, result))
	return result
}

// SumDim sums along one dimension and records the operation.
func (b *AutodiffBackend[B]) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	result := b.inner.SumDim(x, dim, keepDim)
	b.tape.Record(ops.NewSumDimOp(x, result, positiveDim(dim, x), keepDim, false))
	return result
}

// MeanDim averages along one dimension and records the operation.
func (b *AutodiffBackend[B]) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	result := b.inner.MeanDim(x, dim, keepDim)
	b.tape.Record(ops.NewSumDimOp(x, result, positiveDim(dim, x), keepDim, true))
	return result
}

// Conv2D performs 2D convolution and records the operation.
func (b *AutodiffBackend[B]) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	result := b.inner.Conv2D(input, kernel, stride, padding)
	b.tape.Record(ops.NewConv2DOp(input, kernel, result, stride, padding))
	return result
}

// Conv2DInputBackward forwards to the inner backend without recording.
func (b *AutodiffBackend[B]) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.inner.Conv2DInputBackward(input, kernel, grad, stride, padding)
}

// Conv2DKernelBackward forwards to the inner backend without recording.
func (b *AutodiffBackend[B]) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.inner.Conv2DKernelBackward(input, kernel, grad, stride, padding)
}

// MaxPool2D performs max pooling and records the operation.
func (b *AutodiffBackend[B]) MaxPool2D(input *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	result := b.inner.MaxPool2D(input, kernelSize, stride, padding)
	b.tape.Record(ops.NewPool2DOp(ops.MaxPool, input, result, kernelSize, stride, padding))
	return result
}

// MaxPool2DBackward forwards to the inner backend without recording.
func (b *AutodiffBackend[B]) MaxPool2DBackward(input, grad *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	return b.inner.MaxPool2DBackward(input, grad, kernelSize, stride, padding)
}

// AvgPool2D performs average pooling and records the operation.
func (b *AutodiffBackend[B]) AvgPool2D(input *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	result := b.inner.AvgPool2D(input, kernelSize, stride, padding)
	b.tape.Record(ops.NewPool2DOp(ops.AvgPool, input, result, kernelSize, stride, padding))
	return result
}

// AvgPool2DBackward forwards to the inner backend without recording.
func (b *AutodiffBackend[B]) AvgPool2DBackward(input, grad *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	return b.inner.AvgPool2DBackward(input, grad, kernelSize, stride, padding)
}

func positiveDim(dim int, x *tensor.RawTensor) int {
	if dim < 0 {
		return dim + len(x.Shape())
	}
	return dim
}
