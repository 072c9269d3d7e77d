package tensor

// Backend defines the operations a compute backend provides.
//
// Implementations:
//   - cpu.CPUBackend: naive float32 kernels
//   - autodiff.AutodiffBackend: decorator recording every op on a GradientTape
//
// Every method returns a new RawTensor and leaves its inputs untouched.
// Reshape may share the input's buffer.
type Backend interface {
	// Element-wise binary operations with NumPy broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// MatMul multiplies 2D matrices: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	// Shape operations.
	Transpose(t *RawTensor) *RawTensor
	Reshape(t *RawTensor, newShape Shape) *RawTensor

	// Scalar operations.
	MulScalar(x *RawTensor, scalar float32) *RawTensor
	AddScalar(x *RawTensor, scalar float32) *RawTensor

	// Element-wise math.
	Exp(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor
	Abs(x *RawTensor) *RawTensor
	Sqrt(x *RawTensor) *RawTensor
	ReLU(x *RawTensor) *RawTensor
	Softplus(x *RawTensor) *RawTensor

	// Reductions.
	Sum(x *RawTensor) *RawTensor
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor

	// Convolution and pooling over [N, C, H, W] inputs.
	Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor
	Conv2DInputBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	Conv2DKernelBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	MaxPool2D(input *RawTensor, kernelSize, stride, padding int) *RawTensor
	MaxPool2DBackward(input, grad *RawTensor, kernelSize, stride, padding int) *RawTensor
	AvgPool2D(input *RawTensor, kernelSize, stride, padding int) *RawTensor
	AvgPool2DBackward(input, grad *RawTensor, kernelSize, stride, padding int) *RawTensor

	// Name identifies the backend in logs.
	Name() string
}
