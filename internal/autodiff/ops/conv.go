package ops

import "github.com/born-ml/metakit/internal/tensor"

// Conv2DOp records output = Conv2D(input, kernel, stride, padding).
//
// Backward delegates both gradients to the backend kernels:
//   - d_input:  transposed convolution of d_output with the kernel
//   - d_kernel: correlation of the input with d_output
type Conv2DOp struct {
	base
	stride  int
	padding int
}

// NewConv2DOp creates a new Conv2DOp.
func NewConv2DOp(input, kernel, output *tensor.RawTensor, stride, padding int) *Conv2DOp {
	return &Conv2DOp{base: record(output, input, kernel), stride: stride, padding: padding}
}

// Backward computes gradients for input and kernel.
func (op *Conv2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	input, kernel := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		backend.Conv2DInputBackward(input, kernel, outputGrad, op.stride, op.padding),
		backend.Conv2DKernelBackward(input, kernel, outputGrad, op.stride, op.padding),
	}
}

// PoolKind selects the pooling reduction.
type PoolKind int

// Pooling reductions.
const (
	MaxPool PoolKind = iota
	AvgPool
)

// Pool2DOp records a max or average pooling over [N, C, H, W].
type Pool2DOp struct {
	base
	kind       PoolKind
	kernelSize int
	stride     int
	padding    int
}

// NewPool2DOp creates a new Pool2DOp.
func NewPool2DOp(kind PoolKind, input, output *tensor.RawTensor, kernelSize, stride, padding int) *Pool2DOp {
	return &Pool2DOp{
		base:       record(output, input),
		kind:       kind,
		kernelSize: kernelSize,
		stride:     stride,
		padding:    padding,
	}
}

// Backward routes the gradient back through the pooling windows.
func (op *Pool2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	input := op.inputs[0]
	if op.kind == MaxPool {
		return []*tensor.RawTensor{backend.MaxPool2DBackward(input, outputGrad, op.kernelSize, op.stride, op.padding)}
	}
	return []*tensor.RawTensor{backend.AvgPool2DBackward(input, outputGrad, op.kernelSize, op.stride, op.padding)}
}
