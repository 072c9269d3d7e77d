package nn

import (
	"fmt"

	"github.com/born-ml/metakit/internal/tensor"
)

// MaxPool2D takes the maximum of each square window.
//
//	out = (in + 2*padding - kernelSize) / stride + 1
//
// Example:
//
//	pool := nn.NewMaxPool2D[Backend](3, 2, 1) // ResNet stem: [N, 64, 36, 36] -> [N, 64, 18, 18]
type MaxPool2D[B tensor.Backend] struct {
	kernelSize int
	stride     int
	padding    int
}

// NewMaxPool2D creates a new 2D max pooling layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride, padding int) *MaxPool2D[B] {
	validatePool("maxpool2d", kernelSize, stride, padding)
	return &MaxPool2D[B]{kernelSize: kernelSize, stride: stride, padding: padding}
}

// Forward applies max pooling.
func (p *MaxPool2D[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	return input.MaxPool2D(p.kernelSize, p.stride, p.padding)
}

// Parameters returns nil.
func (p *MaxPool2D[B]) Parameters() []*Parameter[B] {
	return nil
}

// AvgPool2D averages each square window. Padded cells count towards the
// divisor.
type AvgPool2D[B tensor.Backend] struct {
	kernelSize int
	stride     int
	padding    int
}

// NewAvgPool2D creates a new 2D average pooling layer.
func NewAvgPool2D[B tensor.Backend](kernelSize, stride, padding int) *AvgPool2D[B] {
	validatePool("avgpool2d", kernelSize, stride, padding)
	return &AvgPool2D[B]{kernelSize: kernelSize, stride: stride, padding: padding}
}

// Forward applies average pooling.
func (p *AvgPool2D[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	return input.AvgPool2D(p.kernelSize, p.stride, p.padding)
}

// Parameters returns nil.
func (p *AvgPool2D[B]) Parameters() []*Parameter[B] {
	return nil
}

func validatePool(op string, kernelSize, stride, padding int) {
	if kernelSize <= 0 || stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("%s: invalid geometry kernel=%d stride=%d padding=%d", op, kernelSize, stride, padding))
	}
}
