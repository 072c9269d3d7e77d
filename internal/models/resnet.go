package models

import (
	"fmt"
	"log/slog"

	"github.com/born-ml/metakit/internal/loader"
	"github.com/born-ml/metakit/internal/nn"
	"github.com/born-ml/metakit/internal/tensor"
)

// ExtractorInputSize is the square image size the extractor's pooling is
// sized for: a 72×72 input reaches avgpool as 3×3.
const ExtractorInputSize = 72

// BasicBlock is the two-convolution residual block of ResNet-18/34.
type BasicBlock[B tensor.Backend] struct {
	conv1      *nn.Conv2D[B]
	bn1        *nn.BatchNorm2D[B]
	conv2      *nn.Conv2D[B]
	bn2        *nn.BatchNorm2D[B]
	downsample *nn.Sequential[B] // nil when the shortcut is the identity
}

// NewBasicBlock creates a block mapping inC channels to outC. A projection
// shortcut (1×1 conv + batch norm) is added when the stride or the channel
// count changes.
func NewBasicBlock[B tensor.Backend](inC, outC, stride int, backend B) *BasicBlock[B] {
	b := &BasicBlock[B]{
		conv1: nn.NewConv2D(inC, outC, 3, stride, 1, false, backend),
		bn1:   nn.NewBatchNorm2D(outC, backend),
		conv2: nn.NewConv2D(outC, outC, 3, 1, 1, false, backend),
		bn2:   nn.NewBatchNorm2D(outC, backend),
	}
	if stride != 1 || inC != outC {
		b.downsample = nn.NewSequential[B](
			nn.NewConv2D(inC, outC, 1, stride, 0, false, backend),
			nn.NewBatchNorm2D(outC, backend),
		)
	}
	return b
}

// Forward computes relu(bn2(conv2(relu(bn1(conv1(x))))) + shortcut(x)).
func (b *BasicBlock[B]) Forward(x *tensor.Tensor[B]) *tensor.Tensor[B] {
	out := b.bn1.Forward(b.conv1.Forward(x)).ReLU()
	out = b.bn2.Forward(b.conv2.Forward(out))
	identity := x
	if b.downsample != nil {
		identity = b.downsample.Forward(x)
	}
	return out.Add(identity).ReLU()
}

// Parameters returns every parameter of the block.
func (b *BasicBlock[B]) Parameters() []*nn.Parameter[B] {
	return nn.CollectParameters[B](b)
}

// NamedParameters returns nil.
func (b *BasicBlock[B]) NamedParameters() []*nn.Parameter[B] { return nil }

// NamedBuffers returns nil.
func (b *BasicBlock[B]) NamedBuffers() []*nn.Buffer[B] { return nil }

// Children returns conv1, bn1, conv2, bn2 and, if present, downsample.
func (b *BasicBlock[B]) Children() []nn.NamedModule[B] {
	children := []nn.NamedModule[B]{
		{Name: "conv1", Module: b.conv1},
		{Name: "bn1", Module: b.bn1},
		{Name: "conv2", Module: b.conv2},
		{Name: "bn2", Module: b.bn2},
	}
	if b.downsample != nil {
		children = append(children, nn.NamedModule[B]{Name: "downsample", Module: b.downsample})
	}
	return children
}

// ExtractorOptions configures NewFeatureExtractor.
type ExtractorOptions struct {
	// Weights is a SafeTensors file of pretrained ResNet-18 weights in
	// torchvision naming. Entries under "fc." are ignored. Empty means
	// random initialization.
	Weights string
}

// FeatureExtractor is ResNet-18 with avgpool replaced by AvgPool2D(3, 1)
// for 72×72 inputs and fc replaced by Linear(512, outputChannel).
//
// Parameter names follow torchvision: "conv1.weight",
// "layer1.0.bn1.running_mean", "layer2.0.downsample.0.weight", "fc.bias".
type FeatureExtractor[B tensor.Backend] struct {
	conv1   *nn.Conv2D[B]
	bn1     *nn.BatchNorm2D[B]
	relu    *nn.ReLU[B]
	maxpool *nn.MaxPool2D[B]
	layers  [4]*nn.Sequential[B]
	avgpool *nn.AvgPool2D[B]
	fc      *nn.Linear[B]
}

// NewFeatureExtractor builds the extractor, loads opts.Weights when set and
// marks every parameter trainable.
func NewFeatureExtractor[B tensor.Backend](outputChannel int, backend B, opts ExtractorOptions) (*FeatureExtractor[B], error) {
	m := &FeatureExtractor[B]{
		conv1:   nn.NewConv2D(3, 64, 7, 2, 3, false, backend),
		bn1:     nn.NewBatchNorm2D(64, backend),
		relu:    nn.NewReLU[B](),
		maxpool: nn.NewMaxPool2D[B](3, 2, 1),
		avgpool: nn.NewAvgPool2D[B](3, 1, 0),
		fc:      nn.NewLinear(FeatureWidth, outputChannel, backend),
	}

	inC := 64
	for i, outC := range []int{64, 128, 256, 512} {
		stride := 2
		if i == 0 {
			stride = 1
		}
		m.layers[i] = nn.NewSequential[B](
			NewBasicBlock(inC, outC, stride, backend),
			NewBasicBlock(outC, outC, 1, backend),
		)
		inC = outC
	}

	if opts.Weights != "" {
		report, err := loader.LoadInto[B](m, opts.Weights, loader.WithSkipPrefix("fc."))
		if err != nil {
			return nil, fmt.Errorf("failed to load feature extractor weights: %w", err)
		}
		slog.Debug("feature extractor weights loaded",
			"path", opts.Weights,
			"loaded", len(report.Loaded),
			"unresolved", report.Unresolved)
	}

	for _, p := range m.Parameters() {
		p.SetRequiresGrad(true)
	}
	return m, nil
}

// Forward maps [N, 3, 72, 72] images to [N, outputChannel] features.
func (m *FeatureExtractor[B]) Forward(x *tensor.Tensor[B]) *tensor.Tensor[B] {
	out := m.maxpool.Forward(m.relu.Forward(m.bn1.Forward(m.conv1.Forward(x))))
	for _, layer := range m.layers {
		out = layer.Forward(out)
	}
	out = m.avgpool.Forward(out)
	if s := out.Shape(); s[2] != 1 || s[3] != 1 {
		panic(fmt.Sprintf("feature extractor: pooled map is %dx%d, expected 1x1 (input must be %dx%d)",
			s[2], s[3], ExtractorInputSize, ExtractorInputSize))
	}
	return m.fc.Forward(out.Flatten())
}

// FC returns the replaced classification head.
func (m *FeatureExtractor[B]) FC() *nn.Linear[B] {
	return m.fc
}

// Parameters returns every parameter in torchvision order.
func (m *FeatureExtractor[B]) Parameters() []*nn.Parameter[B] {
	return nn.CollectParameters[B](m)
}

// NamedParameters returns nil.
func (m *FeatureExtractor[B]) NamedParameters() []*nn.Parameter[B] { return nil }

// NamedBuffers returns nil.
func (m *FeatureExtractor[B]) NamedBuffers() []*nn.Buffer[B] { return nil }

// Children returns conv1, bn1, relu, maxpool, layer1..layer4, avgpool, fc.
func (m *FeatureExtractor[B]) Children() []nn.NamedModule[B] {
	children := []nn.NamedModule[B]{
		{Name: "conv1", Module: m.conv1},
		{Name: "bn1", Module: m.bn1},
		{Name: "relu", Module: m.relu},
		{Name: "maxpool", Module: m.maxpool},
	}
	for i, layer := range m.layers {
		children = append(children, nn.NamedModule[B]{Name: fmt.Sprintf("layer%d", i+1), Module: layer})
	}
	return append(children,
		nn.NamedModule[B]{Name: "avgpool", Module: m.avgpool},
		nn.NamedModule[B]{Name: "fc", Module: m.fc},
	)
}
