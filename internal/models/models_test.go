package models

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/born-ml/metakit/internal/autodiff"
	"github.com/born-ml/metakit/internal/backend/cpu"
	"github.com/born-ml/metakit/internal/loader"
	"github.com/born-ml/metakit/internal/nn"
	"github.com/born-ml/metakit/internal/paramtree"
	"github.com/born-ml/metakit/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type CPU = *cpu.CPUBackend

func TestCritic_MLP(t *testing.T) {
	backend := cpu.New()
	critic := NewCriticMLP(4, 3, backend)

	names, err := paramtree.Names[CPU](critic)
	require.NoError(t, err)
	assert.Equal(t, []string{"fc1.weight", "fc1.bias", "fc2.weight", "fc2.bias"}, names)

	x := tensor.Randn(tensor.Shape{5, 4}, backend)
	loss := critic.Forward(x)
	assert.Equal(t, 1, loss.NumElements())
	assert.Positive(t, loss.Item())

	assert.Panics(t, func() { critic.Forward(tensor.Zeros(tensor.Shape{5, 3}, backend)) })
}

func TestCritic_MLPMatchesManualForward(t *testing.T) {
	backend := cpu.New()
	critic := NewCriticMLP(2, 2, backend)
	nn.Initialize[CPU](critic, nn.Constant(0.5, 0.1))

	// h = relu(0.5*(x0+x1) + 0.1) per unit; out = softplus(0.5*(h+h) + 0.1)
	x := tensor.MustFromSlice([]float32{1, 1, -2, -2}, tensor.Shape{2, 2}, backend)
	got := critic.Forward(x).Item()

	row1 := softplus(0.5*(1.1+1.1) + 0.1)
	row2 := softplus(0.1)
	assert.InDelta(t, (row1+row2)/2, got, 1e-5)
}

func TestCritic_FlattenFTF(t *testing.T) {
	backend := cpu.New()
	critic := NewCriticFlattenFTF(3, 4, backend)
	assert.Equal(t, 9, critic.InFeatures())

	cube := tensor.Randn(tensor.Shape{2, 3, 3}, backend)
	flat := tensor.MustFromSlice(cube.Data(), tensor.Shape{2, 9}, backend)
	assert.InDelta(t, critic.Forward(flat).Item(), critic.Forward(cube).Item(), 1e-6)
}

func TestCritic_GradientsReachExternalParameters(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()
	type AD = *autodiff.AutodiffBackend[*cpu.CPUBackend]

	critic := NewCriticMLP(3, 2, backend)
	theta := map[string]*tensor.Tensor[AD]{}
	for _, name := range []string{"fc1.weight", "fc1.bias", "fc2.weight", "fc2.bias"} {
		slot, err := paramtree.Resolve[AD](critic, name)
		require.NoError(t, err)
		theta[name] = slot.Tensor().Clone()
	}

	model, err := paramtree.Override[AD](critic, theta, paramtree.WithStrict())
	require.NoError(t, err)
	loss := model.Forward(tensor.Ones(tensor.Shape{4, 3}, backend))
	grads := autodiff.Backward(loss, backend)

	for name, ext := range theta {
		assert.Contains(t, grads, ext.Raw(), name)
	}
}

func TestClassifier(t *testing.T) {
	backend := cpu.New()
	head := NewClassifier(7, backend)

	names, err := paramtree.Names[CPU](head)
	require.NoError(t, err)
	assert.Equal(t, []string{"0.weight", "0.bias"}, names)

	linear := head.Module(0).(*nn.Linear[CPU])
	assert.Equal(t, FeatureWidth, linear.InFeatures())
	for _, v := range linear.Bias().Tensor().Data() {
		assert.InDelta(t, 0.01, v, 1e-7)
	}

	out := head.Forward(tensor.Zeros(tensor.Shape{2, FeatureWidth}, backend))
	assert.Equal(t, tensor.Shape{2, 7}, out.Shape())
}

func TestClassifierHomo(t *testing.T) {
	backend := cpu.New()
	head := NewClassifierHomo(3, backend)

	names, err := paramtree.Names[CPU](head)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.weight", "1.bias"}, names)

	// ReLU first: negative features contribute nothing, leaving the bias.
	out := head.Forward(tensor.Full(tensor.Shape{1, HomoFeatureWidth}, -1, backend))
	for _, v := range out.Data() {
		assert.InDelta(t, 0.01, v, 1e-6)
	}
}

func TestFeatureExtractor_Names(t *testing.T) {
	m, err := NewFeatureExtractor(10, cpu.New(), ExtractorOptions{})
	require.NoError(t, err)

	var params, buffers []string
	require.NoError(t, paramtree.Walk[CPU](m, func(s paramtree.Slot[CPU]) error {
		if s.IsParameter() {
			params = append(params, s.Name)
		} else {
			buffers = append(buffers, s.Name)
		}
		return nil
	}))

	assert.Len(t, params, 62)
	assert.Len(t, buffers, 40)
	assert.Equal(t, "conv1.weight", params[0])
	assert.Equal(t, []string{"fc.weight", "fc.bias"}, params[len(params)-2:])
	assert.Contains(t, params, "layer1.0.conv1.weight")
	assert.Contains(t, params, "layer2.0.downsample.0.weight")
	assert.Contains(t, params, "layer4.1.bn2.bias")
	assert.NotContains(t, params, "layer1.0.downsample.0.weight")
	assert.Contains(t, buffers, "layer1.0.bn1.running_mean")
	assert.Contains(t, buffers, "layer3.0.downsample.1.running_var")

	for _, p := range m.Parameters() {
		assert.True(t, p.RequiresGrad())
	}
	assert.Equal(t, 10, m.FC().OutFeatures())
}

func TestFeatureExtractor_LoadsWeightsExceptFC(t *testing.T) {
	backend := cpu.New()
	src, err := NewFeatureExtractor(5, backend, ExtractorOptions{})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "resnet18.safetensors")
	require.NoError(t, loader.Save[CPU](src, path, nil))

	dst, err := NewFeatureExtractor(5, backend, ExtractorOptions{Weights: path})
	require.NoError(t, err)

	srcSlot, err := paramtree.Resolve[CPU](src, "layer3.1.conv2.weight")
	require.NoError(t, err)
	dstSlot, err := paramtree.Resolve[CPU](dst, "layer3.1.conv2.weight")
	require.NoError(t, err)
	assert.Equal(t, srcSlot.Tensor().Data(), dstSlot.Tensor().Data())

	assert.NotEqual(t, src.FC().Weight().Tensor().Data(), dst.FC().Weight().Tensor().Data())
}

func TestFeatureExtractor_MissingWeights(t *testing.T) {
	_, err := NewFeatureExtractor(5, cpu.New(), ExtractorOptions{Weights: "/nonexistent/weights.safetensors"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "feature extractor weights")
}

func TestFeatureExtractor_Forward(t *testing.T) {
	if testing.Short() {
		t.Skip("full ResNet-18 forward on the CPU backend")
	}
	backend := cpu.New()
	m, err := NewFeatureExtractor(6, backend, ExtractorOptions{})
	require.NoError(t, err)

	x := tensor.Randn(tensor.Shape{1, 3, ExtractorInputSize, ExtractorInputSize}, backend)
	out := m.Forward(x)
	assert.Equal(t, tensor.Shape{1, 6}, out.Shape())

	assert.Panics(t, func() { m.Forward(tensor.Zeros(tensor.Shape{1, 3, 128, 128}, backend)) })
}

func TestBasicBlock_IdentityShortcut(t *testing.T) {
	backend := cpu.New()
	block := NewBasicBlock(2, 2, 1, backend)
	nn.Initialize[CPU](block, nn.Constant(0, 0))

	// Zero convolutions leave relu(x) from the shortcut.
	x := tensor.MustFromSlice([]float32{1, -1, 2, -2, 3, -3, 4, -4}, tensor.Shape{1, 2, 2, 2}, backend)
	out := block.Forward(x)
	assert.Equal(t, []float32{1, 0, 2, 0, 3, 0, 4, 0}, out.Data())
}

func softplus(x float64) float32 {
	return float32(math.Log1p(math.Exp(x)))
}
