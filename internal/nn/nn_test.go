package nn

import (
	"math"
	"testing"

	"github.com/born-ml/metakit/internal/autodiff"
	"github.com/born-ml/metakit/internal/backend/cpu"
	"github.com/born-ml/metakit/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newBackend() Backend {
	b := autodiff.New(cpu.New())
	b.Tape().StartRecording()
	return b
}

func TestParameter_RebindSwapsSlot(t *testing.T) {
	backend := newBackend()
	orig := tensor.MustFromSlice([]float32{1, 2}, tensor.Shape{2}, backend)
	ext := tensor.MustFromSlice([]float32{5, 6}, tensor.Shape{2}, backend)

	p := NewParameter("weight", orig)
	assert.Equal(t, "weight", p.Name())
	assert.True(t, p.RequiresGrad())

	p.Rebind(ext)
	assert.Same(t, ext, p.Tensor())
	ext.Data()[0] = 9
	assert.Equal(t, float32(9), p.Tensor().Data()[0])
	assert.Equal(t, []float32{1, 2}, orig.Data())
}

func TestParameter_GradFollowsSlotTensor(t *testing.T) {
	backend := newBackend()
	orig := tensor.MustFromSlice([]float32{1}, tensor.Shape{1}, backend)
	ext := tensor.MustFromSlice([]float32{2}, tensor.Shape{1}, backend)
	p := NewParameter("w", orig)

	p.SetGrad(tensor.Ones(tensor.Shape{1}, backend))
	require.NotNil(t, orig.Grad())

	p.Rebind(ext)
	assert.Nil(t, p.Grad())

	p.Rebind(orig)
	assert.NotNil(t, p.Grad())
	p.ZeroGrad()
	assert.Nil(t, orig.Grad())
}

func TestLinear_Forward(t *testing.T) {
	backend := newBackend()
	l := NewLinear(2, 3, backend)
	copy(l.Weight().Tensor().Data(), []float32{1, 0, 0, 1, 1, 1})
	copy(l.Bias().Tensor().Data(), []float32{0.5, 0.5, 0.5})

	x := tensor.MustFromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	out := l.Forward(x)

	assert.Equal(t, tensor.Shape{2, 3}, out.Shape())
	assert.InDeltaSlice(t, []float32{1.5, 2.5, 3.5, 3.5, 4.5, 7.5}, out.Data(), 1e-6)
	assert.Len(t, l.Parameters(), 2)
	assert.Panics(t, func() { l.Forward(tensor.Zeros(tensor.Shape{2, 5}, backend)) })
}

func TestLinear_XavierBounds(t *testing.T) {
	backend := newBackend()
	l := NewLinear(30, 20, backend)
	bound := float32(math.Sqrt(6.0 / 50.0))
	for _, v := range l.Weight().Tensor().Data() {
		assert.LessOrEqual(t, float32(math.Abs(float64(v))), bound)
	}
	assert.Equal(t, make([]float32, 20), l.Bias().Tensor().Data())
}

func TestInitialize_ClassifierInit(t *testing.T) {
	backend := newBackend()
	conv := NewConv2D(1, 2, 3, 1, 1, true, backend)
	convBefore := append([]float32(nil), conv.Weight().Tensor().Data()...)
	lin := NewLinear(4, 2, backend)
	model := NewSequential[Backend](conv, NewReLU[Backend](), NewFlatten[Backend](), lin)

	Initialize[Backend](model, ClassifierInit)

	assert.Equal(t, []float32{0.01, 0.01}, lin.Bias().Tensor().Data())
	assert.Equal(t, convBefore, conv.Weight().Tensor().Data(), "non-linear layers keep their values")
}

func TestInitialize_Constant(t *testing.T) {
	backend := newBackend()
	l := NewLinear(2, 2, backend)
	Initialize[Backend](l, Constant(0.5, -1))
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5}, l.Weight().Tensor().Data())
	assert.Equal(t, []float32{-1, -1}, l.Bias().Tensor().Data())
}

func TestConv2D_ForwardWithBias(t *testing.T) {
	backend := newBackend()
	conv := NewConv2D(1, 2, 1, 1, 0, true, backend)
	Initialize[Backend](conv, Constant(2, 1))

	x := tensor.MustFromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2}, backend)
	out := conv.Forward(x)

	assert.Equal(t, tensor.Shape{1, 2, 2, 2}, out.Shape())
	assert.Equal(t, []float32{3, 5, 7, 9, 3, 5, 7, 9}, out.Data())
	spec := conv.LayerSpec()
	assert.Equal(t, 1, spec.FanIn)
	assert.Equal(t, 2, spec.FanOut)
}

func TestBatchNorm2D_UsesRunningStats(t *testing.T) {
	backend := newBackend()
	bn := NewBatchNorm2D(2, backend)
	copy(bn.RunningMean().Tensor().Data(), []float32{1, -1})
	copy(bn.RunningVar().Tensor().Data(), []float32{4 - BatchNormEps, 1 - BatchNormEps})
	copy(bn.weight.Tensor().Data(), []float32{2, 1})
	copy(bn.bias.Tensor().Data(), []float32{0, 10})

	x := tensor.MustFromSlice([]float32{3, 5, 1, 1}, tensor.Shape{1, 2, 1, 2}, backend)
	out := bn.Forward(x)

	// channel 0: (x-1)/2*2 ; channel 1: (x+1)/1*1 + 10
	assert.InDeltaSlice(t, []float32{2, 4, 12, 12}, out.Data(), 1e-4)
	assert.Len(t, bn.NamedBuffers(), 2)
	assert.Len(t, bn.Parameters(), 2)
}

func TestSequential_ChildrenNamedByIndex(t *testing.T) {
	backend := newBackend()
	model := NewSequential[Backend](NewReLU[Backend](), NewLinear(4, 2, backend))

	children := model.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "0", children[0].Name)
	assert.Equal(t, "1", children[1].Name)
	assert.Len(t, model.Parameters(), 2)
	assert.Equal(t, 2, model.Len())
	assert.Panics(t, func() { model.Module(2) })
}

func TestActivationsAndPooling(t *testing.T) {
	backend := newBackend()
	x := tensor.MustFromSlice([]float32{-1, 0, 2, 3}, tensor.Shape{1, 1, 2, 2}, backend)

	assert.Equal(t, []float32{0, 0, 2, 3}, NewReLU[Backend]().Forward(x).Data())
	assert.InDelta(t, math.Log1p(math.Exp(-1)), NewSoftplus[Backend]().Forward(x).Data()[0], 1e-6)
	assert.Equal(t, []float32{3}, NewMaxPool2D[Backend](2, 2, 0).Forward(x).Data())
	assert.Equal(t, []float32{1}, NewAvgPool2D[Backend](2, 2, 0).Forward(x).Data())
	assert.Equal(t, tensor.Shape{1, 4}, NewFlatten[Backend]().Forward(x).Shape())
	assert.Equal(t, []float32{1, 0, 2, 3}, L1Penalty(x).Data())
	assert.Panics(t, func() { NewMaxPool2D[Backend](0, 1, 0) })
}

func TestCollectGrads_KeysBySlotTensor(t *testing.T) {
	backend := newBackend()
	l := NewLinear(2, 1, backend)
	x := tensor.MustFromSlice([]float32{1, 2}, tensor.Shape{1, 2}, backend)

	grads := autodiff.Backward(l.Forward(x).Sum(), backend)
	assert.Equal(t, 2, CollectGrads[Backend](l, grads))
	require.NotNil(t, l.Weight().Grad())
	assert.InDeltaSlice(t, []float32{1, 2}, l.Weight().Grad().Data(), 1e-6)
	assert.InDeltaSlice(t, []float32{1}, l.Bias().Grad().Data(), 1e-6)

	// A pass that does not touch the layer clears its gradients.
	other := tensor.MustFromSlice([]float32{1}, tensor.Shape{1}, backend)
	assert.Zero(t, CollectGrads[Backend](l, autodiff.Backward(other.MulScalar(2), backend)))
	assert.Nil(t, l.Weight().Grad())

	l.Weight().SetGrad(tensor.Ones(tensor.Shape{1, 2}, backend))
	ZeroGrad[Backend](l)
	assert.Nil(t, l.Weight().Grad())
}

func TestTrainableParameters(t *testing.T) {
	backend := newBackend()
	first := NewLinear(2, 2, backend)
	second := NewLinear(2, 2, backend)
	model := NewSequential[Backend](first, NewReLU[Backend](), second)

	all := TrainableParameters[Backend](model, 0)
	assert.Len(t, all, 4)
	for _, p := range all {
		assert.True(t, p.RequiresGrad())
	}

	rest := TrainableParameters[Backend](model, 1)
	assert.Equal(t, second.Parameters(), rest)
	assert.False(t, first.Weight().RequiresGrad())
	assert.False(t, first.Bias().RequiresGrad())
	assert.True(t, second.Weight().RequiresGrad())
}
