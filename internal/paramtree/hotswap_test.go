package paramtree

import (
	"testing"

	"github.com/born-ml/metakit/internal/autodiff"
	cnserrors "github.com/born-ml/metakit/internal/errors"
	"github.com/born-ml/metakit/internal/nn"
	"github.com/born-ml/metakit/internal/tensor"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trainStep runs one forward/backward pass over model and attaches the gradients.
func trainStep(t *testing.T, model nn.Module[Backend], backend Backend) {
	t.Helper()
	x := tensor.MustFromSlice([]float32{1, -2, 0.5, 3}, tensor.Shape{2, 2}, backend)
	grads := autodiff.Backward(model.Forward(x).Mean(), backend)
	require.Positive(t, nn.CollectGrads(model, grads))
}

func currentTensors(t *testing.T, model nn.Module[Backend]) []*tensor.Tensor[Backend] {
	t.Helper()
	slots, err := Parameters(model)
	require.NoError(t, err)
	out := make([]*tensor.Tensor[Backend], len(slots))
	for i, s := range slots {
		out[i] = s.Tensor()
	}
	return out
}

func TestHotSwap_UpdateSteps(t *testing.T) {
	backend := newBackend()
	model := mlp(backend)
	hs, err := NewHotSwap[Backend](model)
	require.NoError(t, err)
	assert.Equal(t, []string{"0.weight", "0.bias", "2.weight", "2.bias"}, hs.Names())

	trainStep(t, model, backend)
	originals := currentTensors(t, model)

	require.NoError(t, hs.Update(0.1))
	state, lr := hs.State()
	assert.Equal(t, Stepped, state)
	assert.Equal(t, float32(0.1), lr)

	for i, stepped := range currentTensors(t, model) {
		orig := originals[i]
		assert.NotSame(t, orig, stepped)
		for j, v := range stepped.Data() {
			want := orig.Data()[j] - 0.1*orig.Grad().Data()[j]
			assert.InDelta(t, want, v, 1e-6)
		}
	}
}

func TestHotSwap_RestoreIsBitIdentical(t *testing.T) {
	backend := newBackend()
	model := mlp(backend)
	hs, err := NewHotSwap[Backend](model)
	require.NoError(t, err)
	trainStep(t, model, backend)

	originals := currentTensors(t, model)
	values := make([][]float32, len(originals))
	for i, o := range originals {
		values[i] = append([]float32(nil), o.Data()...)
	}

	for _, lr := range []float32{0.5, 0.01, 3, 0.2} {
		require.NoError(t, hs.Update(lr))
	}
	require.NoError(t, hs.Restore())

	state, _ := hs.State()
	assert.Equal(t, Original, state)
	for i, cur := range currentTensors(t, model) {
		assert.Same(t, originals[i], cur)
		assert.Equal(t, values[i], cur.Data())
	}
}

func TestHotSwap_UpdateZeroIsIdempotentRestore(t *testing.T) {
	backend := newBackend()
	model := mlp(backend)
	hs, err := NewHotSwap[Backend](model)
	require.NoError(t, err)
	originals := currentTensors(t, model)

	// No gradients are needed for lr <= 0.
	require.NoError(t, hs.Update(0))
	require.NoError(t, hs.Update(0))
	require.NoError(t, hs.Update(-1))
	for i, cur := range currentTensors(t, model) {
		assert.Same(t, originals[i], cur)
	}
}

func TestHotSwap_SteppedFromSnapshotNotCurrent(t *testing.T) {
	backend := newBackend()
	model := mlp(backend)
	hs, err := NewHotSwap[Backend](model)
	require.NoError(t, err)
	trainStep(t, model, backend)

	require.NoError(t, hs.Update(0.1))
	once := currentTensors(t, model)
	require.NoError(t, hs.Update(0.1))
	twice := currentTensors(t, model)

	for i := range once {
		assert.Equal(t, once[i].Data(), twice[i].Data())
	}
}

func TestHotSwap_MissingGradientLeavesTreeUntouched(t *testing.T) {
	backend := newBackend()
	model := mlp(backend)
	hs, err := NewHotSwap[Backend](model)
	require.NoError(t, err)
	trainStep(t, model, backend)

	last, _ := Resolve[Backend](model, "2.bias")
	last.Param.ZeroGrad()
	originals := currentTensors(t, model)

	err = hs.Update(0.1)
	require.Error(t, err)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeMissingGradient))
	for i, cur := range currentTensors(t, model) {
		assert.Same(t, originals[i], cur)
	}
	state, _ := hs.State()
	assert.Equal(t, Original, state)
}

func TestHotSwap_SteppedValueDifferentiableWrtOriginal(t *testing.T) {
	backend := newBackend()
	w := nn.NewParameter("w", tensor.MustFromSlice([]float32{2}, tensor.Shape{1}, backend))
	model := &scalarModel{w: w}
	hs, err := NewHotSwap[Backend](model)
	require.NoError(t, err)
	orig := w.Tensor()

	x := tensor.MustFromSlice([]float32{3}, tensor.Shape{1}, backend)

	// inner = (w·x)², d inner/dw = 2·w·x² = 36
	inner := model.Forward(x).Mul(model.Forward(x)).Sum()
	nn.CollectGrads[Backend](model, autodiff.Backward(inner, backend))
	require.InDelta(t, 36.0, orig.Grad().Data()[0], 1e-4)

	// outer = w'·x with w' = w - 0.01·g; g is a constant, so d outer/dw = x = 3
	require.NoError(t, hs.Update(0.01))
	outer := model.Forward(x).Sum()
	grads := autodiff.Backward(outer, backend)

	assert.InDelta(t, 3.0, grads[orig.Raw()].Data()[0], 1e-5)
	assert.InDelta(t, (2-0.01*36)*3, outer.Item(), 1e-4)
	require.NoError(t, hs.Restore())
}

func TestHotSwap_Original(t *testing.T) {
	backend := newBackend()
	model := mlp(backend)
	hs, err := NewHotSwap[Backend](model)
	require.NoError(t, err)

	slot, _ := Resolve[Backend](model, "0.bias")
	got, ok := hs.Original("0.bias")
	require.True(t, ok)
	assert.Same(t, slot.Tensor(), got)

	_, ok = hs.Original("9.bias")
	assert.False(t, ok)
}

func TestHotSwap_Metrics(t *testing.T) {
	backend := newBackend()
	model := mlp(backend)
	hs, err := NewHotSwap[Backend](model)
	require.NoError(t, err)
	trainStep(t, model, backend)

	stepped := testutil.ToFloat64(hotSwapTransitions.WithLabelValues("stepped"))
	restored := testutil.ToFloat64(hotSwapTransitions.WithLabelValues("original"))

	require.NoError(t, hs.Update(0.1))
	require.NoError(t, hs.Restore())

	assert.Equal(t, stepped+1, testutil.ToFloat64(hotSwapTransitions.WithLabelValues("stepped")))
	assert.Equal(t, restored+1, testutil.ToFloat64(hotSwapTransitions.WithLabelValues("original")))
}

// scalarModel computes w·x for a single scalar parameter.
type scalarModel struct {
	w *nn.Parameter[Backend]
}

func (m *scalarModel) Forward(x *tensor.Tensor[Backend]) *tensor.Tensor[Backend] {
	return x.Mul(m.w.Tensor())
}

func (m *scalarModel) Parameters() []*nn.Parameter[Backend] { return m.NamedParameters() }

func (m *scalarModel) NamedParameters() []*nn.Parameter[Backend] {
	return []*nn.Parameter[Backend]{m.w}
}

func (m *scalarModel) NamedBuffers() []*nn.Buffer[Backend] { return nil }

func (m *scalarModel) Children() []nn.NamedModule[Backend] { return nil }
