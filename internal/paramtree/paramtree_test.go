package paramtree

import (
	"testing"

	"github.com/born-ml/metakit/internal/autodiff"
	"github.com/born-ml/metakit/internal/backend/cpu"
	cnserrors "github.com/born-ml/metakit/internal/errors"
	"github.com/born-ml/metakit/internal/nn"
	"github.com/born-ml/metakit/internal/tensor"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newBackend() Backend {
	b := autodiff.New(cpu.New())
	b.Tape().StartRecording()
	return b
}

// mlp is Sequential(Linear(2,3), ReLU, Linear(3,1)).
func mlp(backend Backend) *nn.Sequential[Backend] {
	return nn.NewSequential[Backend](
		nn.NewLinear(2, 3, backend),
		nn.NewReLU[Backend](),
		nn.NewLinear(3, 1, backend),
	)
}

// twoLevel nests a BatchNorm2D under a named child to exercise buffers and prefixes.
type twoLevel struct {
	scale *nn.Parameter[Backend]
	body  *nn.Sequential[Backend]
}

func (m *twoLevel) Forward(x *tensor.Tensor[Backend]) *tensor.Tensor[Backend] {
	return m.body.Forward(x).Mul(m.scale.Tensor())
}

func (m *twoLevel) Parameters() []*nn.Parameter[Backend] {
	return append([]*nn.Parameter[Backend]{m.scale}, m.body.Parameters()...)
}

func (m *twoLevel) NamedParameters() []*nn.Parameter[Backend] {
	return []*nn.Parameter[Backend]{m.scale}
}

func (m *twoLevel) NamedBuffers() []*nn.Buffer[Backend] { return nil }

func (m *twoLevel) Children() []nn.NamedModule[Backend] {
	return []nn.NamedModule[Backend]{{Name: "body", Module: m.body}}
}

func newTwoLevel(backend Backend) *twoLevel {
	return &twoLevel{
		scale: nn.NewParameter("scale", tensor.Ones(tensor.Shape{1}, backend)),
		body:  nn.NewSequential[Backend](nn.NewBatchNorm2D(2, backend)),
	}
}

// duplicated owns two parameters with the same leaf name.
type duplicated struct{ a, b *nn.Parameter[Backend] }

func (d *duplicated) Forward(x *tensor.Tensor[Backend]) *tensor.Tensor[Backend] {
	return x
}

func (d *duplicated) Parameters() []*nn.Parameter[Backend] {
	return d.NamedParameters()
}

func (d *duplicated) NamedParameters() []*nn.Parameter[Backend] {
	return []*nn.Parameter[Backend]{d.a, d.b}
}

func (d *duplicated) NamedBuffers() []*nn.Buffer[Backend] { return nil }

func (d *duplicated) Children() []nn.NamedModule[Backend] { return nil }

func externalFor(t *testing.T, model nn.Module[Backend], backend Backend) map[string]*tensor.Tensor[Backend] {
	t.Helper()
	slots, err := Parameters(model)
	require.NoError(t, err)
	ext := make(map[string]*tensor.Tensor[Backend], len(slots))
	for _, s := range slots {
		ext[s.Name] = tensor.Randn(s.Tensor().Shape(), backend)
	}
	return ext
}

func TestWalk_DottedNames(t *testing.T) {
	backend := newBackend()

	names, err := Names[Backend](mlp(backend))
	require.NoError(t, err)
	assert.Equal(t, []string{"0.weight", "0.bias", "2.weight", "2.bias"}, names)

	var leaves []string
	err = Walk[Backend](newTwoLevel(backend), func(s Slot[Backend]) error {
		leaves = append(leaves, s.Name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"scale",
		"body.0.weight", "body.0.bias", "body.0.running_mean", "body.0.running_var",
	}, leaves)
}

func TestWalk_DuplicateNames(t *testing.T) {
	backend := newBackend()
	d := &duplicated{
		a: nn.NewParameter("w", tensor.Zeros(tensor.Shape{1}, backend)),
		b: nn.NewParameter("w", tensor.Zeros(tensor.Shape{1}, backend)),
	}
	_, err := Names[Backend](d)
	require.Error(t, err)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeNameMismatch))
}

func TestResolve(t *testing.T) {
	backend := newBackend()
	model := newTwoLevel(backend)

	slot, err := Resolve[Backend](model, "body.0.running_var")
	require.NoError(t, err)
	assert.False(t, slot.IsParameter())
	assert.False(t, slot.Differentiable())
	assert.Equal(t, []float32{1, 1}, slot.Tensor().Data())

	slot, err = Resolve[Backend](model, "scale")
	require.NoError(t, err)
	assert.True(t, slot.Differentiable())
	assert.Same(t, model.scale, slot.Param)

	for _, name := range []string{"body.1.weight", "body.0.gamma", "nope", "scale.x"} {
		_, err = Resolve[Backend](model, name)
		assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeNameMismatch), name)
	}
}

func TestOverride_ForwardEqualsSubstitution(t *testing.T) {
	backend := newBackend()
	model := mlp(backend)
	ext := externalFor(t, model, backend)
	x := tensor.MustFromSlice([]float32{0.5, -1, 2, 0.25}, tensor.Shape{2, 2}, backend)

	got, err := Override[Backend](model, ext, WithStrict())
	require.NoError(t, err)
	out := got.Forward(x)

	// Textual substitution: relu(x @ W0ᵀ + b0) @ W2ᵀ + b2
	want := x.MatMul(ext["0.weight"].T()).Add(ext["0.bias"].Reshape(1, 3)).ReLU().
		MatMul(ext["2.weight"].T()).Add(ext["2.bias"].Reshape(1, 1))
	assert.Equal(t, want.Data(), out.Data())
}

func TestOverride_GradientsFlowToExternalTensors(t *testing.T) {
	backend := newBackend()
	model := mlp(backend)
	originals, err := Parameters[Backend](model)
	require.NoError(t, err)
	origRaw := make([]*tensor.RawTensor, len(originals))
	for i, s := range originals {
		origRaw[i] = s.Tensor().Raw()
	}

	ext := externalFor(t, model, backend)
	_, err = Override[Backend](model, ext)
	require.NoError(t, err)

	x := tensor.MustFromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	grads := autodiff.Backward(model.Forward(x).Sum(), backend)

	for name, e := range ext {
		assert.Contains(t, grads, e.Raw(), name)
	}
	for _, r := range origRaw {
		assert.NotContains(t, grads, r)
	}
}

func TestOverride_SharesExternalData(t *testing.T) {
	backend := newBackend()
	model := mlp(backend)
	ext := externalFor(t, model, backend)
	_, err := Override[Backend](model, ext)
	require.NoError(t, err)

	ext["2.bias"].Data()[0] = 42
	slot, err := Resolve[Backend](model, "2.bias")
	require.NoError(t, err)
	assert.Equal(t, float32(42), slot.Tensor().Data()[0])
	assert.Same(t, ext["2.bias"], slot.Tensor())
}

func TestOverride_PermissiveLeavesMissingUnchanged(t *testing.T) {
	backend := newBackend()
	model := mlp(backend)
	before, err := Resolve[Backend](model, "0.weight")
	require.NoError(t, err)
	origWeight := before.Tensor()

	bias := tensor.Zeros(tensor.Shape{3}, backend)
	_, err = Override[Backend](model, map[string]*tensor.Tensor[Backend]{
		"0.bias":        bias,
		"not.a.param":   tensor.Zeros(tensor.Shape{1}, backend),
		"1.weight":      tensor.Zeros(tensor.Shape{1}, backend),
		"2.bias.nested": tensor.Zeros(tensor.Shape{1}, backend),
	})
	require.NoError(t, err)

	w, _ := Resolve[Backend](model, "0.weight")
	b, _ := Resolve[Backend](model, "0.bias")
	assert.Same(t, origWeight, w.Tensor())
	assert.Same(t, bias, b.Tensor())
}

func TestOverride_StrictFailuresLeaveTreeUnchanged(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(ext map[string]*tensor.Tensor[Backend], backend Backend)
		code   cnserrors.ErrorCode
	}{
		{
			name:   "missing name",
			mutate: func(ext map[string]*tensor.Tensor[Backend], _ Backend) { delete(ext, "2.bias") },
			code:   cnserrors.ErrCodeNameMismatch,
		},
		{
			name: "unknown name",
			mutate: func(ext map[string]*tensor.Tensor[Backend], backend Backend) {
				ext["3.weight"] = tensor.Zeros(tensor.Shape{1}, backend)
			},
			code: cnserrors.ErrCodeNameMismatch,
		},
		{
			name: "shape mismatch",
			mutate: func(ext map[string]*tensor.Tensor[Backend], backend Backend) {
				ext["2.weight"] = tensor.Zeros(tensor.Shape{3, 1}, backend)
			},
			code: cnserrors.ErrCodeShapeMismatch,
		},
		{
			name:   "nil replacement",
			mutate: func(ext map[string]*tensor.Tensor[Backend], _ Backend) { ext["0.bias"] = nil },
			code:   cnserrors.ErrCodeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newBackend()
			model := mlp(backend)
			before := snapshot(t, model)

			ext := externalFor(t, model, backend)
			tt.mutate(ext, backend)

			got, err := Override[Backend](model, ext, WithStrict())
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, cnserrors.IsCode(err, tt.code), err.Error())
			assert.Equal(t, before, snapshot(t, model))
		})
	}
}

func TestOverride_ShapeCheckWithoutStrict(t *testing.T) {
	backend := newBackend()
	model := mlp(backend)

	bad := map[string]*tensor.Tensor[Backend]{"0.bias": tensor.Zeros(tensor.Shape{4}, backend)}
	_, err := Override[Backend](model, bad, WithShapeCheck())
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeShapeMismatch))

	_, err = Override[Backend](model, bad)
	assert.NoError(t, err, "permissive mode without shape checks accepts any shape")
}

func TestOverride_SkipsBuffersAndFrozen(t *testing.T) {
	backend := newBackend()
	model := newTwoLevel(backend)
	model.scale.SetRequiresGrad(false)
	origScale := model.scale.Tensor()

	runningMean, err := Resolve[Backend](model, "body.0.running_mean")
	require.NoError(t, err)
	origMean := runningMean.Tensor()

	w := tensor.Full(tensor.Shape{2}, 3, backend)
	_, err = Override[Backend](model, map[string]*tensor.Tensor[Backend]{
		"scale":               tensor.Zeros(tensor.Shape{1}, backend),
		"body.0.running_mean": tensor.Zeros(tensor.Shape{2}, backend),
		"body.0.weight":       w,
	})
	require.NoError(t, err)

	assert.Same(t, origScale, model.scale.Tensor())
	assert.Same(t, origMean, runningMean.Tensor())
	weight, _ := Resolve[Backend](model, "body.0.weight")
	assert.Same(t, w, weight.Tensor())

	// Strict mode rejects keys naming buffers or frozen parameters.
	_, err = Override[Backend](model, map[string]*tensor.Tensor[Backend]{
		"body.0.weight":       w,
		"body.0.bias":         tensor.Zeros(tensor.Shape{2}, backend),
		"body.0.running_mean": tensor.Zeros(tensor.Shape{2}, backend),
	}, WithStrict())
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeNameMismatch))
}

func TestOverride_Metrics(t *testing.T) {
	backend := newBackend()
	model := mlp(backend)
	strictBefore := testutil.ToFloat64(overridesTotal.WithLabelValues("strict"))
	leavesBefore := testutil.ToFloat64(reboundLeaves)
	errBefore := testutil.ToFloat64(overrideErrors.WithLabelValues(string(cnserrors.ErrCodeNameMismatch)))

	_, err := Override[Backend](model, externalFor(t, model, backend), WithStrict())
	require.NoError(t, err)
	_, err = Override[Backend](model, map[string]*tensor.Tensor[Backend]{}, WithStrict())
	require.Error(t, err)

	assert.Equal(t, strictBefore+1, testutil.ToFloat64(overridesTotal.WithLabelValues("strict")))
	assert.Equal(t, leavesBefore+4, testutil.ToFloat64(reboundLeaves))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(overrideErrors.WithLabelValues(string(cnserrors.ErrCodeNameMismatch))))
}

// snapshot records slot identities and values.
func snapshot(t *testing.T, model nn.Module[Backend]) map[string][]float32 {
	t.Helper()
	out := make(map[string][]float32)
	err := Walk(model, func(s Slot[Backend]) error {
		out[s.Name] = append([]float32(nil), s.Tensor().Data()...)
		return nil
	})
	require.NoError(t, err)
	return out
}
