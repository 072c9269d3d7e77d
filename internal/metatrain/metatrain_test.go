package metatrain

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/born-ml/metakit/internal/autodiff"
	"github.com/born-ml/metakit/internal/backend/cpu"
	cnserrors "github.com/born-ml/metakit/internal/errors"
	"github.com/born-ml/metakit/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallOptions() Options {
	return Options{
		RunID:        "test",
		Epochs:       2,
		Classes:      3,
		BatchSize:    6,
		CriticHidden: 4,
		InitLR:       0.1,
		MetaLR:       0.01,
		Seed:         7,
	}
}

func TestRun_Records(t *testing.T) {
	records, err := Run(context.Background(), smallOptions())
	require.NoError(t, err)
	require.Len(t, records, 2)

	for i, rec := range records {
		assert.Equal(t, "test", rec.RunID)
		assert.Equal(t, i+1, rec.Epoch)
		assert.InDelta(t, 0.1, rec.LR, 1e-12)
		assert.Positive(t, rec.TrainLoss)
		assert.Positive(t, rec.CriticLoss)
		assert.GreaterOrEqual(t, rec.Accuracy, 0.0)
		assert.LessOrEqual(t, rec.Accuracy, 1.0)
		assert.GreaterOrEqual(t, rec.WeightShift, 0.0)

		// The override head sees exactly the hot-swapped parameters.
		assert.InDelta(t, rec.HeldOutLoss, rec.OverrideLoss, 1e-4)
	}
}

func TestRun_WritesRunLog(t *testing.T) {
	opts := smallOptions()
	opts.RunLog = filepath.Join(t.TempDir(), "metakit.log")

	_, err := Run(context.Background(), opts)
	require.NoError(t, err)

	data, err := os.ReadFile(opts.RunLog)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "run=test epoch=1 lr=0.1 "))
	assert.True(t, strings.HasPrefix(lines[1], "run=test epoch=2 "))
	assert.Contains(t, lines[1], "override_loss=")
}

func TestRun_InvalidOptions(t *testing.T) {
	tests := map[string]func(*Options){
		"no epochs":        func(o *Options) { o.Epochs = 0 },
		"one class":        func(o *Options) { o.Classes = 1 },
		"batch too small":  func(o *Options) { o.BatchSize = 2 },
		"no critic width":  func(o *Options) { o.CriticHidden = 0 },
		"zero lr":          func(o *Options) { o.InitLR = 0 },
		"negative meta lr": func(o *Options) { o.MetaLR = -0.1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			opts := smallOptions()
			mutate(&opts)
			_, err := Run(context.Background(), opts)
			require.Error(t, err)
			assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInvalidRequest))
		})
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records, err := Run(ctx, smallOptions())
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, records)
}

func TestRun_MissingExtractorWeights(t *testing.T) {
	opts := smallOptions()
	opts.Extractor = true
	opts.Weights = filepath.Join(t.TempDir(), "missing.safetensors")

	_, err := Run(context.Background(), opts)
	assert.ErrorContains(t, err, "failed to load feature extractor weights")
}

func TestRun_Extractor(t *testing.T) {
	if testing.Short() {
		t.Skip("ResNet-18 forward/backward is slow")
	}
	opts := smallOptions()
	opts.Epochs = 1
	opts.Extractor = true

	records, err := Run(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, records[0].HeldOutLoss, records[0].OverrideLoss, 1e-3)
}

func TestCrossEntropy(t *testing.T) {
	backend := autodiff.New(cpu.New())

	uniform := tensor.MustFromSlice(make([]float32, 6), tensor.Shape{2, 3}, backend)
	onehot := tensor.MustFromSlice([]float32{1, 0, 0, 0, 0, 1}, tensor.Shape{2, 3}, backend)
	assert.InDelta(t, math.Log(3), crossEntropy(uniform, onehot).Item(), 1e-6)

	logits := tensor.MustFromSlice([]float32{2, 0, 0, 0, 0, 2}, tensor.Shape{2, 3}, backend)
	want := math.Log(math.Exp(2)+2) - 2
	assert.InDelta(t, want, crossEntropy(logits, onehot).Item(), 1e-5)
}

func TestCrossEntropy_LargeLogits(t *testing.T) {
	backend := autodiff.New(cpu.New())

	logits := tensor.MustFromSlice([]float32{100, 0, 0}, tensor.Shape{1, 3}, backend)
	onehot := tensor.MustFromSlice([]float32{1, 0, 0}, tensor.Shape{1, 3}, backend)
	loss := crossEntropy(logits, onehot)
	assert.False(t, math.IsInf(float64(loss.Item()), 0))
	assert.False(t, math.IsNaN(float64(loss.Item())))
	assert.InDelta(t, 0, loss.Item(), 1e-6)

	// d/dlogits = softmax - onehot.
	grads := autodiff.Backward(loss, backend)
	grad, ok := grads[logits.Raw()]
	require.True(t, ok)
	assert.InDeltaSlice(t, []float32{0, 0, 0}, grad.Data(), 1e-6)

	wrong := tensor.MustFromSlice([]float32{0, 1, 0}, tensor.Shape{1, 3}, backend)
	assert.InDelta(t, 100, crossEntropy(logits, wrong).Item(), 1e-3)
}

func TestMatchLoss(t *testing.T) {
	require.NoError(t, matchLoss(1.00005, 1))
	require.NoError(t, matchLoss(200.01, 200))

	err := matchLoss(1.01, 1)
	require.Error(t, err)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInternal))

	err = matchLoss(0, 0.5)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInternal))
}

func TestRecord_String(t *testing.T) {
	rec := Record{RunID: "r", Epoch: 3, LR: 0.02, TrainLoss: 1.5, Accuracy: 0.5}
	assert.Equal(t,
		"run=r epoch=3 lr=0.02 train_loss=1.500000 critic_loss=0.000000 held_out_loss=0.000000 "+
			"override_loss=0.000000 accuracy=0.5000 weight_shift=0",
		rec.String())
}
