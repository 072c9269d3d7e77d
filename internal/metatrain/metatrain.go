// Package metatrain runs a synthetic Feature-Critic / MLDG meta-update loop
// over the metakit building blocks.
//
// Each epoch:
//
//  1. The classifier and critic see a training batch; the inner loss is
//     cross-entropy plus the critic's auxiliary loss.
//  2. HotSwap steps the classifier by meta_lr along the inner gradient and
//     evaluates it on a held-out batch. That meta loss is differentiable
//     with respect to the original parameters.
//  3. The same stepped parameters are built as external tensors and
//     substituted into a second head with paramtree.Override; its held-out
//     loss must match the hot-swapped one.
//  4. SGD applies the inner and meta gradients to the classifier and the
//     inner gradient to the critic, at the scheduled learning rate.
//
// One Record per epoch is appended to the run log.
package metatrain

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/born-ml/metakit/internal/autodiff"
	"github.com/born-ml/metakit/internal/backend/cpu"
	"github.com/born-ml/metakit/internal/data"
	cnserrors "github.com/born-ml/metakit/internal/errors"
	"github.com/born-ml/metakit/internal/metric"
	"github.com/born-ml/metakit/internal/models"
	"github.com/born-ml/metakit/internal/nn"
	"github.com/born-ml/metakit/internal/optim"
	"github.com/born-ml/metakit/internal/paramtree"
	"github.com/born-ml/metakit/internal/runlog"
	"github.com/born-ml/metakit/internal/tensor"
)

// Backend is the differentiable CPU backend the loop runs on.
type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// Options configures Run.
type Options struct {
	RunID        string
	Epochs       int
	Classes      int
	BatchSize    int
	CriticHidden int
	InitLR       float64
	MetaLR       float64
	Seed         uint64

	// RunLog receives one line per epoch; empty disables it.
	RunLog string

	// Extractor feeds random 72×72 images through a ResNet-18 feature
	// extractor instead of sampling features directly.
	Extractor bool

	// Weights is passed to the feature extractor when Extractor is set.
	Weights string
}

// Record summarizes one epoch.
type Record struct {
	RunID        string
	Epoch        int
	LR           float64
	TrainLoss    float32
	CriticLoss   float32
	HeldOutLoss  float32
	OverrideLoss float32
	Accuracy     float64
	WeightShift  float64
}

// String renders the record as one key=value line.
func (r Record) String() string {
	return fmt.Sprintf("run=%s epoch=%d lr=%.6g train_loss=%.6f critic_loss=%.6f held_out_loss=%.6f "+
		"override_loss=%.6f accuracy=%.4f weight_shift=%.6g",
		r.RunID, r.Epoch, r.LR, r.TrainLoss, r.CriticLoss, r.HeldOutLoss,
		r.OverrideLoss, r.Accuracy, r.WeightShift)
}

type loop struct {
	opts    Options
	rng     *rand.Rand
	backend Backend

	extractor  *models.FeatureExtractor[Backend]
	classifier *nn.Sequential[Backend]
	critic     *models.Critic[Backend]
	hotSwap    *paramtree.HotSwap[Backend]

	classifierOpt *optim.SGD[Backend]
	criticOpt     *optim.SGD[Backend]
}

// Run executes opts.Epochs meta-updates and returns their records.
func Run(ctx context.Context, opts Options) ([]Record, error) {
	if err := validate(opts); err != nil {
		return nil, err
	}

	l, err := newLoop(opts)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, opts.Epochs)
	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		rec, err := l.epoch(epoch)
		if err != nil {
			return records, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		if opts.RunLog != "" {
			if err := runlog.Write(opts.RunLog, rec); err != nil {
				return records, err
			}
		}
		slog.Debug("meta-update finished", "run", opts.RunID, "epoch", epoch,
			"held_out_loss", rec.HeldOutLoss, "accuracy", rec.Accuracy)
		records = append(records, rec)
	}
	return records, nil
}

func validate(opts Options) error {
	switch {
	case opts.Epochs < 1:
		return cnserrors.New(cnserrors.ErrCodeInvalidRequest, "epochs must be at least 1")
	case opts.Classes < 2:
		return cnserrors.New(cnserrors.ErrCodeInvalidRequest, "classes must be at least 2")
	case opts.BatchSize < opts.Classes:
		return cnserrors.New(cnserrors.ErrCodeInvalidRequest, "batch size must cover every class")
	case opts.CriticHidden < 1:
		return cnserrors.New(cnserrors.ErrCodeInvalidRequest, "critic hidden width must be at least 1")
	case opts.InitLR <= 0 || opts.MetaLR <= 0:
		return cnserrors.New(cnserrors.ErrCodeInvalidRequest, "learning rates must be positive")
	}
	return nil
}

func newLoop(opts Options) (*loop, error) {
	backend := autodiff.New(cpu.New())
	l := &loop{
		opts:       opts,
		rng:        rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)), //nolint:gosec // G404: synthetic data
		backend:    backend,
		classifier: models.NewClassifier(opts.Classes, backend),
		critic:     models.NewCriticMLP(models.FeatureWidth, opts.CriticHidden, backend),
	}

	if opts.Extractor {
		ext, err := models.NewFeatureExtractor(models.FeatureWidth, backend,
			models.ExtractorOptions{Weights: opts.Weights})
		if err != nil {
			return nil, err
		}
		l.extractor = ext
	}

	hs, err := paramtree.NewHotSwap[Backend](l.classifier)
	if err != nil {
		return nil, err
	}
	l.hotSwap = hs

	lr := float32(opts.InitLR)
	l.classifierOpt = optim.NewSGD(nn.TrainableParameters[Backend](l.classifier, 0), optim.SGDConfig{LR: lr})
	l.criticOpt = optim.NewSGD(l.critic.Parameters(), optim.SGDConfig{LR: lr})
	return l, nil
}

func (l *loop) epoch(epoch int) (Record, error) {
	tape := l.backend.Tape()
	tape.Clear()
	tape.StartRecording()
	defer tape.StopRecording()

	lr := optim.LearningRate(l.opts.InitLR, epoch)
	l.classifierOpt.SetLR(float32(lr))
	l.criticOpt.SetLR(float32(lr))
	metaLR := float32(l.opts.MetaLR)

	xTrain, yTrain, _, err := l.batch()
	if err != nil {
		return Record{}, err
	}
	xHeld, yHeld, heldRows, err := l.batch()
	if err != nil {
		return Record{}, err
	}

	// Inner step: CE + critic on the training batch.
	ce := crossEntropy(l.classifier.Forward(xTrain), yTrain)
	aux := l.critic.Forward(xTrain)
	innerGrads := autodiff.Backward(ce.Add(aux), l.backend)
	if nn.CollectGrads[Backend](l.classifier, innerGrads) == 0 {
		return Record{}, cnserrors.New(cnserrors.ErrCodeInternal, "classifier received no gradient")
	}

	// Meta step: evaluate θ - metaLR·∇θ on the held-out batch.
	if err := l.hotSwap.Update(metaLR); err != nil {
		return Record{}, err
	}
	heldLogits := l.classifier.Forward(xHeld)
	heldLoss := crossEntropy(heldLogits, yHeld)
	metaGrads := autodiff.Backward(heldLoss, l.backend)
	shift, err := l.weightShift()
	if err != nil {
		return Record{}, err
	}
	if err := l.hotSwap.Restore(); err != nil {
		return Record{}, err
	}

	accuracy, err := metric.Accuracy(rows(heldLogits), heldRows, 0)
	if err != nil {
		return Record{}, err
	}

	overrideLoss, err := l.overrideLoss(metaLR, xHeld, yHeld, heldLoss.Item())
	if err != nil {
		return Record{}, err
	}

	l.classifierOpt.Step(innerGrads)
	l.classifierOpt.Step(metaGrads)
	l.criticOpt.Step(innerGrads)
	nn.ZeroGrad[Backend](l.classifier)

	return Record{
		RunID:        l.opts.RunID,
		Epoch:        epoch,
		LR:           lr,
		TrainLoss:    ce.Item(),
		CriticLoss:   aux.Item(),
		HeldOutLoss:  heldLoss.Item(),
		OverrideLoss: overrideLoss,
		Accuracy:     accuracy,
		WeightShift:  shift,
	}, nil
}

// overrideLoss rebuilds the stepped parameters as external leaves, substitutes
// them into a fresh head and checks that gradients reach every one of them
// and that the resulting loss matches the hot-swapped held-out loss want.
func (l *loop) overrideLoss(metaLR float32, x, y *tensor.Tensor[Backend], want float32) (float32, error) {
	names := l.hotSwap.Names()
	theta := make(map[string]*tensor.Tensor[Backend], len(names))
	for _, name := range names {
		orig, _ := l.hotSwap.Original(name)
		grad := orig.Grad()
		values := make([]float32, orig.NumElements())
		for i, v := range orig.Data() {
			values[i] = v - metaLR*grad.Data()[i]
		}
		theta[name] = tensor.MustFromSlice(values, orig.Shape(), l.backend)
	}

	head, err := paramtree.Override[Backend](models.NewClassifier(l.opts.Classes, l.backend), theta, paramtree.WithStrict())
	if err != nil {
		return 0, err
	}
	loss := crossEntropy(head.Forward(x), y)
	grads := autodiff.Backward(loss, l.backend)
	for name, t := range theta {
		if _, ok := grads[t.Raw()]; !ok {
			return 0, cnserrors.New(cnserrors.ErrCodeInternal,
				fmt.Sprintf("override parameter %q received no gradient", name))
		}
	}
	if err := matchLoss(loss.Item(), want); err != nil {
		return 0, err
	}
	return loss.Item(), nil
}

// lossTolerance is relative to max(1, |want|).
const lossTolerance = 1e-4

// matchLoss fails when the override loss drifts from the hot-swapped one.
func matchLoss(got, want float32) error {
	scale := math.Max(1, math.Abs(float64(want)))
	if diff := math.Abs(float64(got - want)); diff > lossTolerance*scale {
		return cnserrors.NewWithContext(cnserrors.ErrCodeInternal,
			"override loss does not match hot-swapped loss",
			map[string]any{"override": got, "hot_swap": want, "diff": diff})
	}
	return nil
}

// weightShift is the cosine distance between the original and stepped
// classifier weights.
func (l *loop) weightShift() (float64, error) {
	slot, err := paramtree.Resolve[Backend](l.classifier, "0.weight")
	if err != nil {
		return 0, err
	}
	orig, _ := l.hotSwap.Original("0.weight")
	return metric.CosineDistance(orig.Data(), slot.Tensor().Data())
}

// batch samples features and balanced, shuffled one-hot labels.
func (l *loop) batch() (*tensor.Tensor[Backend], *tensor.Tensor[Backend], [][]float32, error) {
	n, classes := l.opts.BatchSize, l.opts.Classes

	labels := make([]int, n)
	for i := range labels {
		labels[i] = i % classes
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	_, labels, err := data.Shuffle(order, labels, l.rng)
	if err != nil {
		return nil, nil, nil, err
	}
	onehot, err := data.UnfoldLabel(labels, classes)
	if err != nil {
		return nil, nil, nil, err
	}

	flat := make([]float32, 0, n*classes)
	labelRows := make([][]float32, n)
	for i, row := range onehot {
		labelRows[i] = make([]float32, classes)
		for j, v := range row {
			labelRows[i][j] = float32(v)
		}
		flat = append(flat, labelRows[i]...)
	}
	y := tensor.MustFromSlice(flat, tensor.Shape{n, classes}, l.backend)

	var x *tensor.Tensor[Backend]
	if l.extractor != nil {
		size := models.ExtractorInputSize
		x = l.extractor.Forward(l.randn(tensor.Shape{n, 3, size, size}))
	} else {
		x = l.randn(tensor.Shape{n, models.FeatureWidth})
	}
	return x, y, labelRows, nil
}

func (l *loop) randn(shape tensor.Shape) *tensor.Tensor[Backend] {
	values := make([]float32, shape.NumElements())
	for i := range values {
		values[i] = float32(l.rng.NormFloat64())
	}
	return tensor.MustFromSlice(values, shape, l.backend)
}

// crossEntropy is mean(logsumexp(logits) - <logits, onehot>) over rows.
// Each row is shifted by its max before exponentiation; the shift is a
// constant, so gradients are unchanged.
func crossEntropy(logits, onehot *tensor.Tensor[Backend]) *tensor.Tensor[Backend] {
	shape := logits.Shape()
	n, c := shape[0], shape[1]
	d := logits.Data()
	maxes := make([]float32, n)
	for i := range n {
		m := d[i*c]
		for _, v := range d[i*c+1 : (i+1)*c] {
			if v > m {
				m = v
			}
		}
		maxes[i] = m
	}
	shift := tensor.MustFromSlice(maxes, tensor.Shape{n, 1}, logits.Backend())
	lse := logits.Sub(shift).Exp().SumDim(1, false).Log().Add(shift.Reshape(n))
	picked := logits.Mul(onehot).SumDim(1, false)
	return lse.Sub(picked).Mean()
}

func rows(t *tensor.Tensor[Backend]) [][]float32 {
	shape := t.Shape()
	out := make([][]float32, shape[0])
	d := t.Data()
	for i := range out {
		out[i] = d[i*shape[1] : (i+1)*shape[1]]
	}
	return out
}
