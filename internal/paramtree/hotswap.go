package paramtree

import (
	"fmt"
	"log/slog"

	cnserrors "github.com/born-ml/metakit/internal/errors"
	"github.com/born-ml/metakit/internal/nn"
	"github.com/born-ml/metakit/internal/tensor"
)

// State is the hot-swap state of a tree.
type State int

const (
	// Original means every slot holds its snapshot tensor.
	Original State = iota
	// Stepped means every slot holds original - lr*grad.
	Stepped
)

// String returns the state name.
func (s State) String() string {
	if s == Stepped {
		return "stepped"
	}
	return "original"
}

// HotSwap evaluates a model "as if" one manual SGD step had been taken,
// without an optimizer and without losing the original parameters.
//
// NewHotSwap snapshots the tensor in every parameter slot. Update always
// steps from that snapshot, never from the currently installed tensor, so
// any sequence of Updates followed by Restore puts back the very same
// tensor instances.
//
// Typical MLDG-style use:
//
//	hs, _ := paramtree.NewHotSwap(model)
//	grads := autodiff.Backward(model.Forward(x).Mean(), backend)
//	nn.CollectGrads(model, grads)
//	_ = hs.Update(0.1)   // forward now sees θ - 0.1·∇θ
//	metaLoss := model.Forward(xTest).Mean()
//	_ = hs.Restore()
type HotSwap[B tensor.Backend] struct {
	names     []string
	slots     []*nn.Parameter[B]
	originals []*tensor.Tensor[B]
	state     State
	lr        float32
}

// NewHotSwap snapshots every parameter of root in walk order.
func NewHotSwap[B tensor.Backend](root nn.Module[B]) (*HotSwap[B], error) {
	params, err := Parameters(root)
	if err != nil {
		return nil, err
	}
	hs := &HotSwap[B]{
		names:     make([]string, len(params)),
		slots:     make([]*nn.Parameter[B], len(params)),
		originals: make([]*tensor.Tensor[B], len(params)),
	}
	for i, s := range params {
		hs.names[i] = s.Name
		hs.slots[i] = s.Param
		hs.originals[i] = s.Param.Tensor()
	}
	return hs, nil
}

// Update rebinds every captured slot.
//
// For lr > 0 each slot becomes original - lr*grad, where grad is the
// gradient attached to the original tensor (see nn.CollectGrads). The step
// runs on the original's backend, so under autodiff the stepped value stays
// differentiable with respect to the original. Every leaf is checked for a
// gradient before the first rebind; a missing one fails with
// MissingGradient and leaves the tree as it was.
//
// For lr <= 0 each slot is rebound to its original tensor.
func (h *HotSwap[B]) Update(lr float32) error {
	if lr <= 0 {
		for i, p := range h.slots {
			p.Rebind(h.originals[i])
		}
		h.state, h.lr = Original, 0
		hotSwapTransitions.WithLabelValues(Original.String()).Inc()
		slog.Debug("hot-swap restored", "parameters", len(h.slots))
		return nil
	}

	for i, orig := range h.originals {
		if orig.Grad() == nil {
			return cnserrors.NewWithContext(cnserrors.ErrCodeMissingGradient,
				fmt.Sprintf("parameter %q has no gradient", h.names[i]),
				map[string]any{"name": h.names[i], "lr": lr})
		}
	}

	for i, orig := range h.originals {
		h.slots[i].Rebind(orig.Sub(orig.Grad().MulScalar(lr)))
	}
	h.state, h.lr = Stepped, lr
	hotSwapTransitions.WithLabelValues(Stepped.String()).Inc()
	slog.Debug("hot-swap stepped", "parameters", len(h.slots), "lr", lr)
	return nil
}

// Restore rebinds every slot to its original tensor. It is Update(0).
func (h *HotSwap[B]) Restore() error {
	return h.Update(0)
}

// State returns the current state and, when Stepped, the learning rate of
// the installed step.
func (h *HotSwap[B]) State() (State, float32) {
	return h.state, h.lr
}

// Names returns the captured parameter names in walk order.
func (h *HotSwap[B]) Names() []string {
	return append([]string(nil), h.names...)
}

// Original returns the snapshot tensor captured for name.
func (h *HotSwap[B]) Original(name string) (*tensor.Tensor[B], bool) {
	for i, n := range h.names {
		if n == name {
			return h.originals[i], true
		}
	}
	return nil, false
}
