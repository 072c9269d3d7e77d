package paramtree

import (
	"fmt"
	"log/slog"
	"sort"

	cnserrors "github.com/born-ml/metakit/internal/errors"
	"github.com/born-ml/metakit/internal/nn"
	"github.com/born-ml/metakit/internal/tensor"
)

// Option configures Override.
type Option func(*overrideConfig)

type overrideConfig struct {
	strict     bool
	shapeCheck bool
}

// WithStrict requires the map's key set to equal the tree's differentiable
// parameter names. A parameter without an entry, or an entry naming no such
// parameter, fails with NameMismatch. Strict mode also turns on shape checks.
func WithStrict() Option {
	return func(c *overrideConfig) {
		c.strict = true
		c.shapeCheck = true
	}
}

// WithShapeCheck rejects replacements whose shape differs from the parameter's
// current shape with ShapeMismatch.
func WithShapeCheck() Option {
	return func(c *overrideConfig) {
		c.shapeCheck = true
	}
}

// Override rebinds every differentiable parameter of root whose
// fully-qualified name is a key of external to the mapped tensor, and returns
// root so the caller can forward through it.
//
// Rebinding shares the tensor: later in-place writes to an external tensor
// are visible to the model, and gradients of a forward pass accrue to the
// external tensors instead of the parameters they replaced. Buffers and
// parameters with RequiresGrad=false are never rebound.
//
// By default names missing from external leave the parameter unchanged and
// keys naming nothing are ignored. Every check runs before the first rebind,
// so a failed Override leaves the tree untouched.
//
// Example:
//
//	theta := map[string]*tensor.Tensor[B]{"0.weight": w, "0.bias": b}
//	model, err := paramtree.Override(classifier, theta, paramtree.WithStrict())
//	loss := model.Forward(x).Mean()
func Override[B tensor.Backend](
	root nn.Module[B],
	external map[string]*tensor.Tensor[B],
	opts ...Option,
) (nn.Module[B], error) {
	cfg := overrideConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	targets, err := planOverride(root, external, cfg)
	if err != nil {
		overrideErrors.WithLabelValues(string(cnserrors.CodeOf(err))).Inc()
		return nil, err
	}

	for _, target := range targets {
		target.slot.Rebind(target.value)
	}

	overridesTotal.WithLabelValues(modeLabel(cfg)).Inc()
	reboundLeaves.Add(float64(len(targets)))
	slog.Debug("parameters overridden",
		"rebound", len(targets),
		"provided", len(external),
		"strict", cfg.strict)

	return root, nil
}

type overrideTarget[B tensor.Backend] struct {
	slot  Slot[B]
	value *tensor.Tensor[B]
}

func planOverride[B tensor.Backend](
	root nn.Module[B],
	external map[string]*tensor.Tensor[B],
	cfg overrideConfig,
) ([]overrideTarget[B], error) {
	var (
		targets []overrideTarget[B]
		missing []string
	)
	used := make(map[string]struct{}, len(external))

	err := Walk(root, func(s Slot[B]) error {
		if !s.Differentiable() {
			return nil
		}
		value, ok := external[s.Name]
		if !ok {
			missing = append(missing, s.Name)
			return nil
		}
		used[s.Name] = struct{}{}
		if value == nil {
			return cnserrors.NewWithContext(cnserrors.ErrCodeInvalidRequest,
				fmt.Sprintf("nil replacement for %q", s.Name),
				map[string]any{"name": s.Name})
		}
		if cfg.shapeCheck && !value.Shape().Equal(s.Tensor().Shape()) {
			return cnserrors.NewWithContext(cnserrors.ErrCodeShapeMismatch,
				fmt.Sprintf("replacement for %q has shape %v, parameter has %v",
					s.Name, value.Shape(), s.Tensor().Shape()),
				map[string]any{"name": s.Name})
		}
		targets = append(targets, overrideTarget[B]{slot: s, value: value})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !cfg.strict {
		return targets, nil
	}
	if len(missing) > 0 {
		return nil, cnserrors.NewWithContext(cnserrors.ErrCodeNameMismatch,
			fmt.Sprintf("%d parameter(s) have no replacement", len(missing)),
			map[string]any{"missing": missing})
	}
	if unknown := unusedKeys(external, used); len(unknown) > 0 {
		return nil, cnserrors.NewWithContext(cnserrors.ErrCodeNameMismatch,
			fmt.Sprintf("%d replacement(s) name no differentiable parameter", len(unknown)),
			map[string]any{"unknown": unknown})
	}
	return targets, nil
}

func unusedKeys[B tensor.Backend](external map[string]*tensor.Tensor[B], used map[string]struct{}) []string {
	var unknown []string
	for name := range external {
		if _, ok := used[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func modeLabel(cfg overrideConfig) string {
	if cfg.strict {
		return "strict"
	}
	return "permissive"
}
