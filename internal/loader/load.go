package loader

import (
	"fmt"
	"log/slog"
	"strings"

	cnserrors "github.com/born-ml/metakit/internal/errors"
	"github.com/born-ml/metakit/internal/nn"
	"github.com/born-ml/metakit/internal/paramtree"
	"github.com/born-ml/metakit/internal/tensor"
)

// Option configures LoadInto.
type Option func(*loadConfig)

type loadConfig struct {
	skip []string
}

// WithSkipPrefix ignores file entries whose name starts with any of prefixes,
// e.g. "fc." when the classification head has been replaced.
func WithSkipPrefix(prefixes ...string) Option {
	return func(c *loadConfig) {
		c.skip = append(c.skip, prefixes...)
	}
}

// Report lists what LoadInto did with each file entry.
type Report struct {
	Loaded     []string
	Skipped    []string
	Unresolved []string
}

// LoadInto copies every tensor of the file at path into the parameter or
// buffer of root with the same fully-qualified name. Values are copied into
// the slot's current tensor; slots are not rebound.
//
// Entries that do not resolve are returned in Report.Unresolved. A shape
// mismatch fails with ShapeMismatch before anything is written.
func LoadInto[B tensor.Backend](root nn.Module[B], path string, opts ...Option) (Report, error) {
	cfg := loadConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	r, err := Open(path)
	if err != nil {
		return Report{}, err
	}
	defer func() { _ = r.Close() }()

	type pending struct {
		slot paramtree.Slot[B]
		raw  *tensor.RawTensor
	}
	var (
		report Report
		writes []pending
	)
	for _, name := range r.Names() {
		if hasPrefix(name, cfg.skip) {
			report.Skipped = append(report.Skipped, name)
			continue
		}
		slot, err := paramtree.Resolve(root, name)
		if err != nil {
			report.Unresolved = append(report.Unresolved, name)
			continue
		}
		raw, err := r.ReadF32(name)
		if err != nil {
			return Report{}, err
		}
		if want := slot.Tensor().Shape(); !raw.Shape().Equal(want) {
			return Report{}, cnserrors.NewWithContext(cnserrors.ErrCodeShapeMismatch,
				fmt.Sprintf("weight %q has shape %v, model expects %v", name, raw.Shape(), want),
				map[string]any{"name": name, "path": path})
		}
		writes = append(writes, pending{slot: slot, raw: raw})
	}

	for _, w := range writes {
		copy(w.slot.Tensor().Data(), w.raw.Data())
		report.Loaded = append(report.Loaded, w.slot.Name)
	}

	slog.Debug("weights loaded",
		"path", path,
		"loaded", len(report.Loaded),
		"skipped", len(report.Skipped),
		"unresolved", len(report.Unresolved))
	return report, nil
}

// Save writes every parameter and buffer of root to path.
func Save[B tensor.Backend](root nn.Module[B], path string, metadata map[string]string) error {
	tensors := make(map[string]*tensor.RawTensor)
	err := paramtree.Walk(root, func(s paramtree.Slot[B]) error {
		tensors[s.Name] = s.Tensor().Raw()
		return nil
	})
	if err != nil {
		return err
	}
	return Write(path, tensors, metadata)
}

func hasPrefix(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
