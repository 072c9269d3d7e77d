// Package paramtree addresses a module's parameters by fully-qualified dotted
// name and rebinds them.
//
// Names follow the module tree: a parameter "weight" owned by child "1" of
// child "classifier" is "classifier.1.weight". Two operations build on that:
//
//   - Override rebinds parameter slots to caller-supplied tensors, so a
//     forward pass reads them and gradients accrue to them (functional
//     substitution).
//   - HotSwap rebinds every parameter to original - lr*grad and back.
//
// Both mutate the tree in place and assume exclusive access to it.
package paramtree

import (
	"fmt"
	"strings"

	cnserrors "github.com/born-ml/metakit/internal/errors"
	"github.com/born-ml/metakit/internal/nn"
	"github.com/born-ml/metakit/internal/tensor"
)

// Slot is a mutable reference to one leaf of the tree: a parameter or a buffer.
type Slot[B tensor.Backend] struct {
	Name   string
	Param  *nn.Parameter[B] // nil for buffers
	Buffer *nn.Buffer[B]    // nil for parameters
}

// IsParameter reports whether the slot holds a parameter.
func (s Slot[B]) IsParameter() bool {
	return s.Param != nil
}

// Differentiable reports whether Override may rebind the slot.
func (s Slot[B]) Differentiable() bool {
	return s.Param != nil && s.Param.RequiresGrad()
}

// Tensor returns the tensor currently in the slot.
func (s Slot[B]) Tensor() *tensor.Tensor[B] {
	if s.Param != nil {
		return s.Param.Tensor()
	}
	return s.Buffer.Tensor()
}

// Rebind replaces the slot's tensor.
func (s Slot[B]) Rebind(t *tensor.Tensor[B]) {
	if s.Param != nil {
		s.Param.Rebind(t)
		return
	}
	s.Buffer.Rebind(t)
}

// Walk visits every leaf under root, depth-first: a module's own parameters,
// then its buffers, then each child in order. fn's error stops the walk.
//
// Duplicate fully-qualified names fail with NameMismatch.
func Walk[B tensor.Backend](root nn.Module[B], fn func(Slot[B]) error) error {
	seen := make(map[string]struct{})
	return walk(root, "", seen, fn)
}

func walk[B tensor.Backend](m nn.Module[B], prefix string, seen map[string]struct{}, fn func(Slot[B]) error) error {
	node, ok := m.(nn.Node[B])
	if !ok {
		return nil
	}

	visit := func(slot Slot[B]) error {
		if _, dup := seen[slot.Name]; dup {
			return cnserrors.NewWithContext(cnserrors.ErrCodeNameMismatch,
				fmt.Sprintf("duplicate parameter name %q", slot.Name),
				map[string]any{"name": slot.Name})
		}
		seen[slot.Name] = struct{}{}
		return fn(slot)
	}

	for _, p := range node.NamedParameters() {
		if err := visit(Slot[B]{Name: join(prefix, p.Name()), Param: p}); err != nil {
			return err
		}
	}
	for _, b := range node.NamedBuffers() {
		if err := visit(Slot[B]{Name: join(prefix, b.Name()), Buffer: b}); err != nil {
			return err
		}
	}
	for _, child := range node.Children() {
		if err := walk(child.Module, join(prefix, child.Name), seen, fn); err != nil {
			return err
		}
	}
	return nil
}

// Parameters returns every parameter slot under root in walk order.
func Parameters[B tensor.Backend](root nn.Module[B]) ([]Slot[B], error) {
	var slots []Slot[B]
	err := Walk(root, func(s Slot[B]) error {
		if s.IsParameter() {
			slots = append(slots, s)
		}
		return nil
	})
	return slots, err
}

// Names returns the fully-qualified names of every parameter under root.
func Names[B tensor.Backend](root nn.Module[B]) ([]string, error) {
	slots, err := Parameters(root)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(slots))
	for i, s := range slots {
		names[i] = s.Name
	}
	return names, nil
}

// Resolve follows a dotted name from root to a parameter or buffer.
//
//	slot, err := paramtree.Resolve(model, "layer1.0.bn1.running_mean")
func Resolve[B tensor.Backend](root nn.Module[B], name string) (Slot[B], error) {
	path := strings.Split(name, ".")
	cursor := root
	for _, seg := range path[:len(path)-1] {
		child, ok := childByName(cursor, seg)
		if !ok {
			return Slot[B]{}, notFound(name)
		}
		cursor = child
	}

	node, ok := cursor.(nn.Node[B])
	if !ok {
		return Slot[B]{}, notFound(name)
	}
	leaf := path[len(path)-1]
	for _, p := range node.NamedParameters() {
		if p.Name() == leaf {
			return Slot[B]{Name: name, Param: p}, nil
		}
	}
	for _, b := range node.NamedBuffers() {
		if b.Name() == leaf {
			return Slot[B]{Name: name, Buffer: b}, nil
		}
	}
	return Slot[B]{}, notFound(name)
}

func childByName[B tensor.Backend](m nn.Module[B], name string) (nn.Module[B], bool) {
	node, ok := m.(nn.Node[B])
	if !ok {
		return nil, false
	}
	for _, child := range node.Children() {
		if child.Name == name {
			return child.Module, true
		}
	}
	return nil, false
}

func notFound(name string) error {
	return cnserrors.NewWithContext(cnserrors.ErrCodeNameMismatch,
		fmt.Sprintf("no parameter or buffer named %q", name),
		map[string]any{"name": name})
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
