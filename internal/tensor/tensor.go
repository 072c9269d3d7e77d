// Package tensor implements float32 tensors bound to a compute backend.
//
// A Tensor is a thin handle over a RawTensor: arithmetic is delegated to the
// backend, so wrapping the CPU backend in autodiff.New records every operation
// for reverse-mode differentiation.
package tensor

import "fmt"

// Tensor is a float32 tensor bound to backend B.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros(tensor.Shape{3, 4}, backend)
//	y := x.AddScalar(1)
type Tensor[B Backend] struct {
	raw     *RawTensor
	backend B
	grad    *Tensor[B] // set by nn.CollectGrads after a backward pass
}

// New wraps a RawTensor.
func New[B Backend](raw *RawTensor, b B) *Tensor[B] {
	return &Tensor[B]{raw: raw, backend: b}
}

// FromSlice creates a tensor holding a copy of data.
func FromSlice[B Backend](data []float32, shape Shape, b B) (*Tensor[B], error) {
	raw, err := RawFromSlice(data, shape)
	if err != nil {
		return nil, err
	}
	return New(raw, b), nil
}

// MustFromSlice is FromSlice that panics on a shape/data mismatch.
func MustFromSlice[B Backend](data []float32, shape Shape, b B) *Tensor[B] {
	t, err := FromSlice(data, shape, b)
	if err != nil {
		panic(err)
	}
	return t
}

// Shape returns the tensor's shape.
func (t *Tensor[B]) Shape() Shape {
	return t.raw.Shape()
}

// NumElements returns the total number of elements.
func (t *Tensor[B]) NumElements() int {
	return t.raw.NumElements()
}

// Raw returns the underlying RawTensor.
func (t *Tensor[B]) Raw() *RawTensor {
	return t.raw
}

// Backend returns the computation backend.
func (t *Tensor[B]) Backend() B {
	return t.backend
}

// Data returns the backing slice (zero-copy).
//
// WARNING: modifications to the returned slice modify the tensor.
func (t *Tensor[B]) Data() []float32 {
	return t.raw.Data()
}

// Grad returns the gradient attached to this tensor, or nil.
func (t *Tensor[B]) Grad() *Tensor[B] {
	return t.grad
}

// SetGrad attaches a gradient to this tensor.
func (t *Tensor[B]) SetGrad(grad *Tensor[B]) {
	t.grad = grad
}

// Item returns the value of a single-element tensor.
func (t *Tensor[B]) Item() float32 {
	if t.NumElements() != 1 {
		panic(fmt.Sprintf("Item() only works for single-element tensors, got shape %v", t.Shape()))
	}
	return t.raw.Data()[0]
}

// At returns the element at the given indices.
func (t *Tensor[B]) At(indices ...int) float32 {
	return t.raw.Data()[t.offset(indices)]
}

// Set writes the element at the given indices.
func (t *Tensor[B]) Set(value float32, indices ...int) {
	t.raw.Data()[t.offset(indices)] = value
}

func (t *Tensor[B]) offset(indices []int) int {
	shape := t.Shape()
	if len(indices) != len(shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(shape), len(indices)))
	}
	off := 0
	for i, stride := range shape.ComputeStrides() {
		if indices[i] < 0 || indices[i] >= shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", indices[i], i, shape[i]))
		}
		off += indices[i] * stride
	}
	return off
}

// Clone returns a deep copy with a new identity and no gradient.
func (t *Tensor[B]) Clone() *Tensor[B] {
	return New(t.raw.Clone(), t.backend)
}

// Detach returns a tensor sharing this data under a new identity.
//
// Gradients computed through the detached tensor never reach t.
func (t *Tensor[B]) Detach() *Tensor[B] {
	view, _ := t.raw.View(t.raw.Shape()) // same element count, cannot fail
	return New(view, t.backend)
}

// String returns a short description.
func (t *Tensor[B]) String() string {
	return fmt.Sprintf("Tensor%v on %s", t.Shape(), t.backend.Name())
}
