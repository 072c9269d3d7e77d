package tensor

import "fmt"

// RawTensor is the low-level tensor representation: a row-major float32
// buffer plus its shape.
//
// Autodiff keys gradients by *RawTensor identity, so two RawTensors sharing a
// buffer are still distinct nodes of the computation graph.
type RawTensor struct {
	data  []float32
	shape Shape
}

// NewRaw allocates a zero-filled RawTensor.
func NewRaw(shape Shape) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &RawTensor{
		data:  make([]float32, shape.NumElements()),
		shape: shape.Clone(),
	}, nil
}

// MustRaw is NewRaw for shapes already known to be valid.
func MustRaw(shape Shape) *RawTensor {
	r, err := NewRaw(shape)
	if err != nil {
		panic(err)
	}
	return r
}

// RawFromSlice wraps a copy of data in a RawTensor.
func RawFromSlice(data []float32, shape Shape) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, got %d", shape, shape.NumElements(), len(data))
	}
	r, err := NewRaw(shape)
	if err != nil {
		return nil, err
	}
	copy(r.data, data)
	return r, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return len(r.data)
}

// Data returns the backing slice. Writes go straight to the tensor.
func (r *RawTensor) Data() []float32 {
	return r.data
}

// Clone returns a deep copy with its own identity.
func (r *RawTensor) Clone() *RawTensor {
	data := make([]float32, len(r.data))
	copy(data, r.data)
	return &RawTensor{data: data, shape: r.shape.Clone()}
}

// View returns a new RawTensor sharing this buffer under a different shape.
// The element count must match.
func (r *RawTensor) View(shape Shape) (*RawTensor, error) {
	if shape.NumElements() != len(r.data) {
		return nil, fmt.Errorf("cannot view %v as %v", r.shape, shape)
	}
	return &RawTensor{data: r.data, shape: shape.Clone()}, nil
}

// String returns a short description.
func (r *RawTensor) String() string {
	return fmt.Sprintf("RawTensor%v", r.shape)
}
