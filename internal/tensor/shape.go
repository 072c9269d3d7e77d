package tensor

import (
	"fmt"
	"strconv"
	"strings"
)

// Shape represents the dimensions of a tensor.
// An empty Shape is a scalar.
type Shape []int

// NumElements returns the total number of elements described by the shape.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int {
	return len(s)
}

// Validate checks that every dimension is positive.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal reports whether two shapes have identical dimensions.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	acc := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= s[i]
	}
	return strides
}

// String formats the shape as [d0 d1 ...].
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.Itoa(d)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// BroadcastShapes applies NumPy broadcasting rules to two shapes.
//
// Shapes are aligned from the right; a pair of dimensions is compatible when
// they are equal or one of them is 1. Missing leading dimensions count as 1.
//
//	(3, 1) + (3, 5) → (3, 5)
//	(5)    + (2, 5) → (2, 5)
//	(3, 4) + (3, 5) → error
func BroadcastShapes(a, b Shape) (Shape, error) {
	rank := max(len(a), len(b))
	out := make(Shape, rank)

	for i := 0; i < rank; i++ {
		aDim := dimFromRight(a, i)
		bDim := dimFromRight(b, i)

		switch {
		case aDim == bDim, bDim == 1:
			out[rank-1-i] = aDim
		case aDim == 1:
			out[rank-1-i] = bDim
		default:
			return nil, fmt.Errorf("shapes not compatible for broadcasting: %v vs %v", a, b)
		}
	}

	return out, nil
}

func dimFromRight(s Shape, i int) int {
	idx := len(s) - 1 - i
	if idx < 0 {
		return 1
	}
	return s[idx]
}
