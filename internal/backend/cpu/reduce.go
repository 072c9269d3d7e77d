package cpu

import (
	"fmt"

	"github.com/born-ml/metakit/internal/tensor"
)

// Sum reduces all elements to a scalar (shape []).
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	var acc float64
	for _, v := range x.Data() {
		acc += float64(v)
	}
	out := tensor.MustRaw(tensor.Shape{})
	out.Data()[0] = float32(acc)
	return out
}

// SumDim sums along dim. Negative dims count from the end.
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return reduceDim(x, dim, keepDim, false)
}

// MeanDim averages along dim. Negative dims count from the end.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return reduceDim(x, dim, keepDim, true)
}

func reduceDim(x *tensor.RawTensor, dim int, keepDim, mean bool) *tensor.RawTensor {
	shape := x.Shape()
	dim, err := normalizeDim(dim, len(shape))
	if err != nil {
		panic(fmt.Sprintf("reduce: %v", err))
	}

	outer := shape[:dim].NumElements()
	n := shape[dim]
	inner := shape[dim+1:].NumElements()

	out := tensor.MustRaw(ReducedShape(shape, dim, keepDim))
	src, dst := x.Data(), out.Data()
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			var acc float32
			for k := 0; k < n; k++ {
				acc += src[(o*n+k)*inner+i]
			}
			if mean {
				acc /= float32(n)
			}
			dst[o*inner+i] = acc
		}
	}
	return out
}

// ReducedShape returns the shape left after reducing dim.
func ReducedShape(shape tensor.Shape, dim int, keepDim bool) tensor.Shape {
	out := shape.Clone()
	if keepDim {
		out[dim] = 1
		return out
	}
	return append(out[:dim], out[dim+1:]...)
}

func normalizeDim(dim, rank int) (int, error) {
	if dim < 0 {
		dim += rank
	}
	if dim < 0 || dim >= rank {
		return 0, fmt.Errorf("dimension %d out of range for rank %d", dim, rank)
	}
	return dim, nil
}
