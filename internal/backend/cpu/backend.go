// Package cpu implements the tensor.Backend interface with plain Go float32 kernels.
package cpu

import (
	"fmt"

	"github.com/born-ml/metakit/internal/parallel"
	"github.com/born-ml/metakit/internal/tensor"
)

// CPUBackend implements tensor operations on the CPU.
type CPUBackend struct {
	par parallel.Config
}

// New creates a new CPU backend using all available cores for convolutions.
func New() *CPUBackend {
	return &CPUBackend{par: parallel.DefaultConfig()}
}

// NewSequential creates a CPU backend that never spawns goroutines.
func NewSequential() *CPUBackend {
	return &CPUBackend{par: parallel.Config{}}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return broadcastBinary("add", a, b, func(x, y float32) float32 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return broadcastBinary("sub", a, b, func(x, y float32) float32 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return broadcastBinary("mul", a, b, func(x, y float32) float32 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return broadcastBinary("div", a, b, func(x, y float32) float32 { return x / y })
}

// MatMul multiplies [M, K] by [K, N].
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	as, bs := a.Shape(), b.Shape()
	if len(as) != 2 || len(bs) != 2 {
		panic(fmt.Sprintf("matmul: expected 2D operands, got %v and %v", as, bs))
	}
	if as[1] != bs[0] {
		panic(fmt.Sprintf("matmul: inner dimensions differ: %v @ %v", as, bs))
	}
	m, k, n := as[0], as[1], bs[1]
	out := tensor.MustRaw(tensor.Shape{m, n})
	ad, bd, od := a.Data(), b.Data(), out.Data()

	// i-p-j loop order keeps the inner loop on contiguous memory.
	for i := 0; i < m; i++ {
		row := od[i*n : (i+1)*n]
		for p := 0; p < k; p++ {
			av := ad[i*k+p]
			if av == 0 {
				continue
			}
			brow := bd[p*n : (p+1)*n]
			for j := range row {
				row[j] += av * brow[j]
			}
		}
	}
	return out
}

// Transpose swaps the two axes of a 2D tensor.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor) *tensor.RawTensor {
	s := t.Shape()
	if len(s) != 2 {
		panic(fmt.Sprintf("transpose: expected 2D tensor, got %v", s))
	}
	rows, cols := s[0], s[1]
	out := tensor.MustRaw(tensor.Shape{cols, rows})
	src, dst := t.Data(), out.Data()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			dst[c*rows+r] = src[r*cols+c]
		}
	}
	return out
}

// Reshape returns a view of t with a new shape.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	view, err := t.View(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return view
}

// broadcastBinary applies f element-wise after broadcasting a and b to a common shape.
func broadcastBinary(op string, a, b *tensor.RawTensor, f func(x, y float32) float32) *tensor.RawTensor {
	outShape, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	out := tensor.MustRaw(outShape)
	ad, bd, od := a.Data(), b.Data(), out.Data()

	if a.Shape().Equal(b.Shape()) {
		for i := range od {
			od[i] = f(ad[i], bd[i])
		}
		return out
	}

	aStrides := broadcastStrides(a.Shape(), outShape)
	bStrides := broadcastStrides(b.Shape(), outShape)
	idx := make([]int, len(outShape))
	for i := range od {
		ai, bi := 0, 0
		for d, v := range idx {
			ai += v * aStrides[d]
			bi += v * bStrides[d]
		}
		od[i] = f(ad[ai], bd[bi])

		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < outShape[d] {
				break
			}
			idx[d] = 0
		}
	}
	return out
}

// broadcastStrides maps an output index onto s: broadcast dimensions get stride 0.
func broadcastStrides(s, out tensor.Shape) []int {
	strides := make([]int, len(out))
	own := s.ComputeStrides()
	lead := len(out) - len(s)
	for d := range out {
		sd := d - lead
		if sd < 0 || s[sd] == 1 {
			continue
		}
		strides[d] = own[sd]
	}
	return strides
}
