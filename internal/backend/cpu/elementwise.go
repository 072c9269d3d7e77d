package cpu

import (
	"math"

	"github.com/born-ml/metakit/internal/tensor"
)

// softplusThreshold mirrors the usual linear cut-over: above it log(1+e^x) == x in float32.
const softplusThreshold = 20

// MulScalar multiplies every element by scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	return mapUnary(x, func(v float32) float32 { return v * scalar })
}

// AddScalar adds scalar to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	return mapUnary(x, func(v float32) float32 { return v + scalar })
}

// Exp computes e^x.
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return mapUnary(x, func(v float32) float32 { return float32(math.Exp(float64(v))) })
}

// Log computes ln(x).
func (cpu *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return mapUnary(x, func(v float32) float32 { return float32(math.Log(float64(v))) })
}

// Abs computes |x|.
func (cpu *CPUBackend) Abs(x *tensor.RawTensor) *tensor.RawTensor {
	return mapUnary(x, func(v float32) float32 { return float32(math.Abs(float64(v))) })
}

// Sqrt computes the square root.
func (cpu *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return mapUnary(x, func(v float32) float32 { return float32(math.Sqrt(float64(v))) })
}

// ReLU computes max(0, x).
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return mapUnary(x, func(v float32) float32 {
		if v > 0 {
			return v
		}
		return 0
	})
}

// Softplus computes log(1 + e^x).
func (cpu *CPUBackend) Softplus(x *tensor.RawTensor) *tensor.RawTensor {
	return mapUnary(x, func(v float32) float32 {
		if v > softplusThreshold {
			return v
		}
		return float32(math.Log1p(math.Exp(float64(v))))
	})
}

func mapUnary(x *tensor.RawTensor, f func(float32) float32) *tensor.RawTensor {
	out := tensor.MustRaw(x.Shape())
	src, dst := x.Data(), out.Data()
	for i, v := range src {
		dst[i] = f(v)
	}
	return out
}
