package cpu

import (
	"fmt"

	"github.com/born-ml/metakit/internal/parallel"
	"github.com/born-ml/metakit/internal/tensor"
)

// convGeometry holds the dimensions shared by the forward and backward kernels.
type convGeometry struct {
	n, cIn, h, w    int
	cOut, kh, kw    int
	hOut, wOut      int
	stride, padding int
}

func newConvGeometry(input, kernel *tensor.RawTensor, stride, padding int) convGeometry {
	is, ks := input.Shape(), kernel.Shape()
	if len(is) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %v", is))
	}
	if len(ks) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in,K_h,K_w], got %v", ks))
	}
	if is[1] != ks[1] {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", is[1], ks[1]))
	}
	g := convGeometry{
		n: is[0], cIn: is[1], h: is[2], w: is[3],
		cOut: ks[0], kh: ks[2], kw: ks[3],
		stride: stride, padding: padding,
	}
	g.hOut = (g.h+2*padding-g.kh)/stride + 1
	g.wOut = (g.w+2*padding-g.kw)/stride + 1
	if g.hOut <= 0 || g.wOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output size %dx%d (check stride/padding)", g.hOut, g.wOut))
	}
	return g
}

// Conv2D performs a direct 2D convolution (cross-correlation, as in PyTorch).
//
// Input [N, C_in, H, W], kernel [C_out, C_in, K_h, K_w], output [N, C_out, H_out, W_out]
// with H_out = (H + 2*padding - K_h)/stride + 1.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry(input, kernel, stride, padding)
	out := tensor.MustRaw(tensor.Shape{g.n, g.cOut, g.hOut, g.wOut})
	in, k, o := input.Data(), kernel.Data(), out.Data()

	parallel.ForBatch(g.n, g.cOut, func(b, oc int) {
		dst := o[(b*g.cOut+oc)*g.hOut*g.wOut:]
		for oh := 0; oh < g.hOut; oh++ {
			for ow := 0; ow < g.wOut; ow++ {
				var acc float32
				for ic := 0; ic < g.cIn; ic++ {
					src := in[(b*g.cIn+ic)*g.h*g.w:]
					ker := k[(oc*g.cIn+ic)*g.kh*g.kw:]
					for i := 0; i < g.kh; i++ {
						ih := oh*g.stride - g.padding + i
						if ih < 0 || ih >= g.h {
							continue
						}
						for j := 0; j < g.kw; j++ {
							iw := ow*g.stride - g.padding + j
							if iw < 0 || iw >= g.w {
								continue
							}
							acc += src[ih*g.w+iw] * ker[i*g.kw+j]
						}
					}
				}
				dst[oh*g.wOut+ow] = acc
			}
		}
	}, cpu.par)

	return out
}

// Conv2DInputBackward computes ∂L/∂input from ∂L/∂output.
func (cpu *CPUBackend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry(input, kernel, stride, padding)
	out := tensor.MustRaw(input.Shape())
	k, gd, dIn := kernel.Data(), grad.Data(), out.Data()

	// Each batch element writes a disjoint slice of dIn.
	parallel.For(g.n, func(b int) {
		for oc := 0; oc < g.cOut; oc++ {
			gsrc := gd[(b*g.cOut+oc)*g.hOut*g.wOut:]
			for oh := 0; oh < g.hOut; oh++ {
				for ow := 0; ow < g.wOut; ow++ {
					gv := gsrc[oh*g.wOut+ow]
					if gv == 0 {
						continue
					}
					for ic := 0; ic < g.cIn; ic++ {
						dst := dIn[(b*g.cIn+ic)*g.h*g.w:]
						ker := k[(oc*g.cIn+ic)*g.kh*g.kw:]
						for i := 0; i < g.kh; i++ {
							ih := oh*g.stride - g.padding + i
							if ih < 0 || ih >= g.h {
								continue
							}
							for j := 0; j < g.kw; j++ {
								iw := ow*g.stride - g.padding + j
								if iw < 0 || iw >= g.w {
									continue
								}
								dst[ih*g.w+iw] += gv * ker[i*g.kw+j]
							}
						}
					}
				}
			}
		}
	}, cpu.par)

	return out
}

// Conv2DKernelBackward computes ∂L/∂kernel from ∂L/∂output.
func (cpu *CPUBackend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry(input, kernel, stride, padding)
	out := tensor.MustRaw(kernel.Shape())
	in, gd, dK := input.Data(), grad.Data(), out.Data()

	// Each output channel owns a disjoint slice of dK.
	parallel.For(g.cOut, func(oc int) {
		for b := 0; b < g.n; b++ {
			gsrc := gd[(b*g.cOut+oc)*g.hOut*g.wOut:]
			for ic := 0; ic < g.cIn; ic++ {
				src := in[(b*g.cIn+ic)*g.h*g.w:]
				dst := dK[(oc*g.cIn+ic)*g.kh*g.kw:]
				for i := 0; i < g.kh; i++ {
					for j := 0; j < g.kw; j++ {
						var acc float32
						for oh := 0; oh < g.hOut; oh++ {
							ih := oh*g.stride - g.padding + i
							if ih < 0 || ih >= g.h {
								continue
							}
							for ow := 0; ow < g.wOut; ow++ {
								iw := ow*g.stride - g.padding + j
								if iw < 0 || iw >= g.w {
									continue
								}
								acc += gsrc[oh*g.wOut+ow] * src[ih*g.w+iw]
							}
						}
						dst[i*g.kw+j] += acc
					}
				}
			}
		}
	}, cpu.par)

	return out
}
