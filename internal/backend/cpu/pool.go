package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/metakit/internal/tensor"
)

type poolGeometry struct {
	n, c, h, w         int
	k, stride, padding int
	hOut, wOut         int
}

func newPoolGeometry(op string, input *tensor.RawTensor, kernelSize, stride, padding int) poolGeometry {
	s := input.Shape()
	if len(s) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,C,H,W], got %v", op, s))
	}
	g := poolGeometry{
		n: s[0], c: s[1], h: s[2], w: s[3],
		k: kernelSize, stride: stride, padding: padding,
	}
	g.hOut = (g.h+2*padding-kernelSize)/stride + 1
	g.wOut = (g.w+2*padding-kernelSize)/stride + 1
	if g.hOut <= 0 || g.wOut <= 0 {
		panic(fmt.Sprintf("%s: kernel %d too large for %dx%d input", op, kernelSize, g.h, g.w))
	}
	return g
}

// window calls f for every in-bounds input cell of the pooling window at (oh, ow).
func (g poolGeometry) window(oh, ow int, f func(ih, iw int)) {
	for i := 0; i < g.k; i++ {
		ih := oh*g.stride - g.padding + i
		if ih < 0 || ih >= g.h {
			continue
		}
		for j := 0; j < g.k; j++ {
			iw := ow*g.stride - g.padding + j
			if iw < 0 || iw >= g.w {
				continue
			}
			f(ih, iw)
		}
	}
}

// MaxPool2D takes the maximum over each window. Padding never wins.
func (cpu *CPUBackend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	g := newPoolGeometry("maxpool2d", input, kernelSize, stride, padding)
	out := tensor.MustRaw(tensor.Shape{g.n, g.c, g.hOut, g.wOut})
	in, o := input.Data(), out.Data()

	for plane := 0; plane < g.n*g.c; plane++ {
		src := in[plane*g.h*g.w:]
		dst := o[plane*g.hOut*g.wOut:]
		for oh := 0; oh < g.hOut; oh++ {
			for ow := 0; ow < g.wOut; ow++ {
				best := float32(math.Inf(-1))
				g.window(oh, ow, func(ih, iw int) {
					if v := src[ih*g.w+iw]; v > best {
						best = v
					}
				})
				dst[oh*g.wOut+ow] = best
			}
		}
	}
	return out
}

// MaxPool2DBackward routes each output gradient to the first maximal input of its window.
func (cpu *CPUBackend) MaxPool2DBackward(input, grad *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	g := newPoolGeometry("maxpool2d backward", input, kernelSize, stride, padding)
	out := tensor.MustRaw(input.Shape())
	in, gd, dIn := input.Data(), grad.Data(), out.Data()

	for plane := 0; plane < g.n*g.c; plane++ {
		src := in[plane*g.h*g.w:]
		gsrc := gd[plane*g.hOut*g.wOut:]
		dst := dIn[plane*g.h*g.w:]
		for oh := 0; oh < g.hOut; oh++ {
			for ow := 0; ow < g.wOut; ow++ {
				best, at := float32(math.Inf(-1)), -1
				g.window(oh, ow, func(ih, iw int) {
					if v := src[ih*g.w+iw]; v > best {
						best, at = v, ih*g.w+iw
					}
				})
				if at >= 0 {
					dst[at] += gsrc[oh*g.wOut+ow]
				}
			}
		}
	}
	return out
}

// AvgPool2D averages each window. Padded cells count towards the k*k divisor.
func (cpu *CPUBackend) AvgPool2D(input *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	g := newPoolGeometry("avgpool2d", input, kernelSize, stride, padding)
	out := tensor.MustRaw(tensor.Shape{g.n, g.c, g.hOut, g.wOut})
	in, o := input.Data(), out.Data()
	scale := 1 / float32(g.k*g.k)

	for plane := 0; plane < g.n*g.c; plane++ {
		src := in[plane*g.h*g.w:]
		dst := o[plane*g.hOut*g.wOut:]
		for oh := 0; oh < g.hOut; oh++ {
			for ow := 0; ow < g.wOut; ow++ {
				var acc float32
				g.window(oh, ow, func(ih, iw int) { acc += src[ih*g.w+iw] })
				dst[oh*g.wOut+ow] = acc * scale
			}
		}
	}
	return out
}

// AvgPool2DBackward spreads each output gradient evenly over its window.
func (cpu *CPUBackend) AvgPool2DBackward(input, grad *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	g := newPoolGeometry("avgpool2d backward", input, kernelSize, stride, padding)
	out := tensor.MustRaw(input.Shape())
	gd, dIn := grad.Data(), out.Data()
	scale := 1 / float32(g.k*g.k)

	for plane := 0; plane < g.n*g.c; plane++ {
		gsrc := gd[plane*g.hOut*g.wOut:]
		dst := dIn[plane*g.h*g.w:]
		for oh := 0; oh < g.hOut; oh++ {
			for ow := 0; ow < g.wOut; ow++ {
				share := gsrc[oh*g.wOut+ow] * scale
				g.window(oh, ow, func(ih, iw int) { dst[ih*g.w+iw] += share })
			}
		}
	}
	return out
}
