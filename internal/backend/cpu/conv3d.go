package cpu

import (
	"fmt"

	"github.com/gancer-ml/gancer/internal/tensor"
)

// Conv3D performs volumetric convolution.
//
// Input:  [N, Cin, D, H, W]
// Kernel: [Cout, Cin, KD, KH, KW]
// Output: [N, Cout, OD, OH, OW] with O = (I + 2*padding - K)/stride + 1.
func (cpu *CPUBackend) Conv3D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	in := newVolume(input, "conv3d input")
	k := newVolume(kernel, "conv3d kernel")
	if in.c != k.c1 {
		panic(fmt.Sprintf("conv3d: input channels %d != kernel channels %d", in.c, k.c1))
	}

	od := (in.d+2*padding-k.d)/stride + 1
	oh := (in.h+2*padding-k.h)/stride + 1
	ow := (in.w+2*padding-k.w)/stride + 1
	if od <= 0 || oh <= 0 || ow <= 0 {
		panic(fmt.Sprintf("conv3d: kernel %dx%dx%d too large for input %dx%dx%d (padding %d)",
			k.d, k.h, k.w, in.d, in.h, in.w, padding))
	}

	out := newVolumeOut(in.n, k.c0, od, oh, ow, cpu.device)

	for n := 0; n < in.n; n++ {
		for co := 0; co < k.c0; co++ {
			for z := 0; z < od; z++ {
				for y := 0; y < oh; y++ {
					for x := 0; x < ow; x++ {
						var acc float32
						for ci := 0; ci < in.c; ci++ {
							for kd := 0; kd < k.d; kd++ {
								id := z*stride - padding + kd
								if id < 0 || id >= in.d {
									continue
								}
								for kh := 0; kh < k.h; kh++ {
									ih := y*stride - padding + kh
									if ih < 0 || ih >= in.h {
										continue
									}
									for kw := 0; kw < k.w; kw++ {
										iw := x*stride - padding + kw
										if iw < 0 || iw >= in.w {
											continue
										}
										acc += in.at(n, ci, id, ih, iw) * k.at(co, ci, kd, kh, kw)
									}
								}
							}
						}
						out.set(acc, n, co, z, y, x)
					}
				}
			}
		}
	}

	return out.raw
}

// Conv3DInputBackward computes the gradient w.r.t. the convolution input by
// scattering each output-gradient element back through the kernel taps that
// produced it.
func (cpu *CPUBackend) Conv3DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	in := newVolume(input, "conv3d input")
	k := newVolume(kernel, "conv3d kernel")
	g := newVolume(grad, "conv3d grad")

	gin := newVolumeOut(in.n, in.c, in.d, in.h, in.w, cpu.device)

	for n := 0; n < g.n; n++ {
		for co := 0; co < g.c; co++ {
			for z := 0; z < g.d; z++ {
				for y := 0; y < g.h; y++ {
					for x := 0; x < g.w; x++ {
						gv := g.at(n, co, z, y, x)
						if gv == 0 {
							continue
						}
						for ci := 0; ci < in.c; ci++ {
							for kd := 0; kd < k.d; kd++ {
								id := z*stride - padding + kd
								if id < 0 || id >= in.d {
									continue
								}
								for kh := 0; kh < k.h; kh++ {
									ih := y*stride - padding + kh
									if ih < 0 || ih >= in.h {
										continue
									}
									for kw := 0; kw < k.w; kw++ {
										iw := x*stride - padding + kw
										if iw < 0 || iw >= in.w {
											continue
										}
										gin.add(gv*k.at(co, ci, kd, kh, kw), n, ci, id, ih, iw)
									}
								}
							}
						}
					}
				}
			}
		}
	}

	return gin.raw
}

// Conv3DKernelBackward computes the gradient w.r.t. the convolution kernel.
func (cpu *CPUBackend) Conv3DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	in := newVolume(input, "conv3d input")
	k := newVolume(kernel, "conv3d kernel")
	g := newVolume(grad, "conv3d grad")

	gk := newVolumeOut(k.c0, k.c1, k.d, k.h, k.w, cpu.device)

	for n := 0; n < g.n; n++ {
		for co := 0; co < g.c; co++ {
			for z := 0; z < g.d; z++ {
				for y := 0; y < g.h; y++ {
					for x := 0; x < g.w; x++ {
						gv := g.at(n, co, z, y, x)
						if gv == 0 {
							continue
						}
						for ci := 0; ci < in.c; ci++ {
							for kd := 0; kd < k.d; kd++ {
								id := z*stride - padding + kd
								if id < 0 || id >= in.d {
									continue
								}
								for kh := 0; kh < k.h; kh++ {
									ih := y*stride - padding + kh
									if ih < 0 || ih >= in.h {
										continue
									}
									for kw := 0; kw < k.w; kw++ {
										iw := x*stride - padding + kw
										if iw < 0 || iw >= in.w {
											continue
										}
										gk.add(gv*in.at(n, ci, id, ih, iw), co, ci, kd, kh, kw)
									}
								}
							}
						}
					}
				}
			}
		}
	}

	return gk.raw
}

// volume wraps a 5-D float32 RawTensor with index helpers. The first two
// fields read as (n, c) for data tensors and (c0, c1) for kernels.
type volume struct {
	raw    *tensor.RawTensor
	data   []float32
	n, c   int
	c0, c1 int
	d, h, w int
	s      []int
}

func newVolume(raw *tensor.RawTensor, what string) *volume {
	shape := raw.Shape()
	if len(shape) != 5 {
		panic(fmt.Sprintf("%s: expected 5D tensor [N,C,D,H,W], got %dD", what, len(shape)))
	}
	if raw.DType() != tensor.Float32 {
		panic(fmt.Sprintf("%s: only float32 supported, got %s", what, raw.DType()))
	}
	return &volume{
		raw:  raw,
		data: raw.AsFloat32(),
		n:    shape[0], c: shape[1],
		c0: shape[0], c1: shape[1],
		d: shape[2], h: shape[3], w: shape[4],
		s: shape.ComputeStrides(),
	}
}

func newVolumeOut(d0, d1, d2, d3, d4 int, device tensor.Device) *volume {
	raw, err := tensor.NewRaw(tensor.Shape{d0, d1, d2, d3, d4}, tensor.Float32, device)
	if err != nil {
		panic(fmt.Sprintf("conv3d: failed to create tensor: %v", err))
	}
	return newVolume(raw, "conv3d output")
}

func (v *volume) idx(i0, i1, i2, i3, i4 int) int {
	return i0*v.s[0] + i1*v.s[1] + i2*v.s[2] + i3*v.s[3] + i4*v.s[4]
}

func (v *volume) at(i0, i1, i2, i3, i4 int) float32 {
	return v.data[v.idx(i0, i1, i2, i3, i4)]
}

func (v *volume) set(val float32, i0, i1, i2, i3, i4 int) {
	v.data[v.idx(i0, i1, i2, i3, i4)] = val
}

func (v *volume) add(val float32, i0, i1, i2, i3, i4 int) {
	v.data[v.idx(i0, i1, i2, i3, i4)] += val
}
