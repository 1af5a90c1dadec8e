package cpu

import (
	"fmt"

	"github.com/gancer-ml/gancer/internal/tensor"
)

// ConvTranspose3D performs volumetric transposed convolution (the decoder
// half of the U-Net blocks).
//
// Input:  [N, Cin, D, H, W]
// Kernel: [Cin, Cout, KD, KH, KW]
// Output: [N, Cout, OD, OH, OW] with O = (I-1)*stride - 2*padding + K.
func (cpu *CPUBackend) ConvTranspose3D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	in := newVolume(input, "conv_transpose3d input")
	k := newVolume(kernel, "conv_transpose3d kernel")
	if in.c != k.c0 {
		panic(fmt.Sprintf("conv_transpose3d: input channels %d != kernel channels %d", in.c, k.c0))
	}

	od := (in.d-1)*stride - 2*padding + k.d
	oh := (in.h-1)*stride - 2*padding + k.h
	ow := (in.w-1)*stride - 2*padding + k.w
	if od <= 0 || oh <= 0 || ow <= 0 {
		panic(fmt.Sprintf("conv_transpose3d: degenerate output %dx%dx%d", od, oh, ow))
	}

	out := newVolumeOut(in.n, k.c1, od, oh, ow, cpu.device)

	for n := 0; n < in.n; n++ {
		for ci := 0; ci < in.c; ci++ {
			for z := 0; z < in.d; z++ {
				for y := 0; y < in.h; y++ {
					for x := 0; x < in.w; x++ {
						iv := in.at(n, ci, z, y, x)
						if iv == 0 {
							continue
						}
						for co := 0; co < k.c1; co++ {
							for kd := 0; kd < k.d; kd++ {
								zo := z*stride - padding + kd
								if zo < 0 || zo >= od {
									continue
								}
								for kh := 0; kh < k.h; kh++ {
									yo := y*stride - padding + kh
									if yo < 0 || yo >= oh {
										continue
									}
									for kw := 0; kw < k.w; kw++ {
										xo := x*stride - padding + kw
										if xo < 0 || xo >= ow {
											continue
										}
										out.add(iv*k.at(ci, co, kd, kh, kw), n, co, zo, yo, xo)
									}
								}
							}
						}
					}
				}
			}
		}
	}

	return out.raw
}

// ConvTranspose3DInputBackward computes the gradient w.r.t. the input.
// Transposed convolution's input gradient is an ordinary convolution of the
// output gradient with the same kernel.
func (cpu *CPUBackend) ConvTranspose3DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	in := newVolume(input, "conv_transpose3d input")
	k := newVolume(kernel, "conv_transpose3d kernel")
	g := newVolume(grad, "conv_transpose3d grad")

	gin := newVolumeOut(in.n, in.c, in.d, in.h, in.w, cpu.device)

	for n := 0; n < in.n; n++ {
		for ci := 0; ci < in.c; ci++ {
			for z := 0; z < in.d; z++ {
				for y := 0; y < in.h; y++ {
					for x := 0; x < in.w; x++ {
						var acc float32
						for co := 0; co < k.c1; co++ {
							for kd := 0; kd < k.d; kd++ {
								zo := z*stride - padding + kd
								if zo < 0 || zo >= g.d {
									continue
								}
								for kh := 0; kh < k.h; kh++ {
									yo := y*stride - padding + kh
									if yo < 0 || yo >= g.h {
										continue
									}
									for kw := 0; kw < k.w; kw++ {
										xo := x*stride - padding + kw
										if xo < 0 || xo >= g.w {
											continue
										}
										acc += g.at(n, co, zo, yo, xo) * k.at(ci, co, kd, kh, kw)
									}
								}
							}
						}
						gin.set(acc, n, ci, z, y, x)
					}
				}
			}
		}
	}

	return gin.raw
}

// ConvTranspose3DKernelBackward computes the gradient w.r.t. the kernel.
func (cpu *CPUBackend) ConvTranspose3DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	in := newVolume(input, "conv_transpose3d input")
	k := newVolume(kernel, "conv_transpose3d kernel")
	g := newVolume(grad, "conv_transpose3d grad")

	gk := newVolumeOut(k.c0, k.c1, k.d, k.h, k.w, cpu.device)

	for n := 0; n < in.n; n++ {
		for ci := 0; ci < in.c; ci++ {
			for z := 0; z < in.d; z++ {
				for y := 0; y < in.h; y++ {
					for x := 0; x < in.w; x++ {
						iv := in.at(n, ci, z, y, x)
						if iv == 0 {
							continue
						}
						for co := 0; co < k.c1; co++ {
							for kd := 0; kd < k.d; kd++ {
								zo := z*stride - padding + kd
								if zo < 0 || zo >= g.d {
									continue
								}
								for kh := 0; kh < k.h; kh++ {
									yo := y*stride - padding + kh
									if yo < 0 || yo >= g.h {
										continue
									}
									for kw := 0; kw < k.w; kw++ {
										xo := x*stride - padding + kw
										if xo < 0 || xo >= g.w {
											continue
										}
										gk.add(iv*g.at(n, co, zo, yo, xo), ci, co, kd, kh, kw)
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
