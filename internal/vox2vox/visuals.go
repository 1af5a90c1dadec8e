package vox2vox

import (
	"fmt"

	"github.com/gancer-ml/gancer/internal/autodiff"
	"github.com/gancer-ml/gancer/internal/tensor"
)

// Visual is one display-ready volume: uint8 voxels laid out [D, H, W, C],
// C = 3 after gray-to-RGB replication, otherwise the source channel count.
type Visual struct {
	Name   string
	Voxels *tensor.RawTensor
}

// CurrentVisuals converts the current real_A, fake_B, and real_B volumes to
// display form. With the no_img option (single-channel output), fake_B and
// real_B skip the gray-to-RGB replication and keep one channel.
func (m *Model[B]) CurrentVisuals() []Visual {
	grayToRGB := !m.noImg
	return []Visual{
		{Name: "real_A", Voxels: tensorToVid(m.realA, true)},
		{Name: "fake_B", Voxels: tensorToVid(m.fakeB, grayToRGB)},
		{Name: "real_B", Voxels: tensorToVid(m.realB, grayToRGB)},
	}
}

// tensorToVid maps the first sample of a [N, C, D, H, W] batch from the
// generator's [-1, 1] range to uint8 [0, 255], transposing channels to the
// innermost axis. grayToRGB replicates a single channel to three.
func tensorToVid[B autodiff.BackwardCapable](t *tensor.Tensor[float32, B], grayToRGB bool) *tensor.RawTensor {
	shape := t.Shape()
	if len(shape) != 5 {
		panic(fmt.Sprintf("tensorToVid: expected 5D batch [N,C,D,H,W], got %v", shape))
	}
	c, d, h, w := shape[1], shape[2], shape[3], shape[4]

	outC := c
	if grayToRGB && c == 1 {
		outC = 3
	}

	out, err := tensor.NewRaw(tensor.Shape{d, h, w, outC}, tensor.Uint8, t.Device())
	if err != nil {
		panic(fmt.Sprintf("tensorToVid: %v", err))
	}

	in := t.Raw().AsFloat32()
	dst := out.AsUint8()
	spatial := d * h * w
	for v := 0; v < spatial; v++ {
		for ch := 0; ch < outC; ch++ {
			src := ch
			if src >= c {
				src = 0 // replicated gray channel
			}
			val := (in[src*spatial+v] + 1) / 2 * 255
			if val < 0 {
				val = 0
			} else if val > 255 {
				val = 255
			}
			dst[v*outC+ch] = uint8(val)
		}
	}
	return out
}
