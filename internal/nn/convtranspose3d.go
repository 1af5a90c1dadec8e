package nn

import (
	"fmt"

	"github.com/gancer-ml/gancer/internal/tensor"
)

// ConvTranspose3D is a volumetric transposed convolution (upsampling) layer.
//
// Input shape:  [batch, in_channels, depth, height, width]
// Weight shape: [in_channels, out_channels, kd, kh, kw]
// Output shape: [batch, out_channels, od, oh, ow]
//
// where each spatial output extent is (in - 1)*stride - 2*padding + kernel.
// With kernel 4, stride 2, padding 1 this exactly doubles the volume, which
// is what the U-Net decoder relies on.
type ConvTranspose3D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int
	useBias     bool

	weight *Parameter[B]
	bias   *Parameter[B]

	backend B
}

// NewConvTranspose3D creates a volumetric transposed convolution with a
// cubic kernel. Weight initialization matches NewConv3D.
func NewConvTranspose3D[B tensor.Backend](
	inChannels, outChannels, kernelSize, stride, padding int,
	useBias bool,
	backend B,
) *ConvTranspose3D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("convtranspose3d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 || stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("convtranspose3d: invalid geometry kernel=%d stride=%d padding=%d",
			kernelSize, stride, padding))
	}

	weightShape := tensor.Shape{inChannels, outChannels, kernelSize, kernelSize, kernelSize}
	weight := tensor.Randn[float32](weightShape, backend).MulScalar(0.02)
	weightParam := NewParameter("weight", weight)

	var biasParam *Parameter[B]
	if useBias {
		biasParam = NewParameter("bias", Zeros(tensor.Shape{outChannels}, backend))
	}

	return &ConvTranspose3D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		useBias:     useBias,
		weight:      weightParam,
		bias:        biasParam,
		backend:     backend,
	}
}

// Forward performs the transposed convolution.
func (c *ConvTranspose3D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 5 {
		panic(fmt.Sprintf("convtranspose3d: expected 5D input [N,C,D,H,W], got %dD", len(shape)))
	}
	if shape[1] != c.inChannels {
		panic(fmt.Sprintf("convtranspose3d: input channels %d != expected %d", shape[1], c.inChannels))
	}

	outputRaw := c.backend.ConvTranspose3D(input.Raw(), c.weight.Tensor().Raw(), c.stride, c.padding)
	output := tensor.New[float32, B](outputRaw, c.backend)

	if c.useBias {
		biasReshaped := c.bias.Tensor().Reshape(1, c.outChannels, 1, 1, 1)
		output = output.Add(biasReshaped)
	}

	return output
}

// Parameters returns the kernel and, when present, the bias.
func (c *ConvTranspose3D[B]) Parameters() []*Parameter[B] {
	if c.useBias {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// StateDict returns the kernel and bias keyed by parameter name.
func (c *ConvTranspose3D[B]) StateDict() map[string]*tensor.RawTensor {
	sd := map[string]*tensor.RawTensor{
		"weight": c.weight.Tensor().Raw(),
	}
	if c.useBias {
		sd["bias"] = c.bias.Tensor().Raw()
	}
	return sd
}

// LoadStateDict loads the kernel and bias from a state dictionary.
func (c *ConvTranspose3D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadParams(stateDict, c.Parameters())
}

// String returns a short description of the layer.
func (c *ConvTranspose3D[B]) String() string {
	return fmt.Sprintf("ConvTranspose3D(in=%d, out=%d, kernel=%d, stride=%d, padding=%d, bias=%v)",
		c.inChannels, c.outChannels, c.kernelSize, c.stride, c.padding, c.useBias)
}
