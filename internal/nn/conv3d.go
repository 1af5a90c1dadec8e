package nn

import (
	"fmt"

	"github.com/gancer-ml/gancer/internal/tensor"
)

// Conv3D is a volumetric convolutional layer.
//
// Input shape:  [batch, in_channels, depth, height, width]
// Weight shape: [out_channels, in_channels, kd, kh, kw]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, od, oh, ow]
//
// where each spatial output extent is (in + 2*padding - kernel)/stride + 1.
type Conv3D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int
	useBias     bool

	weight *Parameter[B]
	bias   *Parameter[B] // nil when useBias is false

	backend B
}

// NewConv3D creates a volumetric convolution with a cubic kernel.
//
// Weights start from a normal draw with std 0.02; DefineG/DefineD
// re-initialize them according to the configured scheme. Bias starts at zero.
func NewConv3D[B tensor.Backend](
	inChannels, outChannels, kernelSize, stride, padding int,
	useBias bool,
	backend B,
) *Conv3D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv3d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 {
		panic(fmt.Sprintf("conv3d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv3d: invalid stride %d", stride))
	}
	if padding < 0 {
		panic(fmt.Sprintf("conv3d: invalid padding %d", padding))
	}

	weightShape := tensor.Shape{outChannels, inChannels, kernelSize, kernelSize, kernelSize}
	weight := tensor.Randn[float32](weightShape, backend).MulScalar(0.02)
	weightParam := NewParameter("weight", weight)

	var biasParam *Parameter[B]
	if useBias {
		biasParam = NewParameter("bias", Zeros(tensor.Shape{outChannels}, backend))
	}

	return &Conv3D[B]{
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

// Forward performs the convolution, adding bias by broadcast when present.
func (c *Conv3D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 5 {
		panic(fmt.Sprintf("conv3d: expected 5D input [N,C,D,H,W], got %dD", len(shape)))
	}
	if shape[1] != c.inChannels {
		panic(fmt.Sprintf("conv3d: input channels %d != expected %d", shape[1], c.inChannels))
	}

	outputRaw := c.backend.Conv3D(input.Raw(), c.weight.Tensor().Raw(), c.stride, c.padding)
	output := tensor.New[float32, B](outputRaw, c.backend)

	if c.useBias {
		biasReshaped := c.bias.Tensor().Reshape(1, c.outChannels, 1, 1, 1)
		output = output.Add(biasReshaped)
	}

	return output
}

// Parameters returns the kernel and, when present, the bias.
func (c *Conv3D[B]) Parameters() []*Parameter[B] {
	if c.useBias {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// StateDict returns the kernel and bias keyed by parameter name.
func (c *Conv3D[B]) StateDict() map[string]*tensor.RawTensor {
	sd := map[string]*tensor.RawTensor{
		"weight": c.weight.Tensor().Raw(),
	}
	if c.useBias {
		sd["bias"] = c.bias.Tensor().Raw()
	}
	return sd
}

// LoadStateDict loads the kernel and bias from a state dictionary.
func (c *Conv3D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadParams(stateDict, c.Parameters())
}

// String returns a short description of the layer.
func (c *Conv3D[B]) String() string {
	return fmt.Sprintf("Conv3D(in=%d, out=%d, kernel=%d, stride=%d, padding=%d, bias=%v)",
		c.inChannels, c.outChannels, c.kernelSize, c.stride, c.padding, c.useBias)
}

// loadParams copies state-dict entries into parameters by name, requiring
// every parameter to be present.
func loadParams[B tensor.Backend](stateDict map[string]*tensor.RawTensor, params []*Parameter[B]) error {
	for _, p := range params {
		raw, ok := stateDict[p.Name()]
		if !ok {
			return fmt.Errorf("missing parameter %q in state dict", p.Name())
		}
		if err := p.SetData(raw); err != nil {
			return err
		}
	}
	return nil
}
