package nn

import (
	"fmt"
	"strings"

	"github.com/gancer-ml/gancer/internal/tensor"
)

// UNet3D is a volumetric U-Net generator.
//
// The encoder halves the volume at each level with stride-2 kernel-4
// convolutions; the decoder doubles it back with transposed convolutions,
// concatenating the matching encoder activation on the channel axis before
// each decoder level. Channel width doubles per level from ngf, capped at
// 8*ngf. The output head is Tanh, so generated volumes live in [-1, 1].
//
// numDowns must match the input volume: a [2^numDowns]^3 volume reaches a
// 1^3 bottleneck.
type UNet3D[B tensor.Backend] struct {
	numDowns int
	downs    []*Sequential[B] // downs[i] encodes level i+1
	ups      []*Sequential[B] // ups[i] decodes level i+1
}

// NewUNet3D builds a U-Net generator.
//
// inputNC/outputNC are the input and output channel counts, ngf the width
// of the first level. norm selects instance or batch normalization;
// useDropout enables 0.5 dropout on the innermost decoder levels.
func NewUNet3D[B tensor.Backend](
	inputNC, outputNC, numDowns, ngf int,
	norm string,
	useDropout bool,
	backend B,
) *UNet3D[B] {
	if numDowns < 2 {
		panic(fmt.Sprintf("unet3d: need at least 2 downsampling levels, got %d", numDowns))
	}

	// Batch norm's shift parameter subsumes a conv bias; any other norm
	// configuration keeps the bias on the conv layer.
	useBias := norm != NormBatch

	width := func(level int) int {
		w := ngf
		for i := 1; i < level; i++ {
			w *= 2
			if w > ngf*8 {
				return ngf * 8
			}
		}
		return w
	}

	g := &UNet3D[B]{numDowns: numDowns}

	for level := 1; level <= numDowns; level++ {
		in := width(level - 1)
		if level == 1 {
			in = inputNC
		}
		out := width(level)

		down := NewSequential[B]()
		if level > 1 {
			down.Add(NewLeakyReLU[B](0.2))
		}
		down.Add(NewConv3D(in, out, 4, 2, 1, useBias, backend))
		if level > 1 && level < numDowns {
			down.Add(newNormLayer(norm, out, backend))
		}
		g.downs = append(g.downs, down)
	}

	for level := 1; level <= numDowns; level++ {
		in := 2 * width(level) // decoder input is [skip, upsampled]
		if level == numDowns {
			in = width(level) // bottleneck has no skip
		}

		up := NewSequential[B](NewReLU[B]())
		if level == 1 {
			up.Add(NewConvTranspose3D(in, outputNC, 4, 2, 1, true, backend))
			up.Add(NewTanh[B]())
		} else {
			up.Add(NewConvTranspose3D(in, width(level-1), 4, 2, 1, useBias, backend))
			up.Add(newNormLayer(norm, width(level-1), backend))
			if useDropout && level >= numDowns-2 && level < numDowns {
				up.Add(NewDropout[B](0.5))
			}
		}
		g.ups = append(g.ups, up)
	}

	return g
}

// Forward runs the encoder, then the decoder with skip connections.
func (g *UNet3D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	skips := make([]*tensor.Tensor[float32, B], g.numDowns)
	x := input
	for i, down := range g.downs {
		x = down.Forward(x)
		skips[i] = x
	}

	for i := g.numDowns - 1; i >= 0; i-- {
		x = g.ups[i].Forward(x)
		if i > 0 {
			x = tensor.Cat([]*tensor.Tensor[float32, B]{skips[i-1], x}, 1)
		}
	}
	return x
}

// Parameters returns all encoder and decoder parameters.
func (g *UNet3D[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, down := range g.downs {
		params = append(params, down.Parameters()...)
	}
	for _, up := range g.ups {
		params = append(params, up.Parameters()...)
	}
	return params
}

// SetTraining propagates the training flag to the dropout layers.
func (g *UNet3D[B]) SetTraining(training bool) {
	for _, down := range g.downs {
		down.SetTraining(training)
	}
	for _, up := range g.ups {
		up.SetTraining(training)
	}
}

// StateDict returns parameters prefixed by their level ("down0.", "up3.").
func (g *UNet3D[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for i, down := range g.downs {
		for name, raw := range down.StateDict() {
			stateDict[fmt.Sprintf("down%d.%s", i, name)] = raw
		}
	}
	for i, up := range g.ups {
		for name, raw := range up.StateDict() {
			stateDict[fmt.Sprintf("up%d.%s", i, name)] = raw
		}
	}
	return stateDict
}

// LoadStateDict loads parameters keyed the way StateDict writes them.
func (g *UNet3D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	load := func(prefix string, m Module[B]) error {
		sub := make(map[string]*tensor.RawTensor)
		for key, raw := range stateDict {
			if strings.HasPrefix(key, prefix) {
				sub[strings.TrimPrefix(key, prefix)] = raw
			}
		}
		return m.LoadStateDict(sub)
	}
	for i, down := range g.downs {
		if err := load(fmt.Sprintf("down%d.", i), down); err != nil {
			return fmt.Errorf("unet3d down %d: %w", i, err)
		}
	}
	for i, up := range g.ups {
		if err := load(fmt.Sprintf("up%d.", i), up); err != nil {
			return fmt.Errorf("unet3d up %d: %w", i, err)
		}
	}
	return nil
}

// PatchGAN3D is a volumetric PatchGAN discriminator.
//
// It classifies overlapping volume patches rather than whole volumes: the
// output is a score map whose receptive field grows with nLayers. Strided
// layers use kernel 4; the stride-1 tail uses kernel 3 with padding 1 so
// small volumes survive to the head.
type PatchGAN3D[B tensor.Backend] struct {
	model *Sequential[B]
}

// NewPatchGAN3D builds a PatchGAN discriminator with nLayers strided
// convolutions. useSigmoid appends a sigmoid head for the vanilla GAN
// objective; least-squares and Wasserstein objectives read the raw scores.
func NewPatchGAN3D[B tensor.Backend](
	inputNC, ndf, nLayers int,
	norm string,
	useSigmoid bool,
	backend B,
) *PatchGAN3D[B] {
	if nLayers < 1 {
		panic(fmt.Sprintf("patchgan3d: need at least 1 layer, got %d", nLayers))
	}

	useBias := norm != NormBatch
	model := NewSequential[B](
		NewConv3D(inputNC, ndf, 4, 2, 1, true, backend),
		NewLeakyReLU[B](0.2),
	)

	mult := 1
	for n := 1; n < nLayers; n++ {
		prev := mult
		mult = min(1<<n, 8)
		model.Add(NewConv3D(ndf*prev, ndf*mult, 4, 2, 1, useBias, backend))
		model.Add(newNormLayer(norm, ndf*mult, backend))
		model.Add(NewLeakyReLU[B](0.2))
	}

	prev := mult
	mult = min(1<<nLayers, 8)
	model.Add(NewConv3D(ndf*prev, ndf*mult, 3, 1, 1, useBias, backend))
	model.Add(newNormLayer(norm, ndf*mult, backend))
	model.Add(NewLeakyReLU[B](0.2))

	model.Add(NewConv3D(ndf*mult, 1, 3, 1, 1, true, backend))
	if useSigmoid {
		model.Add(NewSigmoid[B]())
	}

	return &PatchGAN3D[B]{model: model}
}

// Forward returns the patch score map [N, 1, d, h, w].
func (d *PatchGAN3D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return d.model.Forward(input)
}

// Parameters returns all discriminator parameters.
func (d *PatchGAN3D[B]) Parameters() []*Parameter[B] {
	return d.model.Parameters()
}

// StateDict returns the underlying sequential state.
func (d *PatchGAN3D[B]) StateDict() map[string]*tensor.RawTensor {
	return d.model.StateDict()
}

// LoadStateDict loads the underlying sequential state.
func (d *PatchGAN3D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return d.model.LoadStateDict(stateDict)
}

// unetDepths maps generator architecture identifiers to downsampling depth.
var unetDepths = map[string]int{
	"unet_4":   2,
	"unet_8":   3,
	"unet_16":  4,
	"unet_32":  5,
	"unet_64":  6,
	"unet_128": 7,
}

// DefineG constructs and initializes a generator by architecture identifier
// ("unet_32", "unet_64", ...; the suffix names the cube edge the network
// bottlenecks to 1^3).
func DefineG[B tensor.Backend](
	inputNC, outputNC, ngf int,
	whichModelNetG, norm string,
	useDropout bool,
	initType string,
	seed uint64,
	backend B,
) (Module[B], error) {
	numDowns, ok := unetDepths[whichModelNetG]
	if !ok {
		return nil, fmt.Errorf("generator model %q not recognized", whichModelNetG)
	}
	g := NewUNet3D(inputNC, outputNC, numDowns, ngf, norm, useDropout, backend)
	if err := InitWeights(g, initType, 0.02, seed); err != nil {
		return nil, err
	}
	return g, nil
}

// DefineD constructs and initializes a discriminator by architecture
// identifier: "basic" is a 3-layer PatchGAN, "n_layers" uses nLayers.
func DefineD[B tensor.Backend](
	inputNC, ndf int,
	whichModelNetD string,
	nLayers int,
	norm string,
	useSigmoid bool,
	initType string,
	seed uint64,
	backend B,
) (Module[B], error) {
	switch whichModelNetD {
	case "basic":
		nLayers = 3
	case "n_layers":
	default:
		return nil, fmt.Errorf("discriminator model %q not recognized", whichModelNetD)
	}
	d := NewPatchGAN3D(inputNC, ndf, nLayers, norm, useSigmoid, backend)
	if err := InitWeights(d, initType, 0.02, seed); err != nil {
		return nil, err
	}
	return d, nil
}
