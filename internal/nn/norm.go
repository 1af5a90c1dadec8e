package nn

import (
	"fmt"

	"github.com/gancer-ml/gancer/internal/tensor"
)

// NormalizeBackend is an interface for backends that support feature
// normalization over [N, C, D, H, W] tensors. overBatch selects batch-norm
// statistics (per channel across the batch) instead of instance-norm
// statistics (per sample and channel).
type NormalizeBackend interface {
	Normalize(x *tensor.RawTensor, overBatch bool, eps float32) *tensor.RawTensor
}

// Norm layer identifiers accepted by DefineG/DefineD.
const (
	NormInstance = "instance"
	NormBatch    = "batch"
	NormNone     = "none"
)

const normEps = 1e-5

// InstanceNorm3D normalizes each (sample, channel) volume to zero mean and
// unit variance, then applies a learned per-channel scale and shift.
//
// Statistics always come from the current input, matching the usual GAN
// configuration where instance norm tracks no running estimates.
type InstanceNorm3D[B tensor.Backend] struct {
	numFeatures int
	scale       *Parameter[B]
	shift       *Parameter[B]
}

// NewInstanceNorm3D creates an instance norm over numFeatures channels.
// Scale starts at one and shift at zero.
func NewInstanceNorm3D[B tensor.Backend](numFeatures int, backend B) *InstanceNorm3D[B] {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("instancenorm3d: invalid feature count %d", numFeatures))
	}
	return &InstanceNorm3D[B]{
		numFeatures: numFeatures,
		scale:       NewParameter("scale", Ones(tensor.Shape{numFeatures}, backend)),
		shift:       NewParameter("shift", Zeros(tensor.Shape{numFeatures}, backend)),
	}
}

// Forward normalizes per (n, c) block and applies the affine transform.
func (n *InstanceNorm3D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return normForward(input, n.numFeatures, false, n.scale, n.shift)
}

// Parameters returns the affine scale and shift.
func (n *InstanceNorm3D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{n.scale, n.shift}
}

// StateDict returns the affine parameters keyed by name.
func (n *InstanceNorm3D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"scale": n.scale.Tensor().Raw(),
		"shift": n.shift.Tensor().Raw(),
	}
}

// LoadStateDict loads the affine parameters.
func (n *InstanceNorm3D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadParams(stateDict, n.Parameters())
}

// BatchNorm3D normalizes each channel across the whole batch, then applies
// a learned per-channel scale and shift.
//
// Statistics come from the current batch in both training and evaluation;
// running estimates are not tracked. Volumetric batches are small enough
// that batch statistics remain usable at test time.
type BatchNorm3D[B tensor.Backend] struct {
	numFeatures int
	scale       *Parameter[B]
	shift       *Parameter[B]
}

// NewBatchNorm3D creates a batch norm over numFeatures channels.
func NewBatchNorm3D[B tensor.Backend](numFeatures int, backend B) *BatchNorm3D[B] {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("batchnorm3d: invalid feature count %d", numFeatures))
	}
	return &BatchNorm3D[B]{
		numFeatures: numFeatures,
		scale:       NewParameter("scale", Ones(tensor.Shape{numFeatures}, backend)),
		shift:       NewParameter("shift", Zeros(tensor.Shape{numFeatures}, backend)),
	}
}

// Forward normalizes per channel over the batch and applies the affine
// transform.
func (n *BatchNorm3D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return normForward(input, n.numFeatures, true, n.scale, n.shift)
}

// Parameters returns the affine scale and shift.
func (n *BatchNorm3D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{n.scale, n.shift}
}

// StateDict returns the affine parameters keyed by name.
func (n *BatchNorm3D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"scale": n.scale.Tensor().Raw(),
		"shift": n.shift.Tensor().Raw(),
	}
}

// LoadStateDict loads the affine parameters.
func (n *BatchNorm3D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadParams(stateDict, n.Parameters())
}

// normForward runs the backend normalization, then the broadcast affine
// transform. The scale/shift gradients flow through the recorded Mul/Add.
func normForward[B tensor.Backend](
	input *tensor.Tensor[float32, B],
	numFeatures int,
	overBatch bool,
	scale, shift *Parameter[B],
) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 5 {
		panic(fmt.Sprintf("norm3d: expected 5D input [N,C,D,H,W], got %dD", len(shape)))
	}
	if shape[1] != numFeatures {
		panic(fmt.Sprintf("norm3d: input channels %d != expected %d", shape[1], numFeatures))
	}

	backend := input.Backend()
	nb, ok := any(backend).(NormalizeBackend)
	if !ok {
		panic("norm3d: backend must implement Normalize (use autodiff.AutodiffBackend)")
	}

	normalized := tensor.New[float32, B](nb.Normalize(input.Raw(), overBatch, normEps), backend)
	scaleB := scale.Tensor().Reshape(1, numFeatures, 1, 1, 1)
	shiftB := shift.Tensor().Reshape(1, numFeatures, 1, 1, 1)
	return normalized.Mul(scaleB).Add(shiftB)
}

// Identity passes input through unchanged. It stands in for the norm layer
// when normalization is disabled.
type Identity[B tensor.Backend] struct{}

// NewIdentity creates an identity module.
func NewIdentity[B tensor.Backend]() *Identity[B] {
	return &Identity[B]{}
}

// Forward returns the input unchanged.
func (id *Identity[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input
}

// Parameters returns nil; identity has no trainable parameters.
func (id *Identity[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns nil; identity has no state.
func (id *Identity[B]) StateDict() map[string]*tensor.RawTensor { return nil }

// LoadStateDict is a no-op for identity.
func (id *Identity[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }

// newNormLayer builds the configured norm layer for a channel count.
func newNormLayer[B tensor.Backend](norm string, numFeatures int, backend B) Module[B] {
	switch norm {
	case NormInstance:
		return NewInstanceNorm3D(numFeatures, backend)
	case NormBatch:
		return NewBatchNorm3D(numFeatures, backend)
	case NormNone:
		return NewIdentity[B]()
	default:
		panic(fmt.Sprintf("unknown norm layer %q", norm))
	}
}
