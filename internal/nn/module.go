// Package nn implements neural network modules for volumetric GAN training.
//
// The building blocks here mirror the PyTorch module hierarchy adapted for
// Go generics:
//   - Module interface: forward pass, parameters, and state-dict round trips
//   - Parameter: trainable tensors with gradient slots
//   - Conv3D / ConvTranspose3D: volumetric convolution layers
//   - InstanceNorm3D / BatchNorm3D, activations, Dropout
//   - UNet3D generator and PatchGAN3D discriminator with DefineG/DefineD
//     factories
//
// Type parameter B must satisfy the tensor.Backend interface; training
// requires the autodiff decorator, which the capability interfaces
// (SigmoidBackend, NormalizeBackend, ...) detect at runtime.
package nn

import (
	"github.com/gancer-ml/gancer/internal/tensor"
)

// Module is the base interface for all neural network components.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	// Input is [N, C, D, H, W] for the volumetric layers.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module,
	// including nested module parameters. Modules without trainable
	// parameters return nil.
	Parameters() []*Parameter[B]

	// StateDict returns a map of parameter names to raw tensors for
	// serialization. Container modules prefix nested names.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict loads parameters from a state dictionary produced
	// by StateDict on a module with the same architecture.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// trainable is implemented by modules whose forward pass differs between
// training and evaluation (Dropout). Containers propagate the flag.
type trainable interface {
	SetTraining(training bool)
}

// SetTraining switches a module tree between training and evaluation mode.
// Modules that do not distinguish the two are left untouched.
func SetTraining[B tensor.Backend](m Module[B], training bool) {
	if t, ok := m.(trainable); ok {
		t.SetTraining(training)
	}
}
