// Package optim implements optimization algorithms and learning-rate
// schedules for GAN training.
//
// The generator and discriminator each get their own optimizer over their
// own parameter list; a shared gradient map from autodiff.Backward may
// contain entries for both, and each optimizer only consumes the gradients
// of the parameters it owns.
package optim

import (
	"github.com/gancer-ml/gancer/internal/nn"
	"github.com/gancer-ml/gancer/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies gradient updates to all owned parameters. Parameters
	// absent from the gradient map are skipped.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears all parameter gradients before the next iteration.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32

	// SetLR updates the learning rate; schedulers call this each epoch.
	SetLR(lr float32)
}

// getGradient retrieves the gradient for a parameter, or nil when the
// parameter was not part of the recorded graph.
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	return grads[param.Tensor().Raw()]
}
