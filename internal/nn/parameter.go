package nn

import (
	"fmt"

	"github.com/gancer-ml/gancer/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// Parameters are tensors that receive gradients during the backward pass.
// They typically represent convolution kernels and biases.
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[float32, B]
	grad   *tensor.Tensor[float32, B]
}

// NewParameter creates a new trainable parameter from an initialized tensor.
// The gradient slot stays nil until the first backward pass.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Grad returns the gradient tensor, or nil before the first backward pass.
func (p *Parameter[B]) Grad() *tensor.Tensor[float32, B] {
	return p.grad
}

// SetGrad sets the gradient tensor. Called after each backward pass.
func (p *Parameter[B]) SetGrad(grad *tensor.Tensor[float32, B]) {
	p.grad = grad
}

// ZeroGrad clears the gradient so iterations do not accumulate stale grads.
func (p *Parameter[B]) ZeroGrad() {
	p.grad = nil
}

// SetData replaces the parameter values in place, keeping the same RawTensor
// identity so recorded graphs and optimizer state stay attached.
func (p *Parameter[B]) SetData(raw *tensor.RawTensor) error {
	dst := p.tensor.Raw()
	if !dst.Shape().Equal(raw.Shape()) {
		return fmt.Errorf("parameter %q: shape mismatch, have %v want %v", p.name, raw.Shape(), dst.Shape())
	}
	if dst.DType() != raw.DType() {
		return fmt.Errorf("parameter %q: dtype mismatch, have %s want %s", p.name, raw.DType(), dst.DType())
	}
	copy(dst.Data(), raw.Data())
	return nil
}
