package nn

import (
	"github.com/gancer-ml/gancer/internal/tensor"
)

// ReLUBackend is an interface for backends that support ReLU activation.
type ReLUBackend interface {
	ReLU(*tensor.RawTensor) *tensor.RawTensor
}

// LeakyReLUBackend is an interface for backends that support LeakyReLU.
type LeakyReLUBackend interface {
	LeakyReLU(*tensor.RawTensor, float32) *tensor.RawTensor
}

// SigmoidBackend is an interface for backends that support Sigmoid activation.
type SigmoidBackend interface {
	Sigmoid(*tensor.RawTensor) *tensor.RawTensor
}

// TanhBackend is an interface for backends that support Tanh activation.
type TanhBackend interface {
	Tanh(*tensor.RawTensor) *tensor.RawTensor
}

// ReLU applies the element-wise function f(x) = max(0, x).
type ReLU[B tensor.Backend] struct{}

// NewReLU creates a new ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies ReLU activation.
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	if rb, ok := any(backend).(ReLUBackend); ok {
		return tensor.New[float32, B](rb.ReLU(input.Raw()), backend)
	}
	panic("ReLU: backend must implement ReLU (use autodiff.AutodiffBackend)")
}

// Parameters returns nil; ReLU has no trainable parameters.
func (r *ReLU[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns nil; ReLU has no state.
func (r *ReLU[B]) StateDict() map[string]*tensor.RawTensor { return nil }

// LoadStateDict is a no-op for ReLU.
func (r *ReLU[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }

// LeakyReLU applies f(x) = x for x > 0 and slope*x otherwise. The GAN
// discriminators use slope 0.2.
type LeakyReLU[B tensor.Backend] struct {
	slope float32
}

// NewLeakyReLU creates a LeakyReLU module with the given negative slope.
func NewLeakyReLU[B tensor.Backend](slope float32) *LeakyReLU[B] {
	return &LeakyReLU[B]{slope: slope}
}

// Forward applies LeakyReLU activation.
func (l *LeakyReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	if lb, ok := any(backend).(LeakyReLUBackend); ok {
		return tensor.New[float32, B](lb.LeakyReLU(input.Raw(), l.slope), backend)
	}
	panic("LeakyReLU: backend must implement LeakyReLU (use autodiff.AutodiffBackend)")
}

// Parameters returns nil; LeakyReLU has no trainable parameters.
func (l *LeakyReLU[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns nil; LeakyReLU has no state.
func (l *LeakyReLU[B]) StateDict() map[string]*tensor.RawTensor { return nil }

// LoadStateDict is a no-op for LeakyReLU.
func (l *LeakyReLU[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }

// Sigmoid applies σ(x) = 1 / (1 + exp(-x)), squashing to (0, 1).
// The vanilla GAN discriminator head uses it.
type Sigmoid[B tensor.Backend] struct{}

// NewSigmoid creates a new Sigmoid activation module.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] {
	return &Sigmoid[B]{}
}

// Forward applies Sigmoid activation.
func (s *Sigmoid[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	if sb, ok := any(backend).(SigmoidBackend); ok {
		return tensor.New[float32, B](sb.Sigmoid(input.Raw()), backend)
	}
	panic("Sigmoid: backend must implement Sigmoid (use autodiff.AutodiffBackend)")
}

// Parameters returns nil; Sigmoid has no trainable parameters.
func (s *Sigmoid[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns nil; Sigmoid has no state.
func (s *Sigmoid[B]) StateDict() map[string]*tensor.RawTensor { return nil }

// LoadStateDict is a no-op for Sigmoid.
func (s *Sigmoid[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }

// Tanh squashes values to (-1, 1). The generator output head uses it so
// produced volumes live in the normalized intensity range.
type Tanh[B tensor.Backend] struct{}

// NewTanh creates a new Tanh activation module.
func NewTanh[B tensor.Backend]() *Tanh[B] {
	return &Tanh[B]{}
}

// Forward applies Tanh activation.
func (t *Tanh[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	if tb, ok := any(backend).(TanhBackend); ok {
		return tensor.New[float32, B](tb.Tanh(input.Raw()), backend)
	}
	panic("Tanh: backend must implement Tanh (use autodiff.AutodiffBackend)")
}

// Parameters returns nil; Tanh has no trainable parameters.
func (t *Tanh[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns nil; Tanh has no state.
func (t *Tanh[B]) StateDict() map[string]*tensor.RawTensor { return nil }

// LoadStateDict is a no-op for Tanh.
func (t *Tanh[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }
