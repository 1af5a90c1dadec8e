package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/gancer-ml/gancer/internal/tensor"
)

// Dropout zeroes each element with probability p during training and scales
// survivors by 1/(1-p) (inverted dropout), so evaluation is the identity.
//
// The mask multiplication is recorded on the tape like any other Mul, which
// gives the correct masked gradient without a dedicated operation.
type Dropout[B tensor.Backend] struct {
	p        float32
	training bool
	rng      *rand.Rand
}

// NewDropout creates a dropout module with drop probability p in [0, 1).
// The module starts in training mode.
func NewDropout[B tensor.Backend](p float32) *Dropout[B] {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("dropout: probability %v outside [0, 1)", p))
	}
	return &Dropout[B]{
		p:        p,
		training: true,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// SetTraining switches between training (masking) and evaluation (identity).
func (d *Dropout[B]) SetTraining(training bool) {
	d.training = training
}

// Forward applies the dropout mask in training mode.
func (d *Dropout[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !d.training || d.p == 0 {
		return input
	}

	backend := input.Backend()
	maskRaw, err := tensor.NewRaw(input.Shape(), tensor.Float32, backend.Device())
	if err != nil {
		panic(fmt.Sprintf("dropout: %v", err))
	}
	data := maskRaw.AsFloat32()
	keep := 1 / (1 - d.p)
	for i := range data {
		if d.rng.Float32() >= d.p {
			data[i] = keep
		}
	}

	mask := tensor.New[float32, B](maskRaw, backend)
	return input.Mul(mask)
}

// Parameters returns nil; dropout has no trainable parameters.
func (d *Dropout[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns nil; dropout has no state.
func (d *Dropout[B]) StateDict() map[string]*tensor.RawTensor { return nil }

// LoadStateDict is a no-op for dropout.
func (d *Dropout[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }
