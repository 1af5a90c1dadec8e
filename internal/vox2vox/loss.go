// Package vox2vox implements the conditional volumetric GAN trainer: loss
// selection, the training-step orchestrator, error/visual reporting, and
// per-network checkpointing.
package vox2vox

import (
	"fmt"

	"github.com/gancer-ml/gancer/internal/autodiff"
	"github.com/gancer-ml/gancer/internal/tensor"
)

// GANCriterion scores a discriminator prediction against the real/fake
// label. The criterion is chosen once at construction and stored on the
// model as a function value.
type GANCriterion[B autodiff.BackwardCapable] func(pred *tensor.Tensor[float32, B], targetReal bool) *tensor.Tensor[float32, B]

// ReconCriterion measures voxel-wise fidelity between generated and target
// volumes.
type ReconCriterion[B autodiff.BackwardCapable] func(fake, real *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

// absBackend and logBackend mirror the nn capability interfaces for the
// loss-side elementwise ops.
type absBackend interface {
	Abs(*tensor.RawTensor) *tensor.RawTensor
}

type logBackend interface {
	Log(*tensor.RawTensor) *tensor.RawTensor
}

// NewGANCriterion selects the adversarial loss.
//
// Wasserstein: mean(pred) * (-1 for real, +1 for fake) over raw critic
// scores. Least-squares (useLsgan): mean squared error against a 1/0 label
// volume. Vanilla: binary cross-entropy over the discriminator's sigmoid
// probabilities.
func NewGANCriterion[B autodiff.BackwardCapable](wasserstein, useLsgan bool) GANCriterion[B] {
	switch {
	case wasserstein:
		return func(pred *tensor.Tensor[float32, B], targetReal bool) *tensor.Tensor[float32, B] {
			sign := float32(1)
			if targetReal {
				sign = -1
			}
			return pred.Mean().MulScalar(sign)
		}
	case useLsgan:
		return func(pred *tensor.Tensor[float32, B], targetReal bool) *tensor.Tensor[float32, B] {
			diff := pred
			if targetReal {
				diff = pred.AddScalar(-1)
			}
			return diff.Mul(diff).Mean()
		}
	default:
		return func(pred *tensor.Tensor[float32, B], targetReal bool) *tensor.Tensor[float32, B] {
			// pred holds probabilities (the vanilla discriminator ends in
			// a sigmoid). Squeeze into (eps, 1-eps) before the log.
			const eps = 1e-7
			p := pred.MulScalar(1 - 2*eps).AddScalar(eps)
			if !targetReal {
				// log(1-p)
				p = p.MulScalar(-1).AddScalar(1)
			}
			return logTensor(p).Mean().MulScalar(-1)
		}
	}
}

// NewReconCriterion selects the reconstruction loss: "l1" is the mean
// absolute difference, "l2" the mean squared difference. Any other
// identifier is a configuration error.
func NewReconCriterion[B autodiff.BackwardCapable](mode string) (ReconCriterion[B], error) {
	switch mode {
	case "l1":
		return func(fake, real *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
			return absTensor(fake.Sub(real)).Mean()
		}, nil
	case "l2":
		return func(fake, real *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
			diff := fake.Sub(real)
			return diff.Mul(diff).Mean()
		}, nil
	default:
		return nil, fmt.Errorf("recon loss %q is not a valid reconstruction loss", mode)
	}
}

func absTensor[B autodiff.BackwardCapable](t *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := t.Backend()
	ab, ok := any(backend).(absBackend)
	if !ok {
		panic("loss: backend must implement Abs (use autodiff.AutodiffBackend)")
	}
	return tensor.New[float32, B](ab.Abs(t.Raw()), backend)
}

func logTensor[B autodiff.BackwardCapable](t *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := t.Backend()
	lb, ok := any(backend).(logBackend)
	if !ok {
		panic("loss: backend must implement Log (use autodiff.AutodiffBackend)")
	}
	return tensor.New[float32, B](lb.Log(t.Raw()), backend)
}
