package optim

import (
	"github.com/gancer-ml/gancer/internal/nn"
	"github.com/gancer-ml/gancer/internal/tensor"
)

// ClampParams clips every parameter value into [lower, upper] in place.
//
// Wasserstein GAN training clamps discriminator weights after each update
// to enforce the Lipschitz constraint (the ±0.01 box from the WGAN paper).
func ClampParams[B tensor.Backend](params []*nn.Parameter[B], lower, upper float32) {
	for _, param := range params {
		data := param.Tensor().Raw().AsFloat32()
		for i, v := range data {
			if v < lower {
				data[i] = lower
			} else if v > upper {
				data[i] = upper
			}
		}
	}
}
