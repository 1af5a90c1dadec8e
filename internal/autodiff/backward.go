package autodiff

import (
	"fmt"

	"github.com/gancer-ml/gancer/internal/tensor"
)

// BackwardCapable is the backend contract the gradient helpers need: a
// compute backend that carries a tape. AutodiffBackend satisfies it.
type BackwardCapable interface {
	tensor.Backend
	Tape() *GradientTape
}

// Backward runs reverse-mode differentiation from t, seeding the output
// gradient with ones. t is normally a scalar loss, but any shape works;
// non-scalar seeds compute the gradient of the element sum.
//
// The returned map is keyed by RawTensor identity, so callers look up
// gradients with the same RawTensor pointers they built the graph from.
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	seed, err := tensor.NewRaw(t.Shape(), t.DType(), backend.Device())
	if err != nil {
		panic(fmt.Sprintf("backward: %v", err))
	}
	switch t.DType() {
	case tensor.Float32:
		data := seed.AsFloat32()
		for i := range data {
			data[i] = 1
		}
	case tensor.Float64:
		data := seed.AsFloat64()
		for i := range data {
			data[i] = 1
		}
	default:
		panic(fmt.Sprintf("backward: unsupported dtype %s", t.DType()))
	}

	return backend.Tape().Backward(t.Raw(), seed, backend)
}
