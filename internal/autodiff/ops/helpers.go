package ops

import (
	"fmt"

	"github.com/gancer-ml/gancer/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to match the target shape.
// Needed when broadcasting was used in the forward pass: the broadcast
// dimensions must be summed out so the gradient matches the original operand.
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	gradShape := grad.Shape()

	if gradShape.Equal(targetShape) {
		// Clone to avoid aliasing when the same gradient feeds two inputs.
		return grad.Clone()
	}

	// Sum out the leading dimensions the target doesn't have, then drop
	// them. sumAlongDimension keeps rank, so the count is fixed up front.
	result := grad
	if extra := len(gradShape) - len(targetShape); extra > 0 {
		for i := 0; i < extra; i++ {
			result = sumAlongDimension(result, i)
		}
		result = backend.Reshape(result, result.Shape()[extra:])
	}

	// Sum dimensions where the target is 1.
	resShape := result.Shape()
	for d := 0; d < len(targetShape); d++ {
		if targetShape[d] == 1 && resShape[d] > 1 {
			result = sumAlongDimension(result, d)
			resShape = result.Shape()
		}
	}

	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}

	return result
}

// sumAlongDimension sums a tensor along one dimension, keeping it with size 1.
func sumAlongDimension(t *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := t.Shape()
	outShape := shape.Clone()
	outShape[dim] = 1

	result, err := tensor.NewRaw(outShape, t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("sum_dim: %v", err))
	}

	outer := 1
	for d := 0; d < dim; d++ {
		outer *= shape[d]
	}
	dimSize := shape[dim]
	inner := 1
	for d := dim + 1; d < len(shape); d++ {
		inner *= shape[d]
	}

	switch t.DType() {
	case tensor.Float32:
		in, out := t.AsFloat32(), result.AsFloat32()
		for o := 0; o < outer; o++ {
			for k := 0; k < dimSize; k++ {
				base := (o*dimSize + k) * inner
				for i := 0; i < inner; i++ {
					out[o*inner+i] += in[base+i]
				}
			}
		}
	case tensor.Float64:
		in, out := t.AsFloat64(), result.AsFloat64()
		for o := 0; o < outer; o++ {
			for k := 0; k < dimSize; k++ {
				base := (o*dimSize + k) * inner
				for i := 0; i < inner; i++ {
					out[o*inner+i] += in[base+i]
				}
			}
		}
	default:
		panic(fmt.Sprintf("sum_dim: unsupported dtype %s", t.DType()))
	}

	return result
}

// zerosLike allocates a zero gradient with the same shape/dtype as t.
func zerosLike(t *tensor.RawTensor) *tensor.RawTensor {
	out, err := tensor.NewRaw(t.Shape(), t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("zeros_like: %v", err))
	}
	return out
}

// scalarValue extracts the single float from a shape-{1} gradient.
func scalarValue(t *tensor.RawTensor) float64 {
	switch t.DType() {
	case tensor.Float32:
		return float64(t.AsFloat32()[0])
	case tensor.Float64:
		return t.AsFloat64()[0]
	default:
		panic(fmt.Sprintf("scalar gradient has dtype %s", t.DType()))
	}
}
