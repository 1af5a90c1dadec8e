package cpu

import (
	"fmt"

	"github.com/gancer-ml/gancer/internal/tensor"
)

// Sum reduces the tensor to its scalar sum (shape {1}).
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.reduce("sum", x, false)
}

// Mean reduces the tensor to its scalar mean (shape {1}).
func (cpu *CPUBackend) Mean(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.reduce("mean", x, true)
}

func (cpu *CPUBackend) reduce(name string, x *tensor.RawTensor, mean bool) *tensor.RawTensor {
	result, err := tensor.NewRaw(tensor.Shape{1}, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	switch x.DType() {
	case tensor.Float32:
		// Accumulate in float64: voxel volumes have enough elements for
		// float32 accumulation error to show up in loss reporting.
		var sum float64
		for _, v := range x.AsFloat32() {
			sum += float64(v)
		}
		if mean {
			sum /= float64(x.NumElements())
		}
		result.AsFloat32()[0] = float32(sum)
	case tensor.Float64:
		var sum float64
		for _, v := range x.AsFloat64() {
			sum += v
		}
		if mean {
			sum /= float64(x.NumElements())
		}
		result.AsFloat64()[0] = sum
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}

	return result
}
