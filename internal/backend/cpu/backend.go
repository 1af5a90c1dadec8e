// Package cpu implements the CPU compute backend for the gancer stack.
//
// All operations are synchronous: each call completes fully before returning.
// The training orchestrator is single-threaded by design, so the backend does
// no internal locking.
package cpu

import (
	"fmt"

	"github.com/gancer-ml/gancer/internal/tensor"
)

// CPUBackend implements tensor.Backend with plain Go loops.
type CPUBackend struct {
	device tensor.Device
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{device: tensor.CPU}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b,
		func(x, y float32) float32 { return x + y },
		func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b,
		func(x, y float32) float32 { return x - y },
		func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b,
		func(x, y float32) float32 { return x * y },
		func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("div", a, b,
		func(x, y float32) float32 { return x / y },
		func(x, y float64) float64 { return x / y })
}

// binary implements a broadcasting element-wise binary operation.
func (cpu *CPUBackend) binary(
	name string,
	a, b *tensor.RawTensor,
	op32 func(x, y float32) float32,
	op64 func(x, y float64) float64,
) *tensor.RawTensor {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	result, err := tensor.NewRaw(outShape, a.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	switch a.DType() {
	case tensor.Float32:
		if !needsBroadcast {
			applySameShape(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), op32)
		} else {
			applyBroadcast(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape, op32)
		}
	case tensor.Float64:
		if !needsBroadcast {
			applySameShape(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), op64)
		} else {
			applyBroadcast(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape, op64)
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, a.DType()))
	}

	return result
}

func applySameShape[T float32 | float64](out, a, b []T, op func(x, y T) T) {
	for i := range out {
		out[i] = op(a[i], b[i])
	}
}

// applyBroadcast walks the output index space, mapping each position back to
// the (possibly size-1) source dimensions.
func applyBroadcast[T float32 | float64](
	out, a, b []T,
	aShape, bShape, outShape tensor.Shape,
	op func(x, y T) T,
) {
	outStrides := outShape.ComputeStrides()
	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)

	n := outShape.NumElements()
	for i := 0; i < n; i++ {
		aIdx, bIdx := 0, 0
		rem := i
		for d := 0; d < len(outShape); d++ {
			pos := rem / outStrides[d]
			rem %= outStrides[d]
			aIdx += pos * aStrides[d]
			bIdx += pos * bStrides[d]
		}
		out[i] = op(a[aIdx], b[bIdx])
	}
}

// broadcastStrides returns strides for src aligned to the output rank, with
// zero stride on broadcast (size-1 or missing) dimensions.
func broadcastStrides(src, out tensor.Shape) []int {
	srcStrides := src.ComputeStrides()
	strides := make([]int, len(out))
	offset := len(out) - len(src)
	for d := range out {
		s := d - offset
		if s < 0 || src[s] == 1 {
			strides[d] = 0
		} else {
			strides[d] = srcStrides[s]
		}
	}
	return strides
}
