// Package autodiff implements reverse-mode automatic differentiation as a
// decorator over any tensor.Backend.
//
// AutodiffBackend wraps a compute backend and records every differentiable
// operation on a GradientTape during the forward pass. Backward walks the
// tape in reverse, producing a gradient map keyed by RawTensor identity that
// the optimizers consume.
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	// ... forward pass ...
//	grads := autodiff.Backward(loss, backend)
package autodiff

import (
	"fmt"
	"math"

	"github.com/gancer-ml/gancer/internal/autodiff/ops"
	"github.com/gancer-ml/gancer/internal/tensor"
)

// AutodiffBackend wraps a Backend and adds gradient tracking.
// It implements tensor.Backend, so tensors built over it use the wrapped
// backend for compute while the tape sees every operation.
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New creates an AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for recording control and backward passes.
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	// Inplace modification would corrupt tensors still referenced by
	// recorded operations; force fresh allocations while recording.
	defer x.ForceNonUnique()()
	defer y.ForceNonUnique()()

	result := b.inner.Add(x, y)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewAddOp(x, y, result))
	}
	return result
}

// Sub performs element-wise subtraction and records the operation.
func (b *AutodiffBackend[B]) Sub(x, y *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	defer y.ForceNonUnique()()

	result := b.inner.Sub(x, y)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSubOp(x, y, result))
	}
	return result
}

// Mul performs element-wise multiplication and records the operation.
func (b *AutodiffBackend[B]) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	defer y.ForceNonUnique()()

	result := b.inner.Mul(x, y)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMulOp(x, y, result))
	}
	return result
}

// Div performs element-wise division and records the operation.
func (b *AutodiffBackend[B]) Div(x, y *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	defer y.ForceNonUnique()()

	result := b.inner.Div(x, y)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewDivOp(x, y, result))
	}
	return result
}

// MulScalar multiplies by a scalar and records the operation.
func (b *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.MulScalar(x, scalar)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMulScalarOp(x, result, scalarFloat32(scalar)))
	}
	return result
}

// AddScalar adds a scalar and records the operation.
func (b *AutodiffBackend[B]) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.AddScalar(x, scalar)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewAddScalarOp(x, result))
	}
	return result
}

// Conv3D performs volumetric convolution and records the operation.
func (b *AutodiffBackend[B]) Conv3D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	defer input.ForceNonUnique()()
	defer kernel.ForceNonUnique()()

	result := b.inner.Conv3D(input, kernel, stride, padding)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewConv3DOp(input, kernel, result, stride, padding))
	}
	return result
}

// Conv3DInputBackward delegates to the wrapped backend (gradient kernels are
// never themselves differentiated).
func (b *AutodiffBackend[B]) Conv3DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.inner.Conv3DInputBackward(input, kernel, grad, stride, padding)
}

// Conv3DKernelBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) Conv3DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.inner.Conv3DKernelBackward(input, kernel, grad, stride, padding)
}

// ConvTranspose3D performs volumetric transposed convolution and records it.
func (b *AutodiffBackend[B]) ConvTranspose3D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	defer input.ForceNonUnique()()
	defer kernel.ForceNonUnique()()

	result := b.inner.ConvTranspose3D(input, kernel, stride, padding)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewConvTranspose3DOp(input, kernel, result, stride, padding))
	}
	return result
}

// ConvTranspose3DInputBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) ConvTranspose3DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.inner.ConvTranspose3DInputBackward(input, kernel, grad, stride, padding)
}

// ConvTranspose3DKernelBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) ConvTranspose3DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.inner.ConvTranspose3DKernelBackward(input, kernel, grad, stride, padding)
}

// Reshape reshapes a tensor and records the operation.
func (b *AutodiffBackend[B]) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	defer t.ForceNonUnique()()

	result := b.inner.Reshape(t, newShape)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewReshapeOp(t, result))
	}
	return result
}

// Cat concatenates tensors along a dimension and records the operation.
func (b *AutodiffBackend[B]) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	for _, t := range tensors {
		defer t.ForceNonUnique()()
	}

	result := b.inner.Cat(tensors, dim)
	if b.tape.IsRecording() {
		ndim := len(tensors[0].Shape())
		if dim < 0 {
			dim += ndim
		}
		sizes := make([]int, len(tensors))
		for i, t := range tensors {
			sizes[i] = t.Shape()[dim]
		}
		b.tape.Record(ops.NewCatOp(tensors, dim, sizes, result))
	}
	return result
}

// Sum reduces to the scalar sum and records the operation.
func (b *AutodiffBackend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.Sum(x)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSumOp(x, result))
	}
	return result
}

// Mean reduces to the scalar mean and records the operation.
func (b *AutodiffBackend[B]) Mean(x *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.Mean(x)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMeanOp(x, result))
	}
	return result
}

// Sigmoid applies σ(x) = 1 / (1 + exp(-x)) and records the operation.
func (b *AutodiffBackend[B]) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	result := pointwise(x, b.Device(), func(v float64) float64 {
		return 1.0 / (1.0 + math.Exp(-v))
	})
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSigmoidOp(x, result))
	}
	return result
}

// Tanh applies hyperbolic tangent and records the operation.
func (b *AutodiffBackend[B]) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	result := pointwise(x, b.Device(), math.Tanh)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewTanhOp(x, result))
	}
	return result
}

// ReLU applies max(0, x) and records the operation.
func (b *AutodiffBackend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return b.LeakyReLU(x, 0)
}

// LeakyReLU applies x > 0 ? x : slope*x and records the operation.
func (b *AutodiffBackend[B]) LeakyReLU(x *tensor.RawTensor, slope float32) *tensor.RawTensor {
	result := pointwise(x, b.Device(), func(v float64) float64 {
		if v > 0 {
			return v
		}
		return v * float64(slope)
	})
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewLeakyReLUOp(x, result, slope))
	}
	return result
}

// Abs applies |x| and records the operation.
func (b *AutodiffBackend[B]) Abs(x *tensor.RawTensor) *tensor.RawTensor {
	result := pointwise(x, b.Device(), math.Abs)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewAbsOp(x, result))
	}
	return result
}

// Log applies the natural logarithm and records the operation.
// Input values must be positive; callers clamp into the open interval first.
func (b *AutodiffBackend[B]) Log(x *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := pointwise(x, b.Device(), math.Log)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewLogOp(x, result))
	}
	return result
}

// Normalize applies zero-mean unit-variance normalization over feature groups
// of a [N, C, D, H, W] tensor and records the operation.
//
// overBatch=false gives instance-norm statistics (per n,c block), overBatch=
// true gives batch-norm statistics (per channel). The affine parameters of
// the norm layers are applied outside via Mul/Add.
func (b *AutodiffBackend[B]) Normalize(x *tensor.RawTensor, overBatch bool, eps float32) *tensor.RawTensor {
	shape := x.Shape()
	if len(shape) != 5 {
		panic(fmt.Sprintf("normalize: expected 5D tensor [N,C,D,H,W], got %v", shape))
	}
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("normalize: only float32 supported, got %s", x.DType()))
	}

	n, c := shape[0], shape[1]
	spatial := shape[2] * shape[3] * shape[4]

	result, err := tensor.NewRaw(shape, tensor.Float32, b.Device())
	if err != nil {
		panic(fmt.Sprintf("normalize: %v", err))
	}

	in := x.AsFloat32()
	out := result.AsFloat32()
	invStd := make([]float32, ops.NumNormGroups(n, c, overBatch))

	ops.ForEachNormGroup(n, c, spatial, overBatch, func(group int, indices []int) {
		var sum, sumSq float64
		for _, i := range indices {
			v := float64(in[i])
			sum += v
			sumSq += v * v
		}
		m := float64(len(indices))
		mean := sum / m
		variance := sumSq/m - mean*mean
		if variance < 0 {
			variance = 0
		}
		inv := 1.0 / math.Sqrt(variance+float64(eps))
		invStd[group] = float32(inv)
		for _, i := range indices {
			out[i] = float32((float64(in[i]) - mean) * inv)
		}
	})

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewNormalizeOp(x, result, invStd, overBatch))
	}
	return result
}

// pointwise applies fn element-wise, allocating a fresh result.
func pointwise(x *tensor.RawTensor, device tensor.Device, fn func(float64) float64) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), device)
	if err != nil {
		panic(fmt.Sprintf("pointwise op: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		in, out := x.AsFloat32(), result.AsFloat32()
		for i, v := range in {
			out[i] = float32(fn(float64(v)))
		}
	case tensor.Float64:
		in, out := x.AsFloat64(), result.AsFloat64()
		for i, v := range in {
			out[i] = fn(v)
		}
	default:
		panic(fmt.Sprintf("pointwise op: unsupported dtype %s", x.DType()))
	}

	return result
}

func scalarFloat32(scalar any) float32 {
	switch s := scalar.(type) {
	case float32:
		return s
	case float64:
		return float32(s)
	case int:
		return float32(s)
	default:
		panic(fmt.Sprintf("unsupported scalar type %T", scalar))
	}
}
