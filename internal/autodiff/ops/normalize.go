package ops

import (
	"fmt"

	"github.com/gancer-ml/gancer/internal/tensor"
)

// NormalizeOp records a zero-mean unit-variance normalization over feature
// groups of a [N, C, D, H, W] tensor.
//
//   - overBatch=false: instance norm statistics, one group per (n, c) block.
//   - overBatch=true: batch norm statistics, one group per channel c across
//     the whole batch.
//
// The affine scale/shift of the norm layers is applied outside this op with
// ordinary Mul/Add, so their gradients come from the broadcast arithmetic ops.
//
// Backward (per group, m = group size):
//
//	gx = invstd * (g - mean(g) - y * mean(g*y))
type NormalizeOp struct {
	input     *tensor.RawTensor
	output    *tensor.RawTensor // normalized values y
	invStd    []float32         // one per group
	overBatch bool
}

// NewNormalizeOp creates a new NormalizeOp.
func NewNormalizeOp(input, output *tensor.RawTensor, invStd []float32, overBatch bool) *NormalizeOp {
	return &NormalizeOp{input: input, output: output, invStd: invStd, overBatch: overBatch}
}

func (op *NormalizeOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	shape := op.input.Shape()
	if len(shape) != 5 {
		panic(fmt.Sprintf("normalize backward: expected 5D tensor, got %v", shape))
	}
	n, c := shape[0], shape[1]
	spatial := shape[2] * shape[3] * shape[4]

	grad := zerosLike(op.input)
	y := op.output.AsFloat32()
	g := outputGrad.AsFloat32()
	out := grad.AsFloat32()

	forEachGroup(n, c, spatial, op.overBatch, func(group int, indices []int) {
		var sumG, sumGY float64
		for _, i := range indices {
			sumG += float64(g[i])
			sumGY += float64(g[i]) * float64(y[i])
		}
		m := float64(len(indices))
		meanG := float32(sumG / m)
		meanGY := float32(sumGY / m)
		inv := op.invStd[group]
		for _, i := range indices {
			out[i] = inv * (g[i] - meanG - y[i]*meanGY)
		}
	})

	return []*tensor.RawTensor{grad}
}

func (op *NormalizeOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *NormalizeOp) Output() *tensor.RawTensor   { return op.output }

// ForEachNormGroup enumerates the flat indices of every normalization group
// for a [N, C, spatial] layout. Shared by the forward pass in the autodiff
// backend and the backward pass here.
func ForEachNormGroup(n, c, spatial int, overBatch bool, fn func(group int, indices []int)) {
	forEachGroup(n, c, spatial, overBatch, fn)
}

func forEachGroup(n, c, spatial int, overBatch bool, fn func(group int, indices []int)) {
	if overBatch {
		// One group per channel, gathering every batch element's block.
		indices := make([]int, 0, n*spatial)
		for ch := 0; ch < c; ch++ {
			indices = indices[:0]
			for b := 0; b < n; b++ {
				base := (b*c + ch) * spatial
				for i := 0; i < spatial; i++ {
					indices = append(indices, base+i)
				}
			}
			fn(ch, indices)
		}
		return
	}

	// One contiguous group per (n, c) block.
	indices := make([]int, spatial)
	for b := 0; b < n; b++ {
		for ch := 0; ch < c; ch++ {
			base := (b*c + ch) * spatial
			for i := 0; i < spatial; i++ {
				indices[i] = base + i
			}
			fn(b*c+ch, indices)
		}
	}
}

// NumNormGroups returns the group count for the given mode.
func NumNormGroups(n, c int, overBatch bool) int {
	if overBatch {
		return c
	}
	return n * c
}
