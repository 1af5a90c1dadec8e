package ops

import (
	"fmt"

	"github.com/gancer-ml/gancer/internal/tensor"
)

// CatOp represents concatenation along a dimension. Backward splits the
// output gradient at the input boundaries and hands each input its slice.
//
// The real/fake pair construction (Cat of realA and fakeB on the channel
// axis) goes through this op, so its backward is what routes the GAN gradient
// from the discriminator back into the generator output.
type CatOp struct {
	inputs []*tensor.RawTensor
	dim    int
	sizes  []int // size of each input along dim
	output *tensor.RawTensor
}

// NewCatOp creates a new CatOp. dim must already be normalized (>= 0).
func NewCatOp(inputs []*tensor.RawTensor, dim int, sizes []int, output *tensor.RawTensor) *CatOp {
	return &CatOp{inputs: inputs, dim: dim, sizes: sizes, output: output}
}

func (op *CatOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	gradShape := outputGrad.Shape()
	ndim := len(gradShape)

	outer := 1
	for d := 0; d < op.dim; d++ {
		outer *= gradShape[d]
	}
	trailing := 1
	for d := op.dim + 1; d < ndim; d++ {
		trailing *= gradShape[d]
	}

	elemSize := outputGrad.DType().Size()
	srcRun := gradShape[op.dim] * trailing * elemSize
	src := outputGrad.Data()

	grads := make([]*tensor.RawTensor, len(op.inputs))
	offset := 0
	for i, size := range op.sizes {
		gradInputShape := gradShape.Clone()
		gradInputShape[op.dim] = size

		gradInput, err := tensor.NewRaw(gradInputShape, outputGrad.DType(), outputGrad.Device())
		if err != nil {
			panic(fmt.Sprintf("cat backward: %v", err))
		}

		run := size * trailing * elemSize
		dst := gradInput.Data()
		for o := 0; o < outer; o++ {
			copy(dst[o*run:(o+1)*run], src[o*srcRun+offset:])
		}

		grads[i] = gradInput
		offset += run
	}

	return grads
}

func (op *CatOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *CatOp) Output() *tensor.RawTensor   { return op.output }

// ReshapeOp: output views the input under a new shape. Backward reshapes the
// gradient back. Must be recorded: without it, gradients for reshaped
// parameters (e.g. broadcast conv biases) never reach the original tensor.
type ReshapeOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewReshapeOp creates a new ReshapeOp.
func NewReshapeOp(input, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{input: input, output: output}
}

func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(outputGrad, op.input.Shape())}
}

func (op *ReshapeOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *ReshapeOp) Output() *tensor.RawTensor   { return op.output }
