package ops

import "github.com/gancer-ml/gancer/internal/tensor"

// Conv3DOp records a volumetric convolution for autodiff.
//
// Backward is pure orchestration: the input gradient is a transposed
// convolution of the output gradient with the kernel, the kernel gradient a
// correlation of input with output gradient. Both kernels live on the
// backend.
type Conv3DOp struct {
	input   *tensor.RawTensor
	kernel  *tensor.RawTensor
	output  *tensor.RawTensor
	stride  int
	padding int
}

// NewConv3DOp creates a new Conv3DOp.
func NewConv3DOp(input, kernel, output *tensor.RawTensor, stride, padding int) *Conv3DOp {
	return &Conv3DOp{input: input, kernel: kernel, output: output, stride: stride, padding: padding}
}

func (op *Conv3DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.Conv3DInputBackward(op.input, op.kernel, outputGrad, op.stride, op.padding)
	kernelGrad := backend.Conv3DKernelBackward(op.input, op.kernel, outputGrad, op.stride, op.padding)
	return []*tensor.RawTensor{inputGrad, kernelGrad}
}

func (op *Conv3DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.kernel}
}

func (op *Conv3DOp) Output() *tensor.RawTensor { return op.output }

// ConvTranspose3DOp records a volumetric transposed convolution.
type ConvTranspose3DOp struct {
	input   *tensor.RawTensor
	kernel  *tensor.RawTensor
	output  *tensor.RawTensor
	stride  int
	padding int
}

// NewConvTranspose3DOp creates a new ConvTranspose3DOp.
func NewConvTranspose3DOp(input, kernel, output *tensor.RawTensor, stride, padding int) *ConvTranspose3DOp {
	return &ConvTranspose3DOp{input: input, kernel: kernel, output: output, stride: stride, padding: padding}
}

func (op *ConvTranspose3DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.ConvTranspose3DInputBackward(op.input, op.kernel, outputGrad, op.stride, op.padding)
	kernelGrad := backend.ConvTranspose3DKernelBackward(op.input, op.kernel, outputGrad, op.stride, op.padding)
	return []*tensor.RawTensor{inputGrad, kernelGrad}
}

func (op *ConvTranspose3DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.kernel}
}

func (op *ConvTranspose3DOp) Output() *tensor.RawTensor { return op.output }
