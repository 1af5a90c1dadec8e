package ops

import "github.com/gancer-ml/gancer/internal/tensor"

// SigmoidOp: output = σ(x). grad_x = g * y * (1 - y), computed from the
// stored output.
type SigmoidOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSigmoidOp creates a new SigmoidOp.
func NewSigmoidOp(x, output *tensor.RawTensor) *SigmoidOp {
	return &SigmoidOp{input: x, output: output}
}

func (op *SigmoidOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad := zerosLike(op.input)

	switch op.input.DType() {
	case tensor.Float32:
		y, g, out := op.output.AsFloat32(), outputGrad.AsFloat32(), grad.AsFloat32()
		for i := range out {
			out[i] = g[i] * y[i] * (1 - y[i])
		}
	case tensor.Float64:
		y, g, out := op.output.AsFloat64(), outputGrad.AsFloat64(), grad.AsFloat64()
		for i := range out {
			out[i] = g[i] * y[i] * (1 - y[i])
		}
	}

	return []*tensor.RawTensor{grad}
}

func (op *SigmoidOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *SigmoidOp) Output() *tensor.RawTensor   { return op.output }

// TanhOp: output = tanh(x). grad_x = g * (1 - y²).
type TanhOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewTanhOp creates a new TanhOp.
func NewTanhOp(x, output *tensor.RawTensor) *TanhOp {
	return &TanhOp{input: x, output: output}
}

func (op *TanhOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad := zerosLike(op.input)

	switch op.input.DType() {
	case tensor.Float32:
		y, g, out := op.output.AsFloat32(), outputGrad.AsFloat32(), grad.AsFloat32()
		for i := range out {
			out[i] = g[i] * (1 - y[i]*y[i])
		}
	case tensor.Float64:
		y, g, out := op.output.AsFloat64(), outputGrad.AsFloat64(), grad.AsFloat64()
		for i := range out {
			out[i] = g[i] * (1 - y[i]*y[i])
		}
	}

	return []*tensor.RawTensor{grad}
}

func (op *TanhOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *TanhOp) Output() *tensor.RawTensor   { return op.output }

// LeakyReLUOp: output = x if x > 0 else slope*x. ReLU is the slope=0 case.
type LeakyReLUOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	slope  float32
}

// NewLeakyReLUOp creates a new LeakyReLUOp.
func NewLeakyReLUOp(x, output *tensor.RawTensor, slope float32) *LeakyReLUOp {
	return &LeakyReLUOp{input: x, output: output, slope: slope}
}

func (op *LeakyReLUOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad := zerosLike(op.input)

	switch op.input.DType() {
	case tensor.Float32:
		x, g, out := op.input.AsFloat32(), outputGrad.AsFloat32(), grad.AsFloat32()
		for i := range out {
			if x[i] > 0 {
				out[i] = g[i]
			} else {
				out[i] = g[i] * op.slope
			}
		}
	case tensor.Float64:
		x, g, out := op.input.AsFloat64(), outputGrad.AsFloat64(), grad.AsFloat64()
		for i := range out {
			if x[i] > 0 {
				out[i] = g[i]
			} else {
				out[i] = g[i] * float64(op.slope)
			}
		}
	}

	return []*tensor.RawTensor{grad}
}

func (op *LeakyReLUOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *LeakyReLUOp) Output() *tensor.RawTensor   { return op.output }
