package ops

import "github.com/gancer-ml/gancer/internal/tensor"

// AbsOp: output = |x|. grad_x = g * sign(x). The subgradient at zero is
// taken as zero, matching the reference L1 loss behaviour.
type AbsOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewAbsOp creates a new AbsOp.
func NewAbsOp(x, output *tensor.RawTensor) *AbsOp {
	return &AbsOp{input: x, output: output}
}

func (op *AbsOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad := zerosLike(op.input)

	switch op.input.DType() {
	case tensor.Float32:
		x, g, out := op.input.AsFloat32(), outputGrad.AsFloat32(), grad.AsFloat32()
		for i := range out {
			switch {
			case x[i] > 0:
				out[i] = g[i]
			case x[i] < 0:
				out[i] = -g[i]
			}
		}
	case tensor.Float64:
		x, g, out := op.input.AsFloat64(), outputGrad.AsFloat64(), grad.AsFloat64()
		for i := range out {
			switch {
			case x[i] > 0:
				out[i] = g[i]
			case x[i] < 0:
				out[i] = -g[i]
			}
		}
	}

	return []*tensor.RawTensor{grad}
}

func (op *AbsOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *AbsOp) Output() *tensor.RawTensor   { return op.output }

// LogOp: output = log(x). grad_x = g / x.
type LogOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewLogOp creates a new LogOp.
func NewLogOp(x, output *tensor.RawTensor) *LogOp {
	return &LogOp{input: x, output: output}
}

func (op *LogOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Div(outputGrad, op.input)}
}

func (op *LogOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *LogOp) Output() *tensor.RawTensor   { return op.output }
