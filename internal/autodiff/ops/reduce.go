package ops

import "github.com/gancer-ml/gancer/internal/tensor"

// MeanOp: output = mean(x), shape {1}.
//
// Backward: every element receives g / N. Both adversarial and reconstruction
// losses bottom out in this op, so its gradient seeds almost every backward
// pass in the model.
type MeanOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewMeanOp creates a new MeanOp.
func NewMeanOp(x, output *tensor.RawTensor) *MeanOp {
	return &MeanOp{input: x, output: output}
}

func (op *MeanOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad := zerosLike(op.input)
	g := scalarValue(outputGrad) / float64(op.input.NumElements())

	switch grad.DType() {
	case tensor.Float32:
		data := grad.AsFloat32()
		for i := range data {
			data[i] = float32(g)
		}
	case tensor.Float64:
		data := grad.AsFloat64()
		for i := range data {
			data[i] = g
		}
	}

	return []*tensor.RawTensor{grad}
}

func (op *MeanOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *MeanOp) Output() *tensor.RawTensor   { return op.output }

// SumOp: output = sum(x), shape {1}. Every element receives g.
type SumOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSumOp creates a new SumOp.
func NewSumOp(x, output *tensor.RawTensor) *SumOp {
	return &SumOp{input: x, output: output}
}

func (op *SumOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad := zerosLike(op.input)
	g := scalarValue(outputGrad)

	switch grad.DType() {
	case tensor.Float32:
		data := grad.AsFloat32()
		for i := range data {
			data[i] = float32(g)
		}
	case tensor.Float64:
		data := grad.AsFloat64()
		for i := range data {
			data[i] = g
		}
	}

	return []*tensor.RawTensor{grad}
}

func (op *SumOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *SumOp) Output() *tensor.RawTensor   { return op.output }
