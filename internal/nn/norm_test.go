package nn_test

import (
	"math"
	"testing"

	"github.com/gancer-ml/gancer/internal/nn"
	"github.com/gancer-ml/gancer/internal/tensor"
)

// blockStats computes mean and variance of a float32 slice.
func blockStats(data []float32) (mean, variance float64) {
	for _, v := range data {
		mean += float64(v)
	}
	mean /= float64(len(data))
	for _, v := range data {
		d := float64(v) - mean
		variance += d * d
	}
	variance /= float64(len(data))
	return mean, variance
}

func TestInstanceNorm3DStatistics(t *testing.T) {
	backend := newBackend()

	layer := nn.NewInstanceNorm3D(2, backend)
	input := tensor.Randn[float32](tensor.Shape{2, 2, 3, 3, 3}, backend)
	// Shift the channels apart so normalization has work to do.
	data := input.Data()
	for i := range data {
		data[i] = data[i]*3 + 10
	}

	out := layer.Forward(input)
	outData := out.Data()

	// With scale=1 and shift=0 every (n, c) block must come out with zero
	// mean and unit variance.
	spatial := 27
	for block := 0; block < 4; block++ {
		mean, variance := blockStats(outData[block*spatial : (block+1)*spatial])
		if math.Abs(mean) > 1e-4 {
			t.Errorf("block %d mean = %v, want 0", block, mean)
		}
		if math.Abs(variance-1) > 1e-2 {
			t.Errorf("block %d variance = %v, want 1", block, variance)
		}
	}
}

func TestInstanceNorm3DAffine(t *testing.T) {
	backend := newBackend()

	layer := nn.NewInstanceNorm3D(1, backend)
	params := layer.Parameters()
	params[0].Tensor().Set(2, 0)  // scale
	params[1].Tensor().Set(-1, 0) // shift

	input := tensor.Randn[float32](tensor.Shape{1, 1, 2, 2, 2}, backend)
	out := layer.Forward(input)

	mean, variance := blockStats(out.Data())
	if math.Abs(mean-(-1)) > 1e-4 {
		t.Errorf("affine mean = %v, want -1", mean)
	}
	if math.Abs(variance-4) > 0.1 {
		t.Errorf("affine variance = %v, want 4", variance)
	}
}

func TestBatchNorm3DStatistics(t *testing.T) {
	backend := newBackend()

	layer := nn.NewBatchNorm3D(2, backend)
	input := tensor.Randn[float32](tensor.Shape{3, 2, 2, 2, 2}, backend)

	out := layer.Forward(input)

	// Batch norm pools statistics per channel across the whole batch.
	shape := out.Shape()
	n, spatial := shape[0], shape[2]*shape[3]*shape[4]
	for c := 0; c < 2; c++ {
		var channel []float32
		for b := 0; b < n; b++ {
			for v := 0; v < spatial; v++ {
				channel = append(channel, out.At(b, c, v/4, (v/2)%2, v%2))
			}
		}
		mean, variance := blockStats(channel)
		if math.Abs(mean) > 1e-4 {
			t.Errorf("channel %d mean = %v, want 0", c, mean)
		}
		if math.Abs(variance-1) > 1e-2 {
			t.Errorf("channel %d variance = %v, want 1", c, variance)
		}
	}
}

func TestIdentityPassthrough(t *testing.T) {
	backend := newBackend()

	layer := nn.NewIdentity[adBackend]()
	input := tensor.Randn[float32](tensor.Shape{1, 1, 2, 2, 2}, backend)
	if layer.Forward(input) != input {
		t.Error("identity must return its input")
	}
	if layer.Parameters() != nil {
		t.Error("identity has no parameters")
	}
}

func TestNormGradientFlowsToAffine(t *testing.T) {
	backend := newBackend()
	tape := backend.Tape()

	layer := nn.NewInstanceNorm3D(1, backend)
	input := tensor.Randn[float32](tensor.Shape{1, 1, 2, 2, 2}, backend)

	tape.Clear()
	tape.StartRecording()
	loss := layer.Forward(input).Mul(input.Detach()).Sum()
	grads := backwardFrom(t, loss, backend)
	tape.StopRecording()
	tape.Clear()

	for _, p := range layer.Parameters() {
		if _, ok := grads[p.Tensor().Raw()]; !ok {
			t.Errorf("no gradient for %s", p.Name())
		}
	}
}
