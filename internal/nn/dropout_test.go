package nn_test

import (
	"math"
	"testing"

	"github.com/gancer-ml/gancer/internal/nn"
	"github.com/gancer-ml/gancer/internal/tensor"
)

func TestDropoutEvalIsIdentity(t *testing.T) {
	backend := newBackend()

	layer := nn.NewDropout[adBackend](0.5)
	layer.SetTraining(false)

	input := tensor.Randn[float32](tensor.Shape{1, 1, 4, 4, 4}, backend)
	if layer.Forward(input) != input {
		t.Error("dropout in eval mode must pass the input through")
	}
}

func TestDropoutTrainingMasksAndScales(t *testing.T) {
	backend := newBackend()

	const p = 0.5
	layer := nn.NewDropout[adBackend](p)

	input := tensor.Ones[float32](tensor.Shape{1, 1, 16, 16, 16}, backend)
	out := layer.Forward(input)

	var zeros, kept int
	for _, v := range out.Data() {
		switch v {
		case 0:
			zeros++
		case 1 / (1 - p):
			kept++
		default:
			t.Fatalf("unexpected value %v: survivors must be scaled by 1/(1-p)", v)
		}
	}

	total := float64(zeros + kept)
	dropRate := float64(zeros) / total
	if math.Abs(dropRate-p) > 0.05 {
		t.Errorf("drop rate = %v, want ~%v", dropRate, p)
	}
}

func TestDropoutZeroProbability(t *testing.T) {
	backend := newBackend()

	layer := nn.NewDropout[adBackend](0)
	input := tensor.Randn[float32](tensor.Shape{2, 2, 2, 2, 2}, backend)
	if layer.Forward(input) != input {
		t.Error("p=0 dropout must be the identity")
	}
}

func TestDropoutInvalidProbability(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("p=1 must panic: inverted dropout cannot scale by 1/0")
		}
	}()
	nn.NewDropout[adBackend](1)
}
