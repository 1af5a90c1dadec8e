package nn_test

import (
	"math"
	"testing"

	"github.com/gancer-ml/gancer/internal/nn"
)

func TestInitWeightsDeterministic(t *testing.T) {
	backend := newBackend()

	a := nn.NewConv3D(2, 4, 3, 1, 1, true, backend)
	b := nn.NewConv3D(2, 4, 3, 1, 1, true, backend)

	if err := nn.InitWeights[adBackend](a, nn.InitNormal, 0.02, 7); err != nil {
		t.Fatal(err)
	}
	if err := nn.InitWeights[adBackend](b, nn.InitNormal, 0.02, 7); err != nil {
		t.Fatal(err)
	}

	aw := a.Parameters()[0].Tensor().Data()
	bw := b.Parameters()[0].Tensor().Data()
	for i := range aw {
		if aw[i] != bw[i] {
			t.Fatalf("same seed produced different weights at %d: %v != %v", i, aw[i], bw[i])
		}
	}

	if err := nn.InitWeights[adBackend](b, nn.InitNormal, 0.02, 8); err != nil {
		t.Fatal(err)
	}
	same := true
	for i := range aw {
		if aw[i] != bw[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical weights")
	}
}

func TestInitWeightsNormalStd(t *testing.T) {
	backend := newBackend()

	layer := nn.NewConv3D(8, 64, 4, 2, 1, false, backend)
	if err := nn.InitWeights[adBackend](layer, nn.InitNormal, 0.02, 1); err != nil {
		t.Fatal(err)
	}

	data := layer.Parameters()[0].Tensor().Data()
	var sum, sumSq float64
	for _, v := range data {
		sum += float64(v)
		sumSq += float64(v) * float64(v)
	}
	n := float64(len(data))
	mean := sum / n
	std := math.Sqrt(sumSq/n - mean*mean)

	if math.Abs(mean) > 0.002 {
		t.Errorf("mean = %v, want ~0", mean)
	}
	if math.Abs(std-0.02) > 0.002 {
		t.Errorf("std = %v, want ~0.02", std)
	}
}

func TestInitWeightsSkipsBiasAndAffine(t *testing.T) {
	backend := newBackend()

	model := nn.NewSequential[adBackend](
		nn.NewConv3D(1, 2, 3, 1, 1, true, backend),
		nn.NewInstanceNorm3D(2, backend),
	)
	if err := nn.InitWeights[adBackend](model, nn.InitKaiming, 0.02, 3); err != nil {
		t.Fatal(err)
	}

	for _, p := range model.Parameters() {
		if len(p.Tensor().Shape()) >= 2 {
			continue
		}
		data := p.Tensor().Data()
		switch p.Name() {
		case "bias", "shift":
			for i, v := range data {
				if v != 0 {
					t.Errorf("%s[%d] = %v, want 0 after init", p.Name(), i, v)
				}
			}
		case "scale":
			for i, v := range data {
				if v != 1 {
					t.Errorf("scale[%d] = %v, want 1 after init", i, v)
				}
			}
		}
	}
}

func TestInitWeightsOrthogonal(t *testing.T) {
	backend := newBackend()

	// Kernel [4, 2, 2, 2, 2] flattens to a 4x16 matrix; its rows must be
	// orthogonal with norm equal to the gain.
	layer := nn.NewConv3D(2, 4, 2, 1, 0, false, backend)
	const gain = 0.5
	if err := nn.InitWeights[adBackend](layer, nn.InitOrthogonal, gain, 11); err != nil {
		t.Fatal(err)
	}

	data := layer.Parameters()[0].Tensor().Data()
	rows, cols := 4, 16
	dot := func(i, j int) float64 {
		var s float64
		for k := 0; k < cols; k++ {
			s += float64(data[i*cols+k]) * float64(data[j*cols+k])
		}
		return s
	}

	for i := 0; i < rows; i++ {
		if norm := dot(i, i); math.Abs(norm-gain*gain) > 1e-4 {
			t.Errorf("row %d squared norm = %v, want %v", i, norm, gain*gain)
		}
		for j := i + 1; j < rows; j++ {
			if d := dot(i, j); math.Abs(d) > 1e-4 {
				t.Errorf("rows %d,%d not orthogonal: dot = %v", i, j, d)
			}
		}
	}
}

func TestInitWeightsUnknownScheme(t *testing.T) {
	backend := newBackend()
	layer := nn.NewConv3D(1, 1, 3, 1, 1, false, backend)
	if err := nn.InitWeights[adBackend](layer, "sparse", 0.02, 1); err == nil {
		t.Error("unknown init scheme should be rejected")
	}
}
