package cpu_test

import (
	"testing"

	"github.com/gancer-ml/gancer/internal/backend/cpu"
	"github.com/gancer-ml/gancer/internal/tensor"
)

func raw(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw: %v", err)
	}
	copy(r.AsFloat32(), data)
	return r
}

func assertFloats(t *testing.T, got, want []float32, eps float32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		diff := got[i] - want[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > eps {
			t.Errorf("element %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAddBroadcast(t *testing.T) {
	backend := cpu.New()

	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := raw(t, []float32{10, 20, 30}, tensor.Shape{1, 3})

	out := backend.Add(a, b)
	if !out.Shape().Equal(tensor.Shape{2, 3}) {
		t.Fatalf("shape = %v, want [2 3]", out.Shape())
	}
	assertFloats(t, out.AsFloat32(), []float32{11, 22, 33, 14, 25, 36}, 0)
}

func TestMulBroadcastChannel(t *testing.T) {
	backend := cpu.New()

	// Per-channel scale against a [N, C, D, H, W] volume, the norm-affine
	// pattern.
	x := raw(t, []float32{
		1, 1, 1, 1, // channel 0
		2, 2, 2, 2, // channel 1
	}, tensor.Shape{1, 2, 1, 2, 2})
	scale := raw(t, []float32{10, 100}, tensor.Shape{1, 2, 1, 1, 1})

	out := backend.Mul(x, scale)
	assertFloats(t, out.AsFloat32(), []float32{10, 10, 10, 10, 200, 200, 200, 200}, 0)
}

func TestSubDiv(t *testing.T) {
	backend := cpu.New()

	a := raw(t, []float32{10, 20, 30}, tensor.Shape{3})
	b := raw(t, []float32{2, 4, 5}, tensor.Shape{3})

	assertFloats(t, backend.Sub(a, b).AsFloat32(), []float32{8, 16, 25}, 0)
	assertFloats(t, backend.Div(a, b).AsFloat32(), []float32{5, 5, 6}, 0)
}

func TestScalarOps(t *testing.T) {
	backend := cpu.New()
	x := raw(t, []float32{1, -2, 3}, tensor.Shape{3})

	assertFloats(t, backend.MulScalar(x, float32(2)).AsFloat32(), []float32{2, -4, 6}, 0)
	assertFloats(t, backend.AddScalar(x, float32(1)).AsFloat32(), []float32{2, -1, 4}, 0)
}

func TestSumMean(t *testing.T) {
	backend := cpu.New()
	x := raw(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})

	sum := backend.Sum(x)
	if !sum.Shape().Equal(tensor.Shape{1}) {
		t.Errorf("sum shape = %v, want [1]", sum.Shape())
	}
	if got := sum.AsFloat32()[0]; got != 10 {
		t.Errorf("sum = %v, want 10", got)
	}
	if got := backend.Mean(x).AsFloat32()[0]; got != 2.5 {
		t.Errorf("mean = %v, want 2.5", got)
	}
}

func TestReshapeSharesBuffer(t *testing.T) {
	backend := cpu.New()
	x := raw(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})

	y := backend.Reshape(x, tensor.Shape{4})
	if !y.Shape().Equal(tensor.Shape{4}) {
		t.Fatalf("shape = %v, want [4]", y.Shape())
	}
	x.AsFloat32()[0] = 42
	if y.AsFloat32()[0] != 42 {
		t.Error("reshape should view the same buffer")
	}
}

func TestCatDim0AndDim1(t *testing.T) {
	backend := cpu.New()

	a := raw(t, []float32{1, 2}, tensor.Shape{1, 2})
	b := raw(t, []float32{3, 4}, tensor.Shape{1, 2})

	out := backend.Cat([]*tensor.RawTensor{a, b}, 0)
	if !out.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("cat dim 0 shape = %v", out.Shape())
	}
	assertFloats(t, out.AsFloat32(), []float32{1, 2, 3, 4}, 0)

	out = backend.Cat([]*tensor.RawTensor{a, b}, 1)
	if !out.Shape().Equal(tensor.Shape{1, 4}) {
		t.Fatalf("cat dim 1 shape = %v", out.Shape())
	}
	assertFloats(t, out.AsFloat32(), []float32{1, 2, 3, 4}, 0)
}

func TestCatNegativeDim(t *testing.T) {
	backend := cpu.New()

	a := raw(t, []float32{1, 2}, tensor.Shape{1, 2})
	b := raw(t, []float32{3, 4}, tensor.Shape{1, 2})

	out := backend.Cat([]*tensor.RawTensor{a, b}, -1)
	if !out.Shape().Equal(tensor.Shape{1, 4}) {
		t.Fatalf("cat dim -1 shape = %v", out.Shape())
	}
}
