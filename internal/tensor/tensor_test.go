package tensor_test

import (
	"testing"

	"github.com/gancer-ml/gancer/internal/backend/cpu"
	"github.com/gancer-ml/gancer/internal/tensor"
)

func TestFromSlice(t *testing.T) {
	backend := cpu.New()

	data := []float32{1, 2, 3, 4, 5, 6}
	x, err := tensor.FromSlice(data, tensor.Shape{2, 3}, backend)
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}
	if !x.Shape().Equal(tensor.Shape{2, 3}) {
		t.Errorf("shape = %v, want [2 3]", x.Shape())
	}
	if x.At(1, 2) != 6 {
		t.Errorf("At(1,2) = %v, want 6", x.At(1, 2))
	}

	// The slice is copied; mutating the source must not touch the tensor.
	data[0] = 99
	if x.At(0, 0) != 1 {
		t.Errorf("tensor aliases source slice: At(0,0) = %v", x.At(0, 0))
	}
}

func TestFromSliceShapeMismatch(t *testing.T) {
	backend := cpu.New()
	if _, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{2, 2}, backend); err == nil {
		t.Error("expected error for element count mismatch")
	}
}

func TestSetAndItem(t *testing.T) {
	backend := cpu.New()
	x := tensor.Zeros[float32](tensor.Shape{2, 2}, backend)
	x.Set(7.5, 1, 0)
	if x.At(1, 0) != 7.5 {
		t.Errorf("Set/At round trip failed: %v", x.At(1, 0))
	}

	s, _ := tensor.FromSlice([]float32{3.25}, tensor.Shape{1}, backend)
	if s.Item() != 3.25 {
		t.Errorf("Item() = %v, want 3.25", s.Item())
	}
}

func TestArithmeticBroadcast(t *testing.T) {
	backend := cpu.New()

	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	row, _ := tensor.FromSlice([]float32{10, 20}, tensor.Shape{1, 2}, backend)

	sum := x.Add(row)
	expected := []float32{11, 22, 13, 24}
	for i, v := range sum.Data() {
		if v != expected[i] {
			t.Errorf("Add broadcast[%d] = %v, want %v", i, v, expected[i])
		}
	}

	scaled := x.MulScalar(2).AddScalar(1)
	expectedScaled := []float32{3, 5, 7, 9}
	for i, v := range scaled.Data() {
		if v != expectedScaled[i] {
			t.Errorf("MulScalar/AddScalar[%d] = %v, want %v", i, v, expectedScaled[i])
		}
	}
}

func TestMeanSum(t *testing.T) {
	backend := cpu.New()
	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{4}, backend)

	if got := x.Sum().Item(); got != 10 {
		t.Errorf("Sum = %v, want 10", got)
	}
	if got := x.Mean().Item(); got != 2.5 {
		t.Errorf("Mean = %v, want 2.5", got)
	}
}

func TestReshape(t *testing.T) {
	backend := cpu.New()
	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	y := x.Reshape(3, 2)
	if !y.Shape().Equal(tensor.Shape{3, 2}) {
		t.Errorf("reshape shape = %v, want [3 2]", y.Shape())
	}
	if y.At(2, 1) != 6 {
		t.Errorf("reshape keeps row-major order: At(2,1) = %v, want 6", y.At(2, 1))
	}
}

func TestCat(t *testing.T) {
	backend := cpu.New()
	a, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{1, 2}, backend)
	b, _ := tensor.FromSlice([]float32{3, 4, 5, 6}, tensor.Shape{1, 4}, backend)

	c := tensor.Cat([]*tensor.Tensor[float32, *cpu.CPUBackend]{a, b}, 1)
	if !c.Shape().Equal(tensor.Shape{1, 6}) {
		t.Fatalf("cat shape = %v, want [1 6]", c.Shape())
	}
	expected := []float32{1, 2, 3, 4, 5, 6}
	for i, v := range c.Data() {
		if v != expected[i] {
			t.Errorf("cat[%d] = %v, want %v", i, v, expected[i])
		}
	}
}

func TestCatChannelDim(t *testing.T) {
	backend := cpu.New()
	a := tensor.Ones[float32](tensor.Shape{1, 1, 2, 2, 2}, backend)
	b := tensor.Zeros[float32](tensor.Shape{1, 2, 2, 2, 2}, backend)

	c := tensor.Cat([]*tensor.Tensor[float32, *cpu.CPUBackend]{a, b}, 1)
	if !c.Shape().Equal(tensor.Shape{1, 3, 2, 2, 2}) {
		t.Fatalf("cat shape = %v, want [1 3 2 2 2]", c.Shape())
	}
	if c.At(0, 0, 1, 1, 1) != 1 {
		t.Error("first channel should come from a")
	}
	if c.At(0, 1, 0, 0, 0) != 0 || c.At(0, 2, 0, 0, 0) != 0 {
		t.Error("remaining channels should come from b")
	}
}

func TestDetachSharesStorage(t *testing.T) {
	backend := cpu.New()
	x, _ := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	d := x.Detach()

	// Detach is a graph boundary: fresh RawTensor identity, same buffer.
	if d.Raw() == x.Raw() {
		t.Error("Detach must return a new RawTensor identity")
	}
	x.Set(42, 0)
	if d.At(0) != 42 {
		t.Error("Detach should share the underlying storage")
	}
}

func TestDeepCopyIndependent(t *testing.T) {
	backend := cpu.New()
	x, _ := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	c := x.DeepCopy()

	x.Set(42, 0)
	if c.At(0) != 1 {
		t.Errorf("DeepCopy aliases source: At(0) = %v", c.At(0))
	}
}
