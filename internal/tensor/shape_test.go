package tensor

import "testing"

func TestShapeNumElements(t *testing.T) {
	tests := []struct {
		shape    Shape
		expected int
	}{
		{Shape{}, 1}, // scalar
		{Shape{4}, 4},
		{Shape{2, 3}, 6},
		{Shape{1, 1, 4, 4, 4}, 64},
		{Shape{2, 2, 8, 8, 8}, 2048},
	}
	for _, tt := range tests {
		if got := tt.shape.NumElements(); got != tt.expected {
			t.Errorf("NumElements(%v) = %d, want %d", tt.shape, got, tt.expected)
		}
	}
}

func TestShapeValidate(t *testing.T) {
	if err := (Shape{1, 3, 4, 4, 4}).Validate(); err != nil {
		t.Errorf("valid shape rejected: %v", err)
	}
	if err := (Shape{1, 0, 4}).Validate(); err == nil {
		t.Error("zero dimension should be rejected")
	}
	if err := (Shape{-1, 4}).Validate(); err == nil {
		t.Error("negative dimension should be rejected")
	}
}

func TestShapeComputeStrides(t *testing.T) {
	strides := Shape{2, 3, 4}.ComputeStrides()
	expected := []int{12, 4, 1}
	for i := range expected {
		if strides[i] != expected[i] {
			t.Errorf("stride[%d] = %d, want %d", i, strides[i], expected[i])
		}
	}
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b     Shape
		expected Shape
		needs    bool
	}{
		{Shape{2, 3}, Shape{2, 3}, Shape{2, 3}, false},
		{Shape{2, 3}, Shape{3}, Shape{2, 3}, true},
		{Shape{1, 4, 1, 1, 1}, Shape{2, 4, 8, 8, 8}, Shape{2, 4, 8, 8, 8}, true},
		{Shape{5, 1}, Shape{1, 6}, Shape{5, 6}, true},
	}
	for _, tt := range tests {
		result, needs, err := BroadcastShapes(tt.a, tt.b)
		if err != nil {
			t.Fatalf("BroadcastShapes(%v, %v): %v", tt.a, tt.b, err)
		}
		if !result.Equal(tt.expected) {
			t.Errorf("BroadcastShapes(%v, %v) = %v, want %v", tt.a, tt.b, result, tt.expected)
		}
		if needs != tt.needs {
			t.Errorf("BroadcastShapes(%v, %v) needsBroadcast = %v, want %v", tt.a, tt.b, needs, tt.needs)
		}
	}
}

func TestBroadcastShapesIncompatible(t *testing.T) {
	if _, _, err := BroadcastShapes(Shape{2, 3}, Shape{2, 4}); err == nil {
		t.Error("incompatible shapes should not broadcast")
	}
}
