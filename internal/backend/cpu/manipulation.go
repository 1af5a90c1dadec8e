package cpu

import (
	"fmt"

	"github.com/gancer-ml/gancer/internal/tensor"
)

// Reshape returns a tensor viewing the same buffer with a new shape.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("reshape: cannot reshape %v (%d elements) to %v (%d elements)",
			t.Shape(), t.NumElements(), newShape, newShape.NumElements()))
	}

	return t.WithShape(newShape)
}

// Cat concatenates tensors along a dimension. All tensors must share dtype
// and all dimensions except dim.
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: at least one tensor required")
	}

	first := tensors[0]
	ndim := len(first.Shape())
	if dim < 0 {
		dim += ndim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("cat: dimension %d out of range for %dD tensors", dim, ndim))
	}

	outShape := first.Shape().Clone()
	for _, t := range tensors[1:] {
		s := t.Shape()
		if len(s) != ndim {
			panic(fmt.Sprintf("cat: rank mismatch %d vs %d", len(s), ndim))
		}
		for d := 0; d < ndim; d++ {
			if d != dim && s[d] != outShape[d] {
				panic(fmt.Sprintf("cat: shape mismatch at dimension %d: %v vs %v", d, first.Shape(), s))
			}
		}
		if t.DType() != first.DType() {
			panic(fmt.Sprintf("cat: dtype mismatch %s vs %s", first.DType(), t.DType()))
		}
		outShape[dim] += s[dim]
	}

	result, err := tensor.NewRaw(outShape, first.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("cat: failed to create result tensor: %v", err))
	}

	// Copy contiguous blocks: for each index prefix before dim, each input
	// contributes a contiguous run of (its dim size × trailing elements).
	outer := 1
	for d := 0; d < dim; d++ {
		outer *= outShape[d]
	}
	trailing := 1
	for d := dim + 1; d < ndim; d++ {
		trailing *= outShape[d]
	}

	elemSize := first.DType().Size()
	outData := result.Data()
	outRun := outShape[dim] * trailing * elemSize

	offset := 0
	for _, t := range tensors {
		run := t.Shape()[dim] * trailing * elemSize
		src := t.Data()
		for o := 0; o < outer; o++ {
			copy(outData[o*outRun+offset:], src[o*run:(o+1)*run])
		}
		offset += run
	}

	return result
}
