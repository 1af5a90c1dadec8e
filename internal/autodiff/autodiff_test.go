package autodiff_test

import (
	"testing"

	"github.com/gancer-ml/gancer/internal/autodiff"
	"github.com/gancer-ml/gancer/internal/backend/cpu"
	"github.com/gancer-ml/gancer/internal/tensor"
)

type adBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newBackend() adBackend {
	return autodiff.New(cpu.New())
}

func TestTapeRecordsOnlyWhileRecording(t *testing.T) {
	backend := newBackend()
	tape := backend.Tape()

	x, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)

	x.Add(x)
	if tape.NumOps() != 0 {
		t.Errorf("tape recorded %d ops before StartRecording", tape.NumOps())
	}

	tape.StartRecording()
	x.Add(x)
	x.Mul(x)
	if tape.NumOps() != 2 {
		t.Errorf("tape has %d ops, want 2", tape.NumOps())
	}

	tape.StopRecording()
	x.Add(x)
	if tape.NumOps() != 2 {
		t.Errorf("tape recorded while stopped: %d ops", tape.NumOps())
	}

	tape.Clear()
	if tape.NumOps() != 0 {
		t.Errorf("Clear left %d ops", tape.NumOps())
	}
}

func TestBackwardSquare(t *testing.T) {
	backend := newBackend()
	tape := backend.Tape()
	tape.StartRecording()
	defer tape.StopRecording()

	// y = mean(x²), dy/dx = 2x/n.
	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{4}, backend)
	y := x.Mul(x).Mean()

	grads := autodiff.Backward(y, backend)
	grad, ok := grads[x.Raw()]
	if !ok {
		t.Fatal("no gradient for x")
	}
	expected := []float32{0.5, 1, 1.5, 2}
	for i, v := range grad.AsFloat32() {
		if diff := v - expected[i]; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("grad[%d] = %v, want %v", i, v, expected[i])
		}
	}
}

func TestBackwardAccumulatesThroughMultiplePaths(t *testing.T) {
	backend := newBackend()
	tape := backend.Tape()
	tape.StartRecording()
	defer tape.StopRecording()

	// y = sum(x + x): both paths contribute, dy/dx = 2.
	x, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)
	y := x.Add(x).Sum()

	grads := autodiff.Backward(y, backend)
	for i, v := range grads[x.Raw()].AsFloat32() {
		if v != 2 {
			t.Errorf("grad[%d] = %v, want 2", i, v)
		}
	}
}

func TestDetachStopsGradient(t *testing.T) {
	backend := newBackend()
	tape := backend.Tape()
	tape.StartRecording()
	defer tape.StopRecording()

	// y = sum(detach(x) * x): the detached factor is a constant to the tape,
	// so dy/dx = x, not 2x.
	x, _ := tensor.FromSlice([]float32{2, 3}, tensor.Shape{2}, backend)
	d := x.Detach()
	y := d.Mul(x).Sum()

	grads := autodiff.Backward(y, backend)
	grad := grads[x.Raw()].AsFloat32()
	expected := []float32{2, 3}
	for i := range expected {
		if grad[i] != expected[i] {
			t.Errorf("grad[%d] = %v, want %v (detach boundary leaked)", i, grad[i], expected[i])
		}
	}
	if _, ok := grads[d.Raw()]; !ok {
		t.Error("detached node should still receive its own local gradient")
	}
}

func TestBackwardSkipsUnrelatedOps(t *testing.T) {
	backend := newBackend()
	tape := backend.Tape()
	tape.StartRecording()
	defer tape.StopRecording()

	x, _ := tensor.FromSlice([]float32{1}, tensor.Shape{1}, backend)
	z, _ := tensor.FromSlice([]float32{5}, tensor.Shape{1}, backend)

	// Two independent graphs on the same tape; backward from y must not
	// touch w's graph.
	y := x.Mul(x).Sum()
	w := z.Add(z).Sum()

	grads := autodiff.Backward(y, backend)
	if _, ok := grads[z.Raw()]; ok {
		t.Error("unrelated input received a gradient")
	}
	if _, ok := grads[w.Raw()]; ok {
		t.Error("unrelated output received a gradient")
	}
	if grads[x.Raw()].AsFloat32()[0] != 2 {
		t.Errorf("grad x = %v, want 2", grads[x.Raw()].AsFloat32()[0])
	}
}

func TestBackwardPreservesRecordingState(t *testing.T) {
	backend := newBackend()
	tape := backend.Tape()
	tape.StartRecording()

	x, _ := tensor.FromSlice([]float32{1}, tensor.Shape{1}, backend)
	y := x.Mul(x).Sum()

	before := tape.NumOps()
	autodiff.Backward(y, backend)
	if tape.NumOps() != before {
		t.Errorf("backward leaked %d ops onto the tape", tape.NumOps()-before)
	}
	if !tape.IsRecording() {
		t.Error("backward should restore the recording flag")
	}
	tape.StopRecording()
}

func TestTwoBackwardsOneTape(t *testing.T) {
	backend := newBackend()
	tape := backend.Tape()
	tape.StartRecording()
	defer tape.StopRecording()

	// The discriminator/generator pattern: one forward tape, two losses,
	// two backward walks.
	x, _ := tensor.FromSlice([]float32{2}, tensor.Shape{1}, backend)
	lossA := x.Mul(x).Sum()       // d/dx = 2x = 4
	lossB := x.MulScalar(3).Sum() // d/dx = 3

	gradsA := autodiff.Backward(lossA, backend)
	gradsB := autodiff.Backward(lossB, backend)

	if got := gradsA[x.Raw()].AsFloat32()[0]; got != 4 {
		t.Errorf("first backward grad = %v, want 4", got)
	}
	if got := gradsB[x.Raw()].AsFloat32()[0]; got != 3 {
		t.Errorf("second backward grad = %v, want 3", got)
	}
}

func TestBackwardRankMismatchedBroadcast(t *testing.T) {
	backend := newBackend()
	tape := backend.Tape()
	tape.StartRecording()
	defer tape.StopRecording()

	// y = sum(x + b) with b missing leading dimensions: the backward pass
	// must sum the broadcast dimensions out of b's gradient, not just the
	// size-1 ones.
	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	b, _ := tensor.FromSlice([]float32{10, 20}, tensor.Shape{2}, backend)
	y := x.Add(b).Sum()

	grads := autodiff.Backward(y, backend)

	gradX := grads[x.Raw()]
	if !gradX.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("grad x shape = %v, want {2, 2}", gradX.Shape())
	}
	for i, v := range gradX.AsFloat32() {
		if v != 1 {
			t.Errorf("grad x[%d] = %v, want 1", i, v)
		}
	}

	gradB := grads[b.Raw()]
	if !gradB.Shape().Equal(tensor.Shape{2}) {
		t.Fatalf("grad b shape = %v, want {2}", gradB.Shape())
	}
	for i, v := range gradB.AsFloat32() {
		if v != 2 {
			t.Errorf("grad b[%d] = %v, want 2 (one per broadcast row)", i, v)
		}
	}
}

func TestBackwardRankMismatchedBroadcastMul(t *testing.T) {
	backend := newBackend()
	tape := backend.Tape()
	tape.StartRecording()
	defer tape.StopRecording()

	// Two missing leading dimensions: a {2,2,2} product against a {2}
	// factor. d sum/db[i] = sum over broadcast positions of x[..., i].
	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{2, 2, 2}, backend)
	b, _ := tensor.FromSlice([]float32{1, -1}, tensor.Shape{2}, backend)
	y := x.Mul(b).Sum()

	grads := autodiff.Backward(y, backend)

	gradB := grads[b.Raw()]
	if !gradB.Shape().Equal(tensor.Shape{2}) {
		t.Fatalf("grad b shape = %v, want {2}", gradB.Shape())
	}
	expected := []float32{1 + 3 + 5 + 7, 2 + 4 + 6 + 8}
	for i, v := range gradB.AsFloat32() {
		if v != expected[i] {
			t.Errorf("grad b[%d] = %v, want %v", i, v, expected[i])
		}
	}

	gradX := grads[x.Raw()]
	expectedX := []float32{1, -1, 1, -1, 1, -1, 1, -1}
	for i, v := range gradX.AsFloat32() {
		if v != expectedX[i] {
			t.Errorf("grad x[%d] = %v, want %v", i, v, expectedX[i])
		}
	}
}
