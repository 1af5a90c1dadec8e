package optim_test

import (
	"testing"

	"github.com/gancer-ml/gancer/internal/autodiff"
	"github.com/gancer-ml/gancer/internal/backend/cpu"
	"github.com/gancer-ml/gancer/internal/nn"
	"github.com/gancer-ml/gancer/internal/optim"
	"github.com/gancer-ml/gancer/internal/tensor"
)

type adBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func floatEqual(a, b, eps float32) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < eps
}

func singleParam(backend adBackend, value float32) *nn.Parameter[adBackend] {
	x, _ := tensor.FromSlice([]float32{value}, tensor.Shape{1}, backend)
	return nn.NewParameter("x", x)
}

func gradFor(backend adBackend, param *nn.Parameter[adBackend], value float32) map[*tensor.RawTensor]*tensor.RawTensor {
	grad, _ := tensor.NewRaw(tensor.Shape{1}, tensor.Float32, backend.Device())
	grad.AsFloat32()[0] = value
	return map[*tensor.RawTensor]*tensor.RawTensor{param.Tensor().Raw(): grad}
}

func TestSGDSimpleUpdate(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := singleParam(backend, 2.0)

	optimizer := optim.NewSGD([]*nn.Parameter[adBackend]{param},
		optim.SGDConfig{LR: 0.1}, backend)
	optimizer.Step(gradFor(backend, param, 1.0))

	// x_new = 2.0 - 0.1 * 1.0 = 1.9
	if got := param.Tensor().Item(); !floatEqual(got, 1.9, 1e-6) {
		t.Errorf("SGD update: got %v, want 1.9", got)
	}
}

func TestSGDMomentumAccumulates(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := singleParam(backend, 1.0)

	optimizer := optim.NewSGD([]*nn.Parameter[adBackend]{param},
		optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)

	// Step 1: v = 1, x = 1 - 0.1 = 0.9
	optimizer.Step(gradFor(backend, param, 1.0))
	if got := param.Tensor().Item(); !floatEqual(got, 0.9, 1e-6) {
		t.Fatalf("step 1: got %v, want 0.9", got)
	}
	// Step 2: v = 0.9 + 1 = 1.9, x = 0.9 - 0.19 = 0.71
	optimizer.Step(gradFor(backend, param, 1.0))
	if got := param.Tensor().Item(); !floatEqual(got, 0.71, 1e-6) {
		t.Errorf("step 2: got %v, want 0.71", got)
	}
}

func TestAdamFirstStepSize(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := singleParam(backend, 1.0)

	optimizer := optim.NewAdam([]*nn.Parameter[adBackend]{param},
		optim.AdamConfig{LR: 0.1}, backend)
	optimizer.Step(gradFor(backend, param, 0.5))

	// Bias correction makes the first Adam step ≈ lr regardless of the
	// gradient magnitude.
	if got := param.Tensor().Item(); !floatEqual(got, 0.9, 1e-4) {
		t.Errorf("first Adam step: got %v, want ~0.9", got)
	}
	if optimizer.GetTimestep() != 1 {
		t.Errorf("timestep = %d, want 1", optimizer.GetTimestep())
	}
}

func TestAdamConvergesOnQuadratic(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	// Minimize f(x) = (x - 3)² starting from x = 0.
	param := singleParam(backend, 0)
	optimizer := optim.NewAdam([]*nn.Parameter[adBackend]{param},
		optim.AdamConfig{LR: 0.1, Betas: [2]float32{0.5, 0.999}}, backend)

	for i := 0; i < 300; i++ {
		tape.Clear()
		tape.StartRecording()
		diff := param.Tensor().AddScalar(-3)
		loss := diff.Mul(diff).Sum()
		grads := autodiff.Backward(loss, backend)
		tape.StopRecording()
		optimizer.Step(grads)
	}
	tape.Clear()

	if got := param.Tensor().Item(); !floatEqual(got, 3, 0.05) {
		t.Errorf("Adam converged to %v, want ~3", got)
	}
}

func TestAdamSkipsParamsWithoutGradient(t *testing.T) {
	backend := autodiff.New(cpu.New())
	updated := singleParam(backend, 1.0)
	untouched := singleParam(backend, 5.0)

	optimizer := optim.NewAdam([]*nn.Parameter[adBackend]{updated, untouched},
		optim.AdamConfig{LR: 0.1}, backend)
	optimizer.Step(gradFor(backend, updated, 1.0))

	if got := untouched.Tensor().Item(); got != 5.0 {
		t.Errorf("parameter without gradient moved to %v", got)
	}
	if got := updated.Tensor().Item(); got == 1.0 {
		t.Error("parameter with gradient did not move")
	}
}

func TestAdamStateDictRoundTrip(t *testing.T) {
	backend := autodiff.New(cpu.New())

	param := singleParam(backend, 1.0)
	src := optim.NewAdam([]*nn.Parameter[adBackend]{param},
		optim.AdamConfig{LR: 0.1}, backend)
	src.Step(gradFor(backend, param, 0.5))
	src.Step(gradFor(backend, param, -0.2))

	param2 := singleParam(backend, param.Tensor().Item())
	dst := optim.NewAdam([]*nn.Parameter[adBackend]{param2},
		optim.AdamConfig{LR: 0.1}, backend)
	if err := dst.LoadStateDict(src.StateDict()); err != nil {
		t.Fatalf("LoadStateDict: %v", err)
	}
	if dst.GetTimestep() != src.GetTimestep() {
		t.Errorf("timestep = %d, want %d", dst.GetTimestep(), src.GetTimestep())
	}

	// Identical state and identical gradients must produce identical steps.
	src.Step(gradFor(backend, param, 0.3))
	dst.Step(gradFor(backend, param2, 0.3))
	if a, b := param.Tensor().Item(), param2.Tensor().Item(); !floatEqual(a, b, 1e-7) {
		t.Errorf("restored optimizer diverged: %v vs %v", a, b)
	}
}

func TestClampParams(t *testing.T) {
	backend := autodiff.New(cpu.New())

	x, _ := tensor.FromSlice([]float32{-0.5, -0.005, 0, 0.005, 0.5}, tensor.Shape{5}, backend)
	param := nn.NewParameter("w", x)

	optim.ClampParams([]*nn.Parameter[adBackend]{param}, -0.01, 0.01)
	expected := []float32{-0.01, -0.005, 0, 0.005, 0.01}
	for i, v := range param.Tensor().Data() {
		if v != expected[i] {
			t.Errorf("clamped[%d] = %v, want %v", i, v, expected[i])
		}
	}
}

func TestSetLR(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := singleParam(backend, 1.0)

	var opts []optim.Optimizer
	opts = append(opts,
		optim.NewAdam([]*nn.Parameter[adBackend]{param}, optim.AdamConfig{LR: 0.2}, backend),
		optim.NewSGD([]*nn.Parameter[adBackend]{param}, optim.SGDConfig{LR: 0.2}, backend))

	for _, o := range opts {
		if o.GetLR() != 0.2 {
			t.Errorf("GetLR = %v, want 0.2", o.GetLR())
		}
		o.SetLR(0.02)
		if o.GetLR() != 0.02 {
			t.Errorf("SetLR not applied: %v", o.GetLR())
		}
	}
}
