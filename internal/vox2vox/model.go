package vox2vox

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/gancer-ml/gancer/internal/autodiff"
	"github.com/gancer-ml/gancer/internal/config"
	"github.com/gancer-ml/gancer/internal/nn"
	"github.com/gancer-ml/gancer/internal/optim"
	"github.com/gancer-ml/gancer/internal/pool"
	"github.com/gancer-ml/gancer/internal/serialization"
	"github.com/gancer-ml/gancer/internal/tensor"
)

// Input is the per-iteration batch the driver hands to SetInput: paired
// volumes for both domains plus their source paths.
type Input[BK autodiff.BackwardCapable] struct {
	A      *tensor.Tensor[float32, BK]
	B      *tensor.Tensor[float32, BK]
	APaths []string
	BPaths []string
}

// StepResult carries the four per-iteration losses out of
// OptimizeParameters.
type StepResult struct {
	GGAN  float32 // adversarial generator loss
	GL1   float32 // weighted reconstruction loss
	DReal float32 // discriminator loss on real pairs
	DFake float32 // discriminator loss on pooled fake pairs
}

// Error is one named loss value; CurrentErrors returns them in reporting
// order.
type Error struct {
	Name  string
	Value float32
}

// Model orchestrates conditional volumetric GAN training.
//
// Per-iteration lifecycle: SetInput → Forward (or Test) →
// OptimizeParameters → CurrentErrors/CurrentVisuals; Save/UpdateLearningRate
// between epochs. The alternating-update protocol and the pooled,
// gradient-detached fake pairs are the heart of the trainer; everything else
// wires networks, optimizers, and checkpoints around it.
type Model[B autodiff.BackwardCapable] struct {
	opt     config.Options
	backend B

	netG nn.Module[B]
	netD nn.Module[B] // nil outside training

	optG   *optim.Adam[B]
	optD   *optim.Adam[B]
	schedG optim.Scheduler
	schedD optim.Scheduler

	fakeABPool     *pool.ImagePool[B]
	criterionGAN   GANCriterion[B]
	criterionRecon ReconCriterion[B]

	inputA, inputB *tensor.Tensor[float32, B]
	realA, fakeB   *tensor.Tensor[float32, B]
	realB          *tensor.Tensor[float32, B]
	imagePaths     []string

	noImg bool
	last  StepResult
}

// NewModel builds the networks, losses, optimizers, and schedulers from the
// options.
//
// Construction fails before any optimizer state exists when the options name
// an unknown reconstruction loss, norm, init scheme, or architecture. When
// not training, or when resuming, network weights are loaded from
// `<checkpoints_dir>/<name>/<which_epoch>_net_<G|D>.gan`.
func NewModel[B autodiff.BackwardCapable](opt config.Options, backend B) (*Model[B], error) {
	if err := opt.Validate(); err != nil {
		return nil, err
	}

	m := &Model[B]{
		opt:     opt,
		backend: backend,
		noImg:   opt.NoImg && opt.OutputNC == 1,
	}

	netG, err := nn.DefineG(opt.InputNC, opt.OutputNC, opt.NGF,
		opt.WhichModelNetG, opt.Norm, !opt.NoDropout, opt.InitType, opt.Seed, backend)
	if err != nil {
		return nil, err
	}
	m.netG = netG

	if opt.IsTrain {
		// The vanilla objective needs probabilities from the
		// discriminator; least-squares and Wasserstein read raw scores.
		useSigmoid := opt.NoLsgan && !opt.Wasserstein
		netD, err := nn.DefineD(opt.InputNC+opt.OutputNC, opt.NDF,
			opt.WhichModelNetD, opt.NLayersD, opt.Norm, useSigmoid, opt.InitType, opt.Seed+1, backend)
		if err != nil {
			return nil, err
		}
		m.netD = netD
	}

	if !opt.IsTrain || opt.ContinueTrain {
		if err := m.loadNetwork(m.netG, "G", opt.WhichEpoch); err != nil {
			return nil, err
		}
		if opt.IsTrain {
			if err := m.loadNetwork(m.netD, "D", opt.WhichEpoch); err != nil {
				return nil, err
			}
		}
	}

	if opt.IsTrain {
		m.criterionRecon, err = NewReconCriterion[B](opt.ReconLoss)
		if err != nil {
			return nil, err
		}
		m.criterionGAN = NewGANCriterion[B](opt.Wasserstein, !opt.NoLsgan)

		rng := rand.New(rand.NewPCG(opt.Seed, opt.Seed^0x9e3779b97f4a7c15))
		m.fakeABPool = pool.New[B](opt.PoolSize, rng)

		m.optG = optim.NewAdam(m.netG.Parameters(), optim.AdamConfig{
			LR:    opt.LR,
			Betas: [2]float32{opt.Beta1, 0.999},
		}, backend)
		m.optD = optim.NewAdam(m.netD.Parameters(), optim.AdamConfig{
			LR:    opt.LR,
			Betas: [2]float32{opt.Beta1, 0.999},
		}, backend)

		m.schedG, err = optim.NewScheduler(m.optG, opt.LRPolicy, opt.NIter, opt.NIterDecay, opt.LRDecayIters)
		if err != nil {
			return nil, err
		}
		m.schedD, err = optim.NewScheduler(m.optD, opt.LRPolicy, opt.NIter, opt.NIterDecay, opt.LRDecayIters)
		if err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Name returns the model identifier.
func (m *Model[B]) Name() string {
	return "vox2vox"
}

// NetG returns the generator.
func (m *Model[B]) NetG() nn.Module[B] {
	return m.netG
}

// NetD returns the discriminator, or nil outside training.
func (m *Model[B]) NetD() nn.Module[B] {
	return m.netD
}

// FakeB returns the generator output from the last Forward/Test call.
func (m *Model[B]) FakeB() *tensor.Tensor[float32, B] {
	return m.fakeB
}

// RealA returns the condition volume from the last Forward/Test call.
func (m *Model[B]) RealA() *tensor.Tensor[float32, B] {
	return m.realA
}

// RealB returns the target volume from the last Forward/Test call.
func (m *Model[B]) RealB() *tensor.Tensor[float32, B] {
	return m.realB
}

// SetInput stores the next batch. The direction option decides which side
// conditions the generator: with AtoB the generator maps A volumes to B
// volumes, with BtoA the roles swap.
func (m *Model[B]) SetInput(input Input[B]) {
	if m.opt.Direction == config.DirectionAtoB {
		m.inputA, m.inputB = input.A, input.B
		m.imagePaths = input.APaths
	} else {
		m.inputA, m.inputB = input.B, input.A
		m.imagePaths = input.BPaths
	}
}

// Forward runs the generator on the current input. Call SetInput first.
func (m *Model[B]) Forward() {
	m.realA = m.inputA
	m.fakeB = m.netG.Forward(m.realA)
	m.realB = m.inputB
}

// Test runs the generator without recording backprop state.
func (m *Model[B]) Test() {
	tape := m.backend.Tape()
	wasRecording := tape.IsRecording()
	tape.StopRecording()
	defer func() {
		if wasRecording {
			tape.StartRecording()
		}
	}()
	m.Forward()
}

// GetImagePaths returns the source paths of the current batch's condition
// side.
func (m *Model[B]) GetImagePaths() []string {
	return m.imagePaths
}

// backwardD scores the discriminator on a pooled fake pair and on the real
// pair, and backpropagates half their sum.
//
// The fake pair is detached before it reaches the pool: gradient must stop
// at the generator output so the discriminator update cannot move generator
// weights.
func (m *Model[B]) backwardD() (dFake, dReal float32, grads map[*tensor.RawTensor]*tensor.RawTensor) {
	fakeAB := tensor.Cat([]*tensor.Tensor[float32, B]{m.realA, m.fakeB}, 1).Detach()
	pooled := m.fakeABPool.Query(fakeAB)
	predFake := m.netD.Forward(pooled)
	lossDFake := m.criterionGAN(predFake, false)

	realAB := tensor.Cat([]*tensor.Tensor[float32, B]{m.realA, m.realB}, 1)
	predReal := m.netD.Forward(realAB)
	lossDReal := m.criterionGAN(predReal, true)

	lossD := lossDFake.Add(lossDReal).MulScalar(0.5)
	grads = autodiff.Backward(lossD, m.backend)
	return lossDFake.Item(), lossDReal.Item(), grads
}

// backwardG scores the (possibly just-updated) discriminator on the
// gradient-connected fake pair and adds the weighted reconstruction term.
func (m *Model[B]) backwardG() (gGAN, gL1 float32, grads map[*tensor.RawTensor]*tensor.RawTensor) {
	fakeAB := tensor.Cat([]*tensor.Tensor[float32, B]{m.realA, m.fakeB}, 1)
	predFake := m.netD.Forward(fakeAB)
	lossGGAN := m.criterionGAN(predFake, true)

	lossGL1 := m.criterionRecon(m.fakeB, m.realB).MulScalar(m.opt.LambdaA)

	lossG := lossGGAN.Add(lossGL1)
	grads = autodiff.Backward(lossG, m.backend)
	return lossGGAN.Item(), lossGL1.Item(), grads
}

// OptimizeParameters runs one full training step:
//
//	forward → D backward/step → (wasserstein: clamp D) → G backward/step
//
// Both backward passes reuse the fakeB from the single forward; the
// generator's update sees the discriminator as updated this step.
func (m *Model[B]) OptimizeParameters() StepResult {
	tape := m.backend.Tape()
	tape.Clear()
	tape.StartRecording()
	defer func() {
		tape.StopRecording()
		tape.Clear()
	}()

	m.Forward()

	m.optD.ZeroGrad()
	dFake, dReal, gradsD := m.backwardD()
	m.optD.Step(gradsD)

	if m.opt.Wasserstein {
		optim.ClampParams(m.netD.Parameters(), -0.01, 0.01)
	}

	m.optG.ZeroGrad()
	gGAN, gL1, gradsG := m.backwardG()
	m.optG.Step(gradsG)

	m.last = StepResult{GGAN: gGAN, GL1: gL1, DReal: dReal, DFake: dFake}
	return m.last
}

// CurrentErrors returns the last step's losses as ordered name/value pairs.
func (m *Model[B]) CurrentErrors() []Error {
	return []Error{
		{Name: "G_GAN", Value: m.last.GGAN},
		{Name: "G_L1", Value: m.last.GL1},
		{Name: "D_real", Value: m.last.DReal},
		{Name: "D_fake", Value: m.last.DFake},
	}
}

// networkPath builds `<checkpoints_dir>/<name>/<label>_net_<net>.gan`.
func (m *Model[B]) networkPath(netName, label string) string {
	return filepath.Join(m.opt.CheckpointsDir, m.opt.Name,
		fmt.Sprintf("%s_net_%s.gan", label, netName))
}

// Save writes the generator and, in training mode, the discriminator under
// the given epoch label.
func (m *Model[B]) Save(label string) error {
	dir := filepath.Join(m.opt.CheckpointsDir, m.opt.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	if err := m.saveNetwork(m.netG, "G", label); err != nil {
		return err
	}
	if m.opt.IsTrain {
		if err := m.saveNetwork(m.netD, "D", label); err != nil {
			return err
		}
	}
	return nil
}

func (m *Model[B]) saveNetwork(net nn.Module[B], netName, label string) error {
	path := m.networkPath(netName, label)
	meta := map[string]string{"label": label, "model": m.Name()}
	if err := serialization.SaveStateDict(path, net.StateDict(), netName, meta); err != nil {
		return fmt.Errorf("save net %s: %w", netName, err)
	}
	return nil
}

func (m *Model[B]) loadNetwork(net nn.Module[B], netName, label string) error {
	path := m.networkPath(netName, label)
	stateDict, header, err := serialization.LoadStateDict(path, m.backend.Device())
	if err != nil {
		return fmt.Errorf("load net %s: %w", netName, err)
	}
	if header.Network != netName {
		return fmt.Errorf("load net %s: file %s holds net %q", netName, path, header.Network)
	}
	if err := net.LoadStateDict(stateDict); err != nil {
		return fmt.Errorf("load net %s: %w", netName, err)
	}
	return nil
}

// UpdateLearningRate advances both schedulers by one epoch and returns the
// new learning rate. Outside training mode there are no schedulers to
// advance; the configured rate is returned unchanged.
func (m *Model[B]) UpdateLearningRate() float32 {
	if !m.opt.IsTrain {
		return m.opt.LR
	}
	m.schedD.Step()
	m.schedG.Step()
	return m.optG.GetLR()
}
