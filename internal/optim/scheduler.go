package optim

import "fmt"

// Learning-rate policy identifiers.
const (
	PolicyLambda = "lambda"
	PolicyStep   = "step"
)

// Scheduler adjusts an optimizer's learning rate once per epoch.
type Scheduler interface {
	// Step advances the schedule by one epoch and applies the new rate.
	Step()

	// LR returns the learning rate the schedule currently prescribes.
	LR() float32
}

// LambdaScheduler keeps the initial rate for nIter epochs, then decays it
// linearly to zero over the following nIterDecay epochs. This is the usual
// pix2pix schedule.
type LambdaScheduler struct {
	opt        Optimizer
	initialLR  float32
	nIter      int
	nIterDecay int
	epoch      int
}

// NewLambdaScheduler creates a linear-decay schedule around an optimizer.
func NewLambdaScheduler(opt Optimizer, nIter, nIterDecay int) *LambdaScheduler {
	return &LambdaScheduler{
		opt:        opt,
		initialLR:  opt.GetLR(),
		nIter:      nIter,
		nIterDecay: nIterDecay,
	}
}

// Step advances one epoch and applies the decayed rate.
func (s *LambdaScheduler) Step() {
	s.epoch++
	s.opt.SetLR(s.LR())
}

// LR returns the rate for the current epoch count.
func (s *LambdaScheduler) LR() float32 {
	if s.epoch <= s.nIter || s.nIterDecay == 0 {
		return s.initialLR
	}
	over := s.epoch - s.nIter
	if over >= s.nIterDecay {
		return 0
	}
	return s.initialLR * float32(s.nIterDecay-over) / float32(s.nIterDecay)
}

// StepScheduler multiplies the rate by 0.1 every decayIters epochs.
type StepScheduler struct {
	opt        Optimizer
	initialLR  float32
	decayIters int
	epoch      int
}

// NewStepScheduler creates a step-decay schedule around an optimizer.
func NewStepScheduler(opt Optimizer, decayIters int) *StepScheduler {
	return &StepScheduler{
		opt:        opt,
		initialLR:  opt.GetLR(),
		decayIters: decayIters,
	}
}

// Step advances one epoch and applies the decayed rate.
func (s *StepScheduler) Step() {
	s.epoch++
	s.opt.SetLR(s.LR())
}

// LR returns the rate for the current epoch count.
func (s *StepScheduler) LR() float32 {
	if s.decayIters <= 0 {
		return s.initialLR
	}
	lr := s.initialLR
	for i := s.decayIters; i <= s.epoch; i += s.decayIters {
		lr *= 0.1
	}
	return lr
}

// NewScheduler builds the named learning-rate policy for an optimizer.
func NewScheduler(opt Optimizer, policy string, nIter, nIterDecay, decayIters int) (Scheduler, error) {
	switch policy {
	case PolicyLambda:
		return NewLambdaScheduler(opt, nIter, nIterDecay), nil
	case PolicyStep:
		return NewStepScheduler(opt, decayIters), nil
	default:
		return nil, fmt.Errorf("learning rate policy %q not implemented", policy)
	}
}
