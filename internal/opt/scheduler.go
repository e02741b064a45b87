package opt

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

// Scheduler defines the interface for learning rate schedulers. Step is called once at the
// end of every epoch.
type Scheduler interface {
	Step()
	StepWithLoss(loss float64)
	LR() float64
}

// BaseScheduler provides default implementations for Scheduler.
type BaseScheduler struct{}

func (s BaseScheduler) Step()                     {}
func (s BaseScheduler) StepWithLoss(loss float64) {}

// ScheduleConfig describes a learning rate schedule in a form that can live in a config file.
type ScheduleConfig struct {
	// Kind is one of "constant", "multistep", "step", "exponential" or "plateau".
	Kind string `toml:"kind"`
	// Gamma is the multiplicative factor applied at each decay.
	Gamma float64 `toml:"gamma"`
	// Milestones are fractions of the total epoch count at which "multistep" decays.
	Milestones []float64 `toml:"milestones"`
	// StepSize is the decay period in epochs for "step", and the patience for "plateau".
	StepSize int `toml:"step_size"`
	// MinLR bounds "plateau" decays from below.
	MinLR float64 `toml:"min_lr"`
}

// NewScheduler builds the scheduler described by cfg for a run of totalEpochs epochs.
func NewScheduler(optimizer Optimizer, cfg ScheduleConfig, totalEpochs int) (Scheduler, error) {
	switch cfg.Kind {
	case "", "constant":
		return &constantLR{optimizer: optimizer}, nil
	case "multistep":
		return NewMultiStepLRFractions(optimizer, totalEpochs, cfg.Milestones, cfg.Gamma), nil
	case "step":
		if cfg.StepSize <= 0 {
			return nil, errors.Errorf("step schedule needs a positive step size, got %d", cfg.StepSize)
		}
		return NewStepLR(optimizer, cfg.StepSize, cfg.Gamma), nil
	case "exponential":
		return NewExponentialLR(optimizer, cfg.Gamma), nil
	case "plateau":
		return NewReduceLROnPlateau(optimizer, cfg.Gamma, max(cfg.StepSize, 1), 1e-4, cfg.MinLR), nil
	}
	return nil, errors.Errorf("unknown learning rate schedule %q", cfg.Kind)
}

type constantLR struct {
	BaseScheduler
	optimizer Optimizer
}

func (s *constantLR) LR() float64 { return s.optimizer.LearningRate() }

// MultiStepLR multiplies the learning rate by gamma once the epoch count reaches each milestone.
type MultiStepLR struct {
	BaseScheduler
	optimizer  Optimizer
	milestones []int
	gamma      float64
	lastEpoch  int
}

// NewMultiStepLR decays at the given epoch numbers.
func NewMultiStepLR(optimizer Optimizer, milestones []int, gamma float64) *MultiStepLR {
	ms := append([]int(nil), milestones...)
	sort.Ints(ms)
	return &MultiStepLR{optimizer: optimizer, milestones: ms, gamma: gamma}
}

// NewMultiStepLRFractions decays at fractions of totalEpochs, e.g. 0.5 for half way.
func NewMultiStepLRFractions(optimizer Optimizer, totalEpochs int, fractions []float64, gamma float64) *MultiStepLR {
	ms := make([]int, 0, len(fractions))
	for _, f := range fractions {
		ms = append(ms, int(math.Floor(f*float64(totalEpochs))))
	}
	return NewMultiStepLR(optimizer, ms, gamma)
}

func (s *MultiStepLR) Step() {
	s.lastEpoch++
	for _, m := range s.milestones {
		if m == s.lastEpoch {
			s.optimizer.SetLearningRate(s.optimizer.LearningRate() * s.gamma)
		}
	}
}

func (s *MultiStepLR) LR() float64 { return s.optimizer.LearningRate() }

// StepLR decays the learning rate by gamma every stepSize epochs.
type StepLR struct {
	BaseScheduler
	optimizer Optimizer
	stepSize  int
	gamma     float64
	lastEpoch int
}

func NewStepLR(optimizer Optimizer, stepSize int, gamma float64) *StepLR {
	return &StepLR{
		optimizer: optimizer,
		stepSize:  stepSize,
		gamma:     gamma,
	}
}

func (s *StepLR) Step() {
	s.lastEpoch++
	if s.lastEpoch%s.stepSize == 0 {
		s.optimizer.SetLearningRate(s.optimizer.LearningRate() * s.gamma)
	}
}

func (s *StepLR) LR() float64 { return s.optimizer.LearningRate() }

// ExponentialLR decays the learning rate by gamma every epoch.
type ExponentialLR struct {
	BaseScheduler
	optimizer Optimizer
	gamma     float64
}

func NewExponentialLR(optimizer Optimizer, gamma float64) *ExponentialLR {
	return &ExponentialLR{optimizer: optimizer, gamma: gamma}
}

func (s *ExponentialLR) Step() {
	s.optimizer.SetLearningRate(s.optimizer.LearningRate() * s.gamma)
}

func (s *ExponentialLR) LR() float64 { return s.optimizer.LearningRate() }

// ReduceLROnPlateau reduces learning rate when a metric has stopped improving.
type ReduceLROnPlateau struct {
	BaseScheduler
	optimizer Optimizer
	factor    float64
	patience  int
	threshold float64
	cooldown  int
	minLR     float64

	bestLoss        float64
	numBadEpochs    int
	cooldownCounter int
}

func NewReduceLROnPlateau(optimizer Optimizer, factor float64, patience int, threshold float64, minLR float64) *ReduceLROnPlateau {
	return &ReduceLROnPlateau{
		optimizer: optimizer,
		factor:    factor,
		patience:  patience,
		threshold: threshold,
		minLR:     minLR,
		bestLoss:  math.MaxFloat64,
	}
}

func (s *ReduceLROnPlateau) StepWithLoss(currentLoss float64) {
	if s.cooldownCounter > 0 {
		s.cooldownCounter--
		return
	}

	if currentLoss < s.bestLoss-s.threshold {
		s.bestLoss = currentLoss
		s.numBadEpochs = 0
	} else {
		s.numBadEpochs++
	}

	if s.numBadEpochs >= s.patience {
		s.optimizer.SetLearningRate(math.Max(s.optimizer.LearningRate()*s.factor, s.minLR))
		s.numBadEpochs = 0
		s.cooldownCounter = s.cooldown
	}
}

func (s *ReduceLROnPlateau) LR() float64 { return s.optimizer.LearningRate() }
