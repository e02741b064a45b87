// Package opt provides optimization algorithms, gradient clipping and learning rate schedules.
package opt

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Optimizer updates network parameters based on gradients.
type Optimizer interface {
	// StepInPlace updates params in-place from gradients. slot identifies the parameter group
	// (one per layer) so stateful optimizers can keep per-group state; a given slot must always
	// be called with slices of the same length.
	StepInPlace(slot int, params, gradients []float64)

	LearningRate() float64
	SetLearningRate(lr float64)
}

// Names accepted by New.
const (
	NameAdam = "adam"
	NameSGD  = "sgd"
)

// New returns the optimizer registered under name.
func New(name string, learningRate float64) (Optimizer, error) {
	switch name {
	case "", NameAdam:
		return NewAdam(learningRate), nil
	case NameSGD:
		return &SGD{LR: learningRate}, nil
	}
	return nil, errors.Errorf("unknown optimizer %q", name)
}

// SGD (Stochastic Gradient Descent) optimizer.
type SGD struct {
	LR float64
}

// StepInPlace updates params in-place: params = params - lr * gradients
func (s *SGD) StepInPlace(_ int, params, gradients []float64) {
	floats.AddScaled(params, -s.LR, gradients)
}

// LearningRate implements Optimizer.
func (s *SGD) LearningRate() float64 { return s.LR }

// SetLearningRate implements Optimizer.
func (s *SGD) SetLearningRate(lr float64) { s.LR = lr }

// Adam optimizer, with bias-corrected first and second moment estimates per parameter.
type Adam struct {
	LR      float64
	Beta1   float64 // Exponential decay rate for first moment
	Beta2   float64 // Exponential decay rate for second moment
	Epsilon float64 // Small constant for numerical stability

	states map[int]*adamState
}

type adamState struct {
	m, v []float64
	t    int
}

// NewAdam creates a new Adam optimizer with default values.
func NewAdam(learningRate float64) *Adam {
	return &Adam{
		LR:      learningRate,
		Beta1:   0.9,
		Beta2:   0.999,
		Epsilon: 1e-8,
		states:  make(map[int]*adamState),
	}
}

// StepInPlace updates params in-place using Adam.
func (a *Adam) StepInPlace(slot int, params, gradients []float64) {
	if len(params) != len(gradients) {
		panic("opt: Adam params and gradients must have same length")
	}
	if a.states == nil {
		a.states = make(map[int]*adamState)
	}
	st, ok := a.states[slot]
	if !ok {
		st = &adamState{m: make([]float64, len(params)), v: make([]float64, len(params))}
		a.states[slot] = st
	}
	if len(st.m) != len(params) {
		panic("opt: Adam slot reused with a different parameter count")
	}

	st.t++
	b1, b2 := a.Beta1, a.Beta2
	correction1 := 1 - math.Pow(b1, float64(st.t))
	correction2 := 1 - math.Pow(b2, float64(st.t))
	stepSize := a.LR / correction1
	for i, g := range gradients {
		st.m[i] = b1*st.m[i] + (1-b1)*g
		st.v[i] = b2*st.v[i] + (1-b2)*g*g
		params[i] -= stepSize * st.m[i] / (math.Sqrt(st.v[i]/correction2) + a.Epsilon)
	}
}

// LearningRate implements Optimizer.
func (a *Adam) LearningRate() float64 { return a.LR }

// SetLearningRate implements Optimizer.
func (a *Adam) SetLearningRate(lr float64) { a.LR = lr }
