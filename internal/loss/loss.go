// Package loss provides the binary classification losses used to train the network.
package loss

import (
	"math"

	"github.com/pkg/errors"
	"github.com/ravensaid/ravensaid/internal/activations"
)

// BackwardInPlacer is an optional interface for loss functions that support
// in-place gradient computation to avoid allocations.
type BackwardInPlacer interface {
	BackwardInPlace(yPred, yTrue, grad []float64)
}

// Loss is a loss function with derivative.
type Loss interface {
	// Forward computes the loss between predicted and true values.
	Forward(yPred, yTrue []float64) float64

	// Backward computes the gradient of the loss w.r.t. prediction.
	// This creates a new slice and should be avoided in hot loops.
	Backward(yPred, yTrue []float64) []float64
}

// Names accepted by ByName.
const (
	NameBCEWithLogits = "bce_with_logits"
	NameBCE           = "bce"
)

// ByName returns the loss to apply to raw network logits. "bce" is plain cross-entropy on the
// sigmoid of the logit, "bce_with_logits" is the fused, numerically stable form.
func ByName(name string) (Loss, error) {
	switch name {
	case "", NameBCEWithLogits:
		return BCEWithLogitsLoss{}, nil
	case NameBCE:
		return OnSigmoid{Inner: BCELoss{}}, nil
	}
	return nil, errors.Errorf("unknown loss %q", name)
}

func checkLengths(name string, a, b []float64) int {
	if len(a) != len(b) {
		panic(name + ": prediction and target must have same length")
	}
	return len(a)
}

// BCELoss (Binary Cross Entropy) loss.
// Requires predictions to be in range (0, 1); they are clamped to [eps, 1-eps].
type BCELoss struct{}

const bceEpsilon = 1e-10

func clampProbability(p float64) float64 {
	return math.Min(math.Max(p, bceEpsilon), 1-bceEpsilon)
}

// Forward computes binary cross entropy: -(1/n) * sum(y*log(p) + (1-y)*log(1-p))
func (b BCELoss) Forward(yPred, yTrue []float64) float64 {
	n := checkLengths("BCELoss", yPred, yTrue)
	var sum float64
	for i := 0; i < n; i++ {
		pred := clampProbability(yPred[i])
		sum += yTrue[i]*math.Log(pred) + (1.0-yTrue[i])*math.Log(1.0-pred)
	}
	return -sum / float64(n)
}

// Backward computes gradient for BCE loss: (pred - y) / (pred * (1-pred)) / n
func (b BCELoss) Backward(yPred, yTrue []float64) []float64 {
	grad := make([]float64, len(yPred))
	b.BackwardInPlace(yPred, yTrue, grad)
	return grad
}

// BackwardInPlace computes gradient and stores it in the grad slice.
func (b BCELoss) BackwardInPlace(yPred, yTrue, grad []float64) {
	n := checkLengths("BCELoss", yPred, yTrue)
	checkLengths("BCELoss", yPred, grad)
	for i := 0; i < n; i++ {
		pred := clampProbability(yPred[i])
		grad[i] = (pred - yTrue[i]) / (pred * (1.0 - pred) * float64(n))
	}
}

// BCEWithLogitsLoss combines BCE loss with sigmoid for numerical stability.
type BCEWithLogitsLoss struct{}

// Forward computes max(x, 0) - x*y + log(1 + exp(-|x|)), averaged.
func (b BCEWithLogitsLoss) Forward(yPred, yTrue []float64) float64 {
	n := checkLengths("BCEWithLogitsLoss", yPred, yTrue)
	var sum float64
	for i := 0; i < n; i++ {
		x, y := yPred[i], yTrue[i]
		sum += math.Max(x, 0) - x*y + math.Log1p(math.Exp(-math.Abs(x)))
	}
	return sum / float64(n)
}

// Backward computes gradient for BCEWithLogitsLoss: (sigmoid(x) - y) / n
func (b BCEWithLogitsLoss) Backward(yPred, yTrue []float64) []float64 {
	grad := make([]float64, len(yPred))
	b.BackwardInPlace(yPred, yTrue, grad)
	return grad
}

// BackwardInPlace computes gradient and stores it in the grad slice.
func (b BCEWithLogitsLoss) BackwardInPlace(yPred, yTrue, grad []float64) {
	n := checkLengths("BCEWithLogitsLoss", yPred, yTrue)
	checkLengths("BCEWithLogitsLoss", yPred, grad)
	for i := 0; i < n; i++ {
		grad[i] = (activations.Logistic(yPred[i]) - yTrue[i]) / float64(n)
	}
}

// OnSigmoid applies a probability loss to the sigmoid of logits, chaining the sigmoid
// derivative into the gradient.
type OnSigmoid struct {
	Inner Loss
}

func sigmoidAll(logits []float64) []float64 {
	p := make([]float64, len(logits))
	for i, x := range logits {
		p[i] = activations.Logistic(x)
	}
	return p
}

// Forward computes Inner(sigmoid(yPred), yTrue).
func (s OnSigmoid) Forward(yPred, yTrue []float64) float64 {
	return s.Inner.Forward(sigmoidAll(yPred), yTrue)
}

// Backward computes dInner/dp * p * (1 - p).
func (s OnSigmoid) Backward(yPred, yTrue []float64) []float64 {
	p := sigmoidAll(yPred)
	grad := s.Inner.Backward(p, yTrue)
	for i := range grad {
		grad[i] *= p[i] * (1 - p[i])
	}
	return grad
}
