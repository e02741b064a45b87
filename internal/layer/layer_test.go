// Package layer provides unit tests for the dense layer.
package layer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/ravensaid/ravensaid/internal/activations"
)

func TestDenseForward(t *testing.T) {
	// Simple layer: 2 inputs -> 2 outputs with identity weights
	d := NewDense(2, 2, activations.Tanh{})
	d.SetWeight(0, 0, 1.0)
	d.SetWeight(0, 1, 0.0)
	d.SetWeight(1, 0, 0.0)
	d.SetWeight(1, 1, 1.0)
	d.SetBias(0, 0.0)
	d.SetBias(1, 0.0)

	output := d.Forward([]float64{1.0, 2.0})

	if math.Abs(output[0]-math.Tanh(1.0)) > 1e-9 {
		t.Errorf("output[0] = %v, want %v", output[0], math.Tanh(1.0))
	}
	if math.Abs(output[1]-math.Tanh(2.0)) > 1e-9 {
		t.Errorf("output[1] = %v, want %v", output[1], math.Tanh(2.0))
	}
}

func TestDenseLinearForward(t *testing.T) {
	d := NewDense(3, 1, activations.Linear{})
	d.SetParams([]float64{1, -2, 0.5, 0.25})

	got := d.Forward([]float64{2, 1, 4})[0]
	if want := 2 - 2 + 2 + 0.25; math.Abs(got-want) > 1e-12 {
		t.Errorf("Forward = %v, want %v", got, want)
	}
}

// TestDenseBackwardNumeric compares analytic gradients with central differences of
// L = sum(output).
func TestDenseBackwardNumeric(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	d := NewDenseRand(4, 3, activations.Tanh{}, rng)
	x := []float64{0.3, -0.7, 1.1, 0.05}

	sumOut := func() float64 {
		s := 0.0
		for _, v := range d.Forward(x) {
			s += v
		}
		return s
	}

	sumOut()
	gradIn := append([]float64(nil), d.Backward([]float64{1, 1, 1})...)
	grads := append([]float64(nil), d.Gradients()...)

	const h = 1e-6
	params := d.Params()
	for i := range params {
		orig := params[i]
		params[i] = orig + h
		plus := sumOut()
		params[i] = orig - h
		minus := sumOut()
		params[i] = orig
		if numeric := (plus - minus) / (2 * h); math.Abs(numeric-grads[i]) > 1e-5 {
			t.Errorf("param grad[%d] = %v, numeric %v", i, grads[i], numeric)
		}
	}
	for i := range x {
		orig := x[i]
		x[i] = orig + h
		plus := sumOut()
		x[i] = orig - h
		minus := sumOut()
		x[i] = orig
		if numeric := (plus - minus) / (2 * h); math.Abs(numeric-gradIn[i]) > 1e-5 {
			t.Errorf("input grad[%d] = %v, numeric %v", i, gradIn[i], numeric)
		}
	}
}

func TestDenseParamsAndSetParams(t *testing.T) {
	d := NewDense(3, 2, activations.Tanh{})

	if got, want := len(d.Params()), 3*2+2; got != want {
		t.Fatalf("params length = %d, want %d", got, want)
	}

	newParams := make([]float64, 8)
	for i := range newParams {
		newParams[i] = float64(i) * 0.1
	}
	d.SetParams(newParams)

	for i, p := range d.Params() {
		if math.Abs(p-newParams[i]) > 1e-12 {
			t.Errorf("params[%d] = %v, want %v", i, p, newParams[i])
		}
	}
	if w := d.Weights(); len(w) != 6 || w[5] != newParams[5] {
		t.Errorf("Weights() = %v", w)
	}
	if b := d.Biases(); len(b) != 2 || b[1] != newParams[7] {
		t.Errorf("Biases() = %v", b)
	}
}

func TestDenseParamsAlias(t *testing.T) {
	d := NewDense(2, 1, activations.Linear{})
	d.Params()[0] = 42
	if d.Weight(0, 0) != 42 {
		t.Errorf("Params() does not alias layer storage")
	}
}

func TestDenseSetParamsLengthMismatch(t *testing.T) {
	d := NewDense(2, 2, activations.Linear{})
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for parameter count mismatch")
		}
	}()
	d.SetParams([]float64{1, 2})
}

func TestDenseSeededInitIsReproducible(t *testing.T) {
	a := NewDenseRand(16, 4, nil, rand.New(rand.NewSource(1)))
	b := NewDenseRand(16, 4, nil, rand.New(rand.NewSource(1)))
	for i := range a.Params() {
		if a.Params()[i] != b.Params()[i] {
			t.Fatalf("param %d differs: %v vs %v", i, a.Params()[i], b.Params()[i])
		}
	}
	limit := math.Sqrt(2.0 / 20.0)
	for _, w := range a.Weights() {
		if math.Abs(w) > limit {
			t.Errorf("weight %v outside Xavier range %v", w, limit)
		}
	}
	if _, ok := a.Activation().(activations.Linear); !ok {
		t.Errorf("nil activation should default to Linear, got %T", a.Activation())
	}
}

func TestDenseInSizeAndOutSize(t *testing.T) {
	d := NewDense(10, 5, activations.Tanh{})
	if d.InSize() != 10 {
		t.Errorf("InSize() = %d, want 10", d.InSize())
	}
	if d.OutSize() != 5 {
		t.Errorf("OutSize() = %d, want 5", d.OutSize())
	}
}
