package loss

import (
	"math"
	"testing"
)

// Reference values from torch.nn.functional with reduction="mean":
//
//	binary_cross_entropy_with_logits(x, y) and binary_cross_entropy(p, y), gradients via autograd.
var (
	refLogits = []float64{-2, -0.5, 0, 0.5, 2}
	refProbs  = []float64{0.1, 0.4, 0.5, 0.8, 0.95}
	refLabels = []float64{0, 1, 1, 0, 1}
)

func TestBCEWithLogitsAgainstTorchReference(t *testing.T) {
	l := BCEWithLogitsLoss{}
	if got, want := l.Forward(refLogits, refLabels), 0.5790314342012208; math.Abs(got-want) > 1e-12 {
		t.Errorf("loss = %v, torch gives %v", got, want)
	}
	want := []float64{0.02384058440442351, -0.12449186624037092, -0.1, 0.12449186624037092, -0.023840584404423538}
	for i, g := range l.Backward(refLogits, refLabels) {
		if math.Abs(g-want[i]) > 1e-12 {
			t.Errorf("grad[%d] = %v, torch gives %v", i, g, want[i])
		}
	}
}

func TestBCEAgainstTorchReference(t *testing.T) {
	l := BCELoss{}
	if got, want := l.Forward(refProbs, refLabels), 0.6751059269827155; math.Abs(got-want) > 1e-12 {
		t.Errorf("loss = %v, torch gives %v", got, want)
	}
	want := []float64{0.2222222222222222, -0.5, -0.4, 1.0, -0.21052631578947367}
	for i, g := range l.Backward(refProbs, refLabels) {
		if math.Abs(g-want[i]) > 1e-9 {
			t.Errorf("grad[%d] = %v, torch gives %v", i, g, want[i])
		}
	}
}

// TestSingleLogitReference covers the one-output case the classifier trains with.
func TestSingleLogitReference(t *testing.T) {
	for _, tc := range []struct{ x, y, want float64 }{
		{1, 1, 0.31326168751822286},
		{-3, 1, 3.048587351573742},
	} {
		if got := (BCEWithLogitsLoss{}).Forward([]float64{tc.x}, []float64{tc.y}); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("loss(%v, %v) = %v, torch gives %v", tc.x, tc.y, got, tc.want)
		}
	}
}
