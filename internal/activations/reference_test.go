package activations

import (
	"math"
	"testing"
)

// Reference values computed with torch (float64):
//
//	torch.sigmoid(x), torch.tanh(x), torch.relu(x) and their autograd derivatives.
var referenceInputs = []float64{-3, -2, -1, -0.5, 0, 0.5, 1, 2, 3}

var references = []struct {
	name       string
	act        Activation
	values     []float64
	derivative []float64
}{
	{
		name: "sigmoid",
		act:  Sigmoid{},
		values: []float64{0.04742587317474628, 0.11920292202211755, 0.2689414213699951, 0.3775406687981454,
			0.5, 0.6224593312018546, 0.7310585786300049, 0.8807970779778823, 0.9525741268252538},
		derivative: []float64{0.045176659730912, 0.10499358540350658, 0.19661193324148185, 0.2350037122015942,
			0.25, 0.2350037122015942, 0.19661193324148185, 0.10499358540350658, 0.045176659730912},
	},
	{
		name: "tanh",
		act:  Tanh{},
		values: []float64{-0.9950547536867306, -0.9640275800758169, -0.7615941559557649, -0.46211715726000974,
			0, 0.46211715726000974, 0.7615941559557649, 0.9640275800758169, 0.9950547536867306},
		derivative: []float64{0.009866037165440211, 0.07065082484702827, 0.4199743416140261, 0.7864477325343538,
			1, 0.7864477325343538, 0.4199743416140261, 0.07065082484702827, 0.009866037165440211},
	},
	{
		name:       "relu",
		act:        ReLU{},
		values:     []float64{0, 0, 0, 0, 0, 0.5, 1, 2, 3},
		derivative: []float64{0, 0, 0, 0, 0, 1, 1, 1, 1},
	},
	{
		name:       "linear",
		act:        Linear{},
		values:     referenceInputs,
		derivative: []float64{1, 1, 1, 1, 1, 1, 1, 1, 1},
	},
}

func TestAgainstTorchReference(t *testing.T) {
	for _, ref := range references {
		t.Run(ref.name, func(t *testing.T) {
			for i, x := range referenceInputs {
				if got := ref.act.Activate(x); math.Abs(got-ref.values[i]) > 1e-10 {
					t.Errorf("%s(%v) = %v, torch gives %v", ref.name, x, got, ref.values[i])
				}
				if got := ref.act.Derivative(x); math.Abs(got-ref.derivative[i]) > 1e-9 {
					t.Errorf("%s'(%v) = %v, torch gives %v", ref.name, x, got, ref.derivative[i])
				}
			}
		})
	}
}

func TestSymmetries(t *testing.T) {
	tanh := Tanh{}
	for _, x := range referenceInputs {
		if sum := Logistic(x) + Logistic(-x); math.Abs(sum-1) > 1e-12 {
			t.Errorf("sigmoid(%v) + sigmoid(%v) = %v, want 1", x, -x, sum)
		}
		if sum := tanh.Activate(x) + tanh.Activate(-x); math.Abs(sum) > 1e-12 {
			t.Errorf("tanh(%v) + tanh(%v) = %v, want 0", x, -x, sum)
		}
	}
}
