// Package layer provides neural network layer implementations.
package layer

import (
	"math"
	"math/rand"

	"github.com/ravensaid/ravensaid/internal/activations"
	"gonum.org/v1/gonum/floats"
)

// Layer is a neural network layer.
type Layer interface {
	Forward(x []float64) []float64
	// Backward takes dL/d(output) of the last Forward call, stores the parameter gradients
	// and returns dL/d(input).
	Backward(grad []float64) []float64
	// Params returns the parameters flattened. The slice aliases the layer storage, so
	// in-place updates by an optimizer take effect immediately.
	Params() []float64
	SetParams([]float64)
	// Gradients returns the gradients of the last Backward call, aliased like Params.
	Gradients() []float64
	InSize() int
	OutSize() int
}

// Dense is a fully connected layer.
//
// Weights and biases live in one contiguous slice: weights first, row-major [out * in] so the
// weight for output o and input i is at params[o*in + i], then the out biases. Gradients use
// the same layout.
type Dense struct {
	params  []float64
	grads   []float64
	act     activations.Activation
	inSize  int
	outSize int

	// Reusable buffers
	inputBuf  []float64
	outputBuf []float64
	preActBuf []float64
	gradInBuf []float64
	dzBuf     []float64
}

// NewDense creates a dense layer initialized from the global random source.
func NewDense(in, out int, act activations.Activation) *Dense {
	return NewDenseRand(in, out, act, nil)
}

// NewDenseRand creates a dense layer initialized from rng, or from the global random source
// when rng is nil.
func NewDenseRand(in, out int, act activations.Activation, rng *rand.Rand) *Dense {
	if act == nil {
		act = activations.Linear{}
	}
	uniform := rand.Float64
	if rng != nil {
		uniform = rng.Float64
	}

	d := &Dense{
		params:    make([]float64, out*in+out),
		grads:     make([]float64, out*in+out),
		act:       act,
		inSize:    in,
		outSize:   out,
		inputBuf:  make([]float64, in),
		outputBuf: make([]float64, out),
		preActBuf: make([]float64, out),
		gradInBuf: make([]float64, in),
		dzBuf:     make([]float64, out),
	}

	// Xavier/Glorot initialization
	scale := math.Sqrt(2.0 / (float64(in) + float64(out)))
	weights := d.weights()
	for i := range weights {
		weights[i] = uniform()*2*scale - scale
	}
	biases := d.biases()
	for i := range biases {
		biases[i] = uniform()*0.2 - 0.1
	}
	return d
}

func (d *Dense) weights() []float64 { return d.params[:d.outSize*d.inSize] }
func (d *Dense) biases() []float64  { return d.params[d.outSize*d.inSize:] }

func (d *Dense) row(o int) []float64 {
	return d.params[o*d.inSize : (o+1)*d.inSize]
}

// Forward computes act(Wx + b). The returned slice is reused by the next call.
func (d *Dense) Forward(x []float64) []float64 {
	if len(x) != d.inSize {
		panic("layer: Dense input size mismatch")
	}
	copy(d.inputBuf, x)

	biases := d.biases()
	for o := 0; o < d.outSize; o++ {
		z := biases[o] + floats.Dot(d.row(o), d.inputBuf)
		d.preActBuf[o] = z
		d.outputBuf[o] = d.act.Activate(z)
	}
	return d.outputBuf
}

// Backward performs backpropagation through the dense layer.
func (d *Dense) Backward(grad []float64) []float64 {
	if len(grad) != d.outSize {
		panic("layer: Dense gradient size mismatch")
	}
	inSize := d.inSize
	gradW := d.grads[:d.outSize*inSize]
	gradB := d.grads[d.outSize*inSize:]

	// dz = dL/dy * act'(z)
	for o := 0; o < d.outSize; o++ {
		d.dzBuf[o] = grad[o] * d.act.Derivative(d.preActBuf[o])
		gradB[o] = d.dzBuf[o]
	}

	// dL/dW[o, :] = dz[o] * x and dL/dx = sum_o dz[o] * W[o, :]
	clear(d.gradInBuf)
	for o := 0; o < d.outSize; o++ {
		floats.ScaleTo(gradW[o*inSize:(o+1)*inSize], d.dzBuf[o], d.inputBuf)
		floats.AddScaled(d.gradInBuf, d.dzBuf[o], d.row(o))
	}
	return d.gradInBuf
}

// Params returns the layer parameters (weights, then biases).
func (d *Dense) Params() []float64 {
	return d.params
}

// SetParams copies weights and biases from a flattened slice.
func (d *Dense) SetParams(params []float64) {
	if len(params) != len(d.params) {
		panic("layer: Dense parameter count mismatch")
	}
	copy(d.params, params)
}

// Gradients returns the gradients of the last Backward call.
func (d *Dense) Gradients() []float64 {
	return d.grads
}

// Weights returns a copy of the weight matrix, row-major.
func (d *Dense) Weights() []float64 {
	return append([]float64(nil), d.weights()...)
}

// Biases returns a copy of the biases.
func (d *Dense) Biases() []float64 {
	return append([]float64(nil), d.biases()...)
}

// SetWeight sets a single weight at (row, col).
func (d *Dense) SetWeight(row, col int, val float64) {
	d.params[row*d.inSize+col] = val
}

// SetBias sets a single bias.
func (d *Dense) SetBias(idx int, val float64) {
	d.biases()[idx] = val
}

// Weight gets a single weight at (row, col).
func (d *Dense) Weight(row, col int) float64 {
	return d.params[row*d.inSize+col]
}

// InSize returns the input size of the layer.
func (d *Dense) InSize() int {
	return d.inSize
}

// OutSize returns the output size of the layer.
func (d *Dense) OutSize() int {
	return d.outSize
}

// Activation returns the activation function used by this layer.
func (d *Dense) Activation() activations.Activation {
	return d.act
}
