// Package net provides the network type that chains named layers, trains them one example at a
// time and persists their weights.
package net

import (
	"math/rand"
	"strconv"

	"github.com/pkg/errors"
	"github.com/ravensaid/ravensaid/internal/activations"
	"github.com/ravensaid/ravensaid/internal/encoding"
	"github.com/ravensaid/ravensaid/internal/layer"
	"github.com/ravensaid/ravensaid/internal/loss"
	"github.com/ravensaid/ravensaid/internal/opt"
)

// Topology declares the shape of a classifier network: encoding.InputSize inputs, one or more
// hidden layers of equal width, and a single linear output unit producing a logit.
type Topology struct {
	// Hidden is the width of every hidden layer.
	Hidden int `toml:"hidden"`
	// HiddenLayers is the number of hidden layers, at least 1.
	HiddenLayers int `toml:"hidden_layers"`
	// Activation is applied after every hidden layer; see activations.ByName.
	Activation string `toml:"activation"`
}

// DefaultTopology is 8192 -> 64 -> 1 without a nonlinearity.
func DefaultTopology() Topology {
	return Topology{Hidden: 64, HiddenLayers: 1, Activation: "linear"}
}

// Validate reports whether the topology can be built.
func (t Topology) Validate() error {
	if t.Hidden <= 0 {
		return errors.Errorf("hidden width must be positive, got %d", t.Hidden)
	}
	if t.HiddenLayers <= 0 {
		return errors.Errorf("hidden layer count must be positive, got %d", t.HiddenLayers)
	}
	_, err := activations.ByName(t.Activation)
	return err
}

// Build creates freshly initialized layers named "l1".."lN". A nil rng uses the global source.
func (t Topology) Build(rng *rand.Rand) ([]string, []layer.Layer, error) {
	if err := t.Validate(); err != nil {
		return nil, nil, err
	}
	act, _ := activations.ByName(t.Activation)

	var layers []layer.Layer
	in := encoding.InputSize
	for i := 0; i < t.HiddenLayers; i++ {
		layers = append(layers, layer.NewDenseRand(in, t.Hidden, act, rng))
		in = t.Hidden
	}
	layers = append(layers, layer.NewDenseRand(in, 1, activations.Linear{}, rng))

	names := make([]string, len(layers))
	for i := range names {
		names[i] = "l" + strconv.Itoa(i+1)
	}
	return names, layers, nil
}

// Network is a collection of named layers that can be forwarded and backwarded.
type Network struct {
	names  []string
	layers []layer.Layer
	loss   loss.Loss
	opt    opt.Optimizer

	clipMode  opt.ClipMode
	clipLimit float64

	// Pre-allocated buffers for training
	lossGradBuf []float64
	gradGroups  [][]float64
}

// Option configures a Network.
type Option func(*Network)

// WithNames overrides the default layer names "l1".."lN".
func WithNames(names ...string) Option {
	return func(n *Network) { n.names = append([]string(nil), names...) }
}

// WithClipping bounds gradients with mode and limit before every optimizer step.
func WithClipping(mode opt.ClipMode, limit float64) Option {
	return func(n *Network) {
		n.clipMode = mode
		n.clipLimit = limit
	}
}

// New creates a new neural network with the given layers. loss and optimizer may be nil for a
// network only used for inference.
func New(layers []layer.Layer, lossFn loss.Loss, optimizer opt.Optimizer, options ...Option) *Network {
	n := &Network{
		layers:   layers,
		loss:     lossFn,
		opt:      optimizer,
		clipMode: opt.ClipNone,
	}
	for _, o := range options {
		o(n)
	}
	if len(n.names) != len(layers) {
		n.names = make([]string, len(layers))
		for i := range layers {
			n.names[i] = "l" + strconv.Itoa(i+1)
		}
	}
	return n
}

// NewFromTopology builds the layers of t and wraps them in a Network.
func NewFromTopology(t Topology, rng *rand.Rand, lossFn loss.Loss, optimizer opt.Optimizer, options ...Option) (*Network, error) {
	names, layers, err := t.Build(rng)
	if err != nil {
		return nil, err
	}
	return New(layers, lossFn, optimizer, append([]Option{WithNames(names...)}, options...)...), nil
}

// Forward performs a forward pass through all layers. The result aliases the last layer's
// output buffer and is overwritten by the next call.
func (n *Network) Forward(x []float64) []float64 {
	curr := x
	for i := range n.layers {
		curr = n.layers[i].Forward(curr)
	}
	return curr
}

// Logit runs Forward and returns the single output unit.
func (n *Network) Logit(x []float64) float64 {
	return n.Forward(x)[0]
}

// Backward performs a backward pass through all layers.
func (n *Network) Backward(grad []float64) []float64 {
	curr := grad
	for i := len(n.layers) - 1; i >= 0; i-- {
		curr = n.layers[i].Backward(curr)
	}
	return curr
}

// ClipGradients applies the configured clipping to the gradients of the last Backward call.
func (n *Network) ClipGradients() {
	if n.clipMode == opt.ClipNone {
		return
	}
	n.gradGroups = n.gradGroups[:0]
	for _, l := range n.layers {
		n.gradGroups = append(n.gradGroups, l.Gradients())
	}
	opt.Clip(n.clipMode, n.clipLimit, n.gradGroups)
}

// Step performs one optimization step using the stored optimizer.
func (n *Network) Step() {
	for i, l := range n.layers {
		n.opt.StepInPlace(i, l.Params(), l.Gradients())
	}
}

// Train performs a training step on a single sample and returns its loss.
func (n *Network) Train(x []float64, y []float64) float64 {
	yPred := n.Forward(x)
	l := n.loss.Forward(yPred, y)

	yPredLen := len(yPred)
	if cap(n.lossGradBuf) < yPredLen {
		n.lossGradBuf = make([]float64, yPredLen)
	}
	grad := n.lossGradBuf[:yPredLen]
	if backwardInPlace, ok := n.loss.(loss.BackwardInPlacer); ok {
		backwardInPlace.BackwardInPlace(yPred, y, grad)
	} else {
		grad = n.loss.Backward(yPred, y)
	}

	_ = n.Backward(grad)
	n.ClipGradients()
	n.Step()
	return l
}

// Params returns all network parameters flattened (copy).
func (n *Network) Params() []float64 {
	var params []float64
	for _, l := range n.layers {
		params = append(params, l.Params()...)
	}
	return params
}

// Layers returns the network's layers slice.
func (n *Network) Layers() []layer.Layer {
	return n.layers
}

// Names returns the layer names, parallel to Layers.
func (n *Network) Names() []string {
	return n.names
}

// Optimizer returns the optimizer used by Step, or nil.
func (n *Network) Optimizer() opt.Optimizer {
	return n.opt
}
