// Package inference scores text with a trained network: a Classifier wraps one loaded checkpoint,
// a Registry hands out integer handles for foreign callers, and REPL runs the interactive loop.
package inference

import (
	"math"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/ravensaid/ravensaid/internal/activations"
	"github.com/ravensaid/ravensaid/internal/encoding"
	"github.com/ravensaid/ravensaid/internal/net"
)

// Result codes returned by Score in place of a percentage.
const (
	// CodeMalformed: the text is not valid UTF-8, or was NULL at the C boundary.
	CodeMalformed int32 = -1
	// CodeOverflow: the probability is above 1 or NaN, i.e. the model is corrupt.
	CodeOverflow int32 = -2
	// CodeNegative: the probability is below 0.
	CodeNegative int32 = -3
	// CodeInvalidHandle: the classifier is closed or the handle is unknown.
	CodeInvalidHandle int32 = -4
)

// Scale converts a probability into the fixed-point percentage: two implied decimals.
const Scale = 10000

var (
	// ErrClosed is returned when using a classifier after Close.
	ErrClosed = errors.New("classifier is closed")
	// ErrMalformed is returned for text that is not valid UTF-8.
	ErrMalformed = errors.New("malformed message")
)

// Classifier scores messages with one loaded network. It reuses its buffers and is not safe for
// concurrent use.
type Classifier struct {
	net *net.Network
	x   []float64
}

// New wraps an already loaded network.
func New(n *net.Network) *Classifier {
	return &Classifier{net: n, x: make([]float64, encoding.InputSize)}
}

// Open declares a network of the given topology and loads the checkpoint at path into it.
func Open(path string, topo net.Topology) (*Classifier, error) {
	n, err := net.NewFromTopology(topo, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	if err := n.LoadWeights(path); err != nil {
		return nil, err
	}
	return New(n), nil
}

// Logit returns the raw network output for text.
func (c *Classifier) Logit(text string) (float64, error) {
	if c.net == nil {
		return 0, ErrClosed
	}
	if !utf8.ValidString(text) {
		return 0, ErrMalformed
	}
	encoding.EncodeInto(c.x, text)
	return c.net.Logit(c.x), nil
}

// Probability returns the estimated probability that text was written by the target author.
func (c *Classifier) Probability(text string) (float64, error) {
	logit, err := c.Logit(text)
	if err != nil {
		return 0, err
	}
	return activations.Logistic(logit), nil
}

// FixedPoint converts a probability to a percentage with two implied decimals, truncating, or
// to CodeOverflow / CodeNegative when p is not a probability.
func FixedPoint(p float64) int32 {
	switch {
	case math.IsNaN(p) || p > 1:
		return CodeOverflow
	case p < 0:
		return CodeNegative
	}
	return int32(p * Scale)
}

// Score returns the fixed-point percentage for text in [0, 10000], or a negative result code.
func (c *Classifier) Score(text string) int32 {
	p, err := c.Probability(text)
	switch {
	case errors.Is(err, ErrClosed):
		return CodeInvalidHandle
	case err != nil:
		return CodeMalformed
	}
	return FixedPoint(p)
}

// Close releases the network. Closing twice returns ErrClosed.
func (c *Classifier) Close() error {
	if c.net == nil {
		return ErrClosed
	}
	c.net = nil
	c.x = nil
	return nil
}
