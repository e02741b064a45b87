// Package ravensaid is the public entry point for embedding the classifier from Go.
package ravensaid

import (
	"github.com/ravensaid/ravensaid/internal/config"
	"github.com/ravensaid/ravensaid/internal/encoding"
	"github.com/ravensaid/ravensaid/internal/inference"
	"github.com/ravensaid/ravensaid/internal/net"
	"github.com/ravensaid/ravensaid/internal/trainer"
)

// Re-export common types for easier access
type (
	Config     = config.Config
	Source     = config.Source
	Topology   = net.Topology
	Classifier = inference.Classifier
	Registry   = inference.Registry
	Handle     = inference.Handle
	Result     = trainer.Result
	Callback   = net.Callback
	EpochStats = net.EpochStats
)

// Result codes
const (
	CodeMalformed     = inference.CodeMalformed
	CodeOverflow      = inference.CodeOverflow
	CodeNegative      = inference.CodeNegative
	CodeInvalidHandle = inference.CodeInvalidHandle
)

// Errors
var (
	ErrClosed           = inference.ErrClosed
	ErrMalformed        = inference.ErrMalformed
	ErrInvalidHandle    = inference.ErrInvalidHandle
	ErrTopologyMismatch = net.ErrTopologyMismatch
	ErrInvalidConfig    = config.ErrInvalid
)

// Configuration
func DefaultConfig() Config {
	return config.Default()
}

func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}

func DefaultTopology() Topology {
	return net.DefaultTopology()
}

// Training
func Train(cfg Config, callbacks ...Callback) (*Result, error) {
	return trainer.Run(cfg, callbacks...)
}

// Inference

// Open loads a checkpoint written with the default topology.
func Open(path string) (*Classifier, error) {
	return inference.Open(path, net.DefaultTopology())
}

func OpenTopology(path string, topo Topology) (*Classifier, error) {
	return inference.Open(path, topo)
}

func NewRegistry() *Registry {
	return inference.NewRegistry()
}

// Encode returns the one-hot encoding of the first 32 bytes of text.
func Encode(text string) []float64 {
	return encoding.Encode(text)
}
