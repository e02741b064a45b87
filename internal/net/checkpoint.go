package net

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/ravensaid/ravensaid/internal/activations"
	"github.com/ravensaid/ravensaid/internal/layer"
)

// checkpointMagic opens every checkpoint stream so unrelated files fail on the first read.
const checkpointMagic = "ravensaid-weights"

// ErrTopologyMismatch is returned when a checkpoint does not fit the declared network.
var ErrTopologyMismatch = errors.New("checkpoint does not match network topology")

// LayerState is the persisted form of one named dense layer.
type LayerState struct {
	Name       string
	InSize     int
	OutSize    int
	Activation string
	Weights    []float64
	Biases     []float64
}

// ExtractLayerState captures the weights of a named layer.
func ExtractLayerState(name string, l layer.Layer) (LayerState, error) {
	dense, ok := l.(*layer.Dense)
	if !ok {
		return LayerState{}, errors.Errorf("layer %q: unsupported layer type %T", name, l)
	}
	return LayerState{
		Name:       name,
		InSize:     dense.InSize(),
		OutSize:    dense.OutSize(),
		Activation: activations.Name(dense.Activation()),
		Weights:    dense.Weights(),
		Biases:     dense.Biases(),
	}, nil
}

// Save writes the network weights to filename, replacing it atomically.
func (n *Network) Save(filename string) error {
	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".tmp*")
	if err != nil {
		return errors.Wrapf(err, "failed to create checkpoint for %q", filename)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := n.Encode(tmp); err != nil {
		_ = tmp.Close()
		return errors.WithMessagef(err, "writing checkpoint %q", filename)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to close checkpoint %q", filename)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return errors.Wrapf(err, "failed to move checkpoint into %q", filename)
	}
	return nil
}

// Encode writes the network weights to w using gob encoding.
func (n *Network) Encode(w io.Writer) error {
	encoder := gob.NewEncoder(w)
	if err := encoder.Encode(checkpointMagic); err != nil {
		return errors.Wrap(err, "failed to encode header")
	}
	if err := encoder.Encode(int32(len(n.layers))); err != nil {
		return errors.Wrap(err, "failed to encode layer count")
	}
	for i, l := range n.layers {
		state, err := ExtractLayerState(n.names[i], l)
		if err != nil {
			return err
		}
		if err := encoder.Encode(state); err != nil {
			return errors.Wrapf(err, "failed to encode layer %q", state.Name)
		}
	}
	return nil
}

// LoadWeights reads a checkpoint written by Save into the network. The checkpoint must hold
// exactly the network's layers, in order, with the same names, sizes and activations.
func (n *Network) LoadWeights(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to open checkpoint %q", filename)
	}
	defer file.Close()
	return errors.WithMessagef(n.Decode(file), "loading checkpoint %q", filename)
}

// Decode reads checkpoint data from r into the network; see LoadWeights.
func (n *Network) Decode(r io.Reader) error {
	states, err := ReadLayerStates(r)
	if err != nil {
		return err
	}
	if len(states) != len(n.layers) {
		return errors.Wrapf(ErrTopologyMismatch, "checkpoint has %d layers, network has %d", len(states), len(n.layers))
	}

	// Check everything before touching any weights.
	for i, state := range states {
		want, err := ExtractLayerState(n.names[i], n.layers[i])
		if err != nil {
			return err
		}
		switch {
		case state.Name != want.Name:
			return errors.Wrapf(ErrTopologyMismatch, "layer %d is named %q, want %q", i, state.Name, want.Name)
		case state.InSize != want.InSize || state.OutSize != want.OutSize:
			return errors.Wrapf(ErrTopologyMismatch, "layer %q is %dx%d, want %dx%d",
				state.Name, state.InSize, state.OutSize, want.InSize, want.OutSize)
		case state.Activation != want.Activation:
			return errors.Wrapf(ErrTopologyMismatch, "layer %q uses %s, want %s", state.Name, state.Activation, want.Activation)
		case len(state.Weights) != state.InSize*state.OutSize || len(state.Biases) != state.OutSize:
			return errors.Errorf("layer %q: corrupt checkpoint, %d weights and %d biases for %dx%d",
				state.Name, len(state.Weights), len(state.Biases), state.InSize, state.OutSize)
		}
	}
	for i, state := range states {
		n.layers[i].SetParams(append(state.Weights, state.Biases...))
	}
	return nil
}

// ReadLayerStates decodes the raw layer records of a checkpoint stream.
func ReadLayerStates(r io.Reader) ([]LayerState, error) {
	decoder := gob.NewDecoder(r)

	var magic string
	if err := decoder.Decode(&magic); err != nil {
		return nil, errors.Wrap(err, "failed to read checkpoint header")
	}
	if magic != checkpointMagic {
		return nil, errors.Errorf("not a checkpoint (header %q)", magic)
	}

	var numLayers int32
	if err := decoder.Decode(&numLayers); err != nil {
		return nil, errors.Wrap(err, "failed to read layer count")
	}
	if numLayers < 0 || numLayers > 1024 {
		return nil, errors.Errorf("corrupt checkpoint: %d layers", numLayers)
	}

	states := make([]LayerState, numLayers)
	for i := range states {
		if err := decoder.Decode(&states[i]); err != nil {
			return nil, errors.Wrapf(err, "failed to read layer %d", i)
		}
	}
	return states, nil
}
