// Package config holds the configuration of a training run: the labeled corpus sources, the
// network topology and the training schedule. It is read from a TOML file; anything the file
// leaves out keeps its default.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/ravensaid/ravensaid/internal/loss"
	"github.com/ravensaid/ravensaid/internal/net"
	"github.com/ravensaid/ravensaid/internal/opt"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Source is one labeled corpus source. Its files are chained in order.
type Source struct {
	Name  string   `toml:"name"`
	Label bool     `toml:"label"`
	Paths []string `toml:"paths"`
}

// Train configures the training loop.
type Train struct {
	Epochs       int     `toml:"epochs"`
	LearningRate float64 `toml:"learning_rate"`
	// Loss is loss.NameBCEWithLogits or loss.NameBCE.
	Loss string `toml:"loss"`
	// Optimizer is "adam" or "sgd".
	Optimizer string             `toml:"optimizer"`
	Schedule  opt.ScheduleConfig `toml:"schedule"`
	// Clip is "norm", "value" or "none"; ClipLimit is the norm or value bound.
	Clip      string  `toml:"clip"`
	ClipLimit float64 `toml:"clip_limit"`
	// ShardRotation trains each epoch on shard epoch%Shards only; off trains on the full set.
	ShardRotation bool `toml:"shard_rotation"`
	Shards        int  `toml:"shards"`
	// ValidationDivisor holds out the front len/ValidationDivisor examples for validation.
	ValidationDivisor int   `toml:"validation_divisor"`
	Seed              int64 `toml:"seed"`
	// EarlyStopping is the patience in epochs; 0 disables it.
	EarlyStopping int `toml:"early_stopping"`
	// LogInterval logs every n-th epoch; 0 logs all of them.
	LogInterval int `toml:"log_interval"`
}

// Checkpoint configures where weights are written.
type Checkpoint struct {
	Dir string `toml:"dir"`
	// Prefix is prepended to "epoch_<n>.nn". The command line overrides it.
	Prefix string `toml:"prefix"`
	// Best, if set, is rewritten whenever validation accuracy improves.
	Best string `toml:"best"`
}

// Config is the whole configuration of a training run.
type Config struct {
	Sources    []Source     `toml:"source"`
	Network    net.Topology `toml:"network"`
	Train      Train        `toml:"train"`
	Checkpoint Checkpoint   `toml:"checkpoint"`
	// History is an SQLite database recording runs and epochs; empty disables it.
	History string `toml:"history"`
	// CSVLog receives one row per epoch; empty disables it.
	CSVLog string `toml:"csv_log"`
}

// Default returns the configuration matching the layout under data/: berk and sidju chained as one
// negative source, ravenholdt as the positive source and dreamer as a second negative source.
func Default() Config {
	return Config{
		Sources: []Source{
			{Name: "berk+sidju", Paths: []string{filepath.Join("data", "berk.txt"), filepath.Join("data", "sidju.txt")}},
			{Name: "ravenholdt", Label: true, Paths: []string{filepath.Join("data", "ravenholdt.txt")}},
			{Name: "dreamer", Paths: []string{filepath.Join("data", "dreamer.txt")}},
		},
		Network: net.DefaultTopology(),
		Train: Train{
			Epochs:       100,
			LearningRate: 5e-6,
			Loss:         loss.NameBCEWithLogits,
			Optimizer:    opt.NameAdam,
			Schedule: opt.ScheduleConfig{
				Kind:       "multistep",
				Gamma:      0.2,
				Milestones: []float64{0.5},
			},
			Clip:              string(opt.ClipNorm),
			ClipLimit:         0.5,
			ShardRotation:     false,
			Shards:            10,
			ValidationDivisor: 5,
			Seed:              1,
		},
		Checkpoint: Checkpoint{Dir: "."},
	}
}

// Load reads a TOML configuration on top of Default. When the file declares any [[source]]
// tables they replace the default sources entirely.
func Load(path string) (Config, error) {
	cfg := Default()
	defaults := cfg.Sources
	cfg.Sources = nil
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read config %q", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, errors.Wrapf(ErrInvalid, "%s: unknown keys %v", path, undecoded)
	}
	if len(cfg.Sources) == 0 {
		cfg.Sources = defaults
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.WithMessagef(err, "config %q", path)
	}
	return cfg, nil
}

func invalid(format string, args ...any) error {
	return errors.Wrap(ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks the configuration without touching the file system.
func (c Config) Validate() error {
	if len(c.Sources) == 0 {
		return invalid("no sources")
	}
	positives := 0
	for i, src := range c.Sources {
		if len(src.Paths) == 0 {
			return invalid("source %d (%q) lists no paths", i, src.Name)
		}
		if src.Label {
			positives++
		}
	}
	if positives == 0 || positives == len(c.Sources) {
		return invalid("sources need both positive and negative labels")
	}
	if err := c.Network.Validate(); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}

	t := c.Train
	switch {
	case t.Epochs <= 0:
		return invalid("epochs must be positive, got %d", t.Epochs)
	case t.LearningRate <= 0:
		return invalid("learning rate must be positive, got %g", t.LearningRate)
	case t.Shards <= 0:
		return invalid("shards must be positive, got %d", t.Shards)
	case t.ValidationDivisor < 0:
		return invalid("validation divisor must not be negative, got %d", t.ValidationDivisor)
	case t.EarlyStopping < 0:
		return invalid("early stopping patience must not be negative, got %d", t.EarlyStopping)
	case t.LogInterval < 0:
		return invalid("log interval must not be negative, got %d", t.LogInterval)
	}
	if _, err := loss.ByName(t.Loss); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	if _, err := opt.New(t.Optimizer, t.LearningRate); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	mode, err := opt.ParseClipMode(t.Clip)
	if err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	if mode != opt.ClipNone && t.ClipLimit <= 0 {
		return invalid("clip limit must be positive, got %g", t.ClipLimit)
	}
	if _, err := opt.NewScheduler(&opt.SGD{LR: t.LearningRate}, t.Schedule, t.Epochs); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	return nil
}

// CheckpointPath is the file the weights of epoch are written to.
func (c Config) CheckpointPath(epoch int) string {
	return filepath.Join(c.Checkpoint.Dir, fmt.Sprintf("%sepoch_%d.nn", c.Checkpoint.Prefix, epoch))
}
