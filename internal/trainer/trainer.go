// Package trainer runs the training loop: it loads and balances the configured corpora, trains the
// network one example at a time, validates and checkpoints after every epoch, and reports progress
// through net.Callback hooks.
package trainer

import (
	"bytes"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/ravensaid/ravensaid/internal/activations"
	"github.com/ravensaid/ravensaid/internal/config"
	"github.com/ravensaid/ravensaid/internal/corpus"
	"github.com/ravensaid/ravensaid/internal/encoding"
	"github.com/ravensaid/ravensaid/internal/history"
	"github.com/ravensaid/ravensaid/internal/loss"
	"github.com/ravensaid/ravensaid/internal/net"
	"github.com/ravensaid/ravensaid/internal/opt"
	"k8s.io/klog/v2"
)

// Result describes a finished training run.
type Result struct {
	// Epochs holds the statistics of every completed epoch, in order.
	Epochs []net.EpochStats
	// TrainSize and ValidationSize are the sizes of the two halves of the balanced dataset.
	TrainSize, ValidationSize int
	// Stopped is set when early stopping ended the run before the configured epoch count.
	Stopped bool
	// RunID identifies the run in the history database, if one was configured.
	RunID string
	// Network holds the weights after the last epoch.
	Network *net.Network
}

// Dataset is the balanced data of a run, split into training and validation examples.
type Dataset struct {
	Train, Validation []corpus.Entry
}

// LoadDataset reads every configured source, balances them and holds out the validation
// examples. Any unreadable file aborts with an error naming the file.
func LoadDataset(cfg config.Config) (*Dataset, error) {
	sources := make([]*corpus.Source, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		src, err := corpus.Load(s.Name, s.Label, s.Paths...)
		if err != nil {
			return nil, err
		}
		klog.V(1).Infof("Source %q: %s entries", s.Name, humanize.Comma(int64(len(src.Entries))))
		sources = append(sources, src)
	}
	data, err := corpus.Balance(sources)
	if err != nil {
		return nil, err
	}
	train, validation := corpus.Holdout(data, cfg.Train.ValidationDivisor)
	return &Dataset{Train: train, Validation: validation}, nil
}

// Evaluate counts the entries whose rounded sigmoid output matches their label.
func Evaluate(n *net.Network, data []corpus.Entry) (passed int) {
	x := make([]float64, encoding.InputSize)
	for _, e := range data {
		encoding.EncodeInto(x, e.Text)
		predicted := math.Round(activations.Logistic(n.Logit(x))) == 1
		if predicted == e.Label {
			passed++
		}
	}
	return passed
}

func target(label bool) float64 {
	if label {
		return 1
	}
	return 0
}

// newNetwork builds the seeded network with the configured loss, optimizer and clipping.
func newNetwork(cfg config.Config) (*net.Network, error) {
	lossFn, err := loss.ByName(cfg.Train.Loss)
	if err != nil {
		return nil, err
	}
	optimizer, err := opt.New(cfg.Train.Optimizer, cfg.Train.LearningRate)
	if err != nil {
		return nil, err
	}
	clip, err := opt.ParseClipMode(cfg.Train.Clip)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Train.Seed))
	return net.NewFromTopology(cfg.Network, rng, lossFn, optimizer, net.WithClipping(clip, cfg.Train.ClipLimit))
}

// encodeConfig renders cfg as TOML for the history database.
func encodeConfig(cfg config.Config) string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		klog.Warningf("Failed to encode config for history: %v", err)
	}
	return buf.String()
}

// Run trains a network as configured. The callbacks are notified after the built-in ones
// (logging, CSV log, history, best checkpoint, early stopping) and before the learning rate
// scheduler steps, so the statistics they see carry the rate the epoch was trained with.
func Run(cfg config.Config, callbacks ...net.Callback) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	data, err := LoadDataset(cfg)
	if err != nil {
		return nil, err
	}
	klog.Infof("Added %s sentences to train on and %s to validate with.",
		humanize.Comma(int64(len(data.Train))), humanize.Comma(int64(len(data.Validation))))

	n, err := newNetwork(cfg)
	if err != nil {
		return nil, err
	}
	scheduler, err := opt.NewScheduler(n.Optimizer(), cfg.Train.Schedule, cfg.Train.Epochs)
	if err != nil {
		return nil, err
	}
	if cfg.Checkpoint.Dir != "" {
		if err := os.MkdirAll(cfg.Checkpoint.Dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "failed to create checkpoint directory %q", cfg.Checkpoint.Dir)
		}
	}

	result := &Result{TrainSize: len(data.Train), ValidationSize: len(data.Validation), Network: n}
	all := []net.Callback{net.Logger{Prefix: cfg.Checkpoint.Prefix, Interval: cfg.Train.LogInterval}}
	if cfg.CSVLog != "" {
		all = append(all, net.NewCSVLogger(cfg.CSVLog, true))
	}
	var recorder *history.Recorder
	if cfg.History != "" {
		store, err := history.Open(cfg.History)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := store.Close(); err != nil {
				klog.Warningf("%v", err)
			}
		}()
		recorder = &history.Recorder{Store: store, Prefix: cfg.Checkpoint.Prefix, Config: encodeConfig(cfg)}
		all = append(all, recorder)
	}
	if cfg.Checkpoint.Best != "" {
		all = append(all, net.NewBestCheckpoint(cfg.Checkpoint.Best))
	}
	var early *net.EarlyStopping
	if cfg.Train.EarlyStopping > 0 {
		early = net.NewEarlyStopping(cfg.Train.EarlyStopping, 0)
		all = append(all, early)
	}
	all = append(all, callbacks...)
	all = append(all, net.NewSchedulerCallback(scheduler))

	var begun []net.Callback
	finish := func(runErr error) error {
		if runErr != nil && recorder != nil {
			recorder.Fail()
		}
		for _, cb := range begun {
			if err := cb.OnTrainEnd(n); err != nil && runErr == nil {
				runErr = err
			}
		}
		return runErr
	}
	for _, cb := range all {
		if err := cb.OnTrainBegin(n); err != nil {
			return nil, finish(err)
		}
		begun = append(begun, cb)
	}
	if recorder != nil {
		result.RunID = recorder.RunID
	}

	x := make([]float64, encoding.InputSize)
	y := make([]float64, 1)
	for epoch := 0; epoch < cfg.Train.Epochs; epoch++ {
		start := time.Now()
		examples := data.Train
		if cfg.Train.ShardRotation {
			examples = corpus.Shard(data.Train, epoch, cfg.Train.Shards)
		}
		if len(examples) == 0 {
			return nil, finish(errors.Wrapf(corpus.ErrEmpty,
				"epoch %d has no training examples (%d examples in %d shards)", epoch, len(data.Train), cfg.Train.Shards))
		}

		lr := n.Optimizer().LearningRate()
		for _, cb := range all {
			cb.OnEpochBegin(epoch, len(examples), n)
		}
		var sum float64
		for step, e := range examples {
			encoding.EncodeInto(x, e.Text)
			y[0] = target(e.Label)
			l := n.Train(x, y)
			sum += l
			for _, cb := range all {
				cb.OnBatchEnd(step, l, n)
			}
		}

		stats := net.EpochStats{
			Epoch:        epoch,
			Examples:     len(examples),
			Loss:         sum / float64(len(examples)),
			Validated:    len(data.Validation),
			Passed:       Evaluate(n, data.Validation),
			LearningRate: lr,
			Checkpoint:   cfg.CheckpointPath(epoch),
		}
		if err := n.Save(stats.Checkpoint); err != nil {
			return nil, finish(err)
		}
		stats.Duration = time.Since(start)
		result.Epochs = append(result.Epochs, stats)

		for _, cb := range all {
			if err := cb.OnEpochEnd(stats, n); err != nil {
				return nil, finish(err)
			}
		}
		if early != nil && early.Stopped {
			result.Stopped = true
			break
		}
	}
	if err := finish(nil); err != nil {
		return nil, err
	}
	return result, nil
}
