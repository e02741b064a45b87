package net

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/ravensaid/ravensaid/internal/opt"
	"k8s.io/klog/v2"
)

// EpochStats summarizes one finished training epoch.
type EpochStats struct {
	Epoch int
	// Examples is the number of examples trained on in this epoch.
	Examples int
	// Loss is the mean training loss over those examples.
	Loss float64
	// Validated and Passed count the held-out examples and the correctly classified ones.
	Validated int
	Passed    int
	// LearningRate is the rate used during this epoch.
	LearningRate float64
	// Checkpoint is the file the epoch's weights were written to.
	Checkpoint string
	Duration   time.Duration
}

// Accuracy is the fraction of validation examples classified correctly, or NaN when there
// was nothing to validate.
func (s EpochStats) Accuracy() float64 {
	if s.Validated == 0 {
		return math.NaN()
	}
	return float64(s.Passed) / float64(s.Validated)
}

// Callback defines the interface for training callbacks. An error from OnTrainBegin or
// OnEpochEnd aborts the run.
type Callback interface {
	OnTrainBegin(n *Network) error
	OnTrainEnd(n *Network) error
	OnEpochBegin(epoch, steps int, n *Network)
	OnEpochEnd(stats EpochStats, n *Network) error
	OnBatchEnd(step int, loss float64, n *Network)
}

// BaseCallback provides default empty implementations for Callback.
type BaseCallback struct{}

func (c BaseCallback) OnTrainBegin(n *Network) error                 { return nil }
func (c BaseCallback) OnTrainEnd(n *Network) error                   { return nil }
func (c BaseCallback) OnEpochBegin(epoch, steps int, n *Network)     {}
func (c BaseCallback) OnEpochEnd(stats EpochStats, n *Network) error { return nil }
func (c BaseCallback) OnBatchEnd(step int, loss float64, n *Network) {}

// SchedulerCallback is a callback that wraps a learning rate scheduler.
type SchedulerCallback struct {
	BaseCallback
	scheduler opt.Scheduler
}

func NewSchedulerCallback(scheduler opt.Scheduler) *SchedulerCallback {
	return &SchedulerCallback{scheduler: scheduler}
}

func (c *SchedulerCallback) OnEpochEnd(stats EpochStats, n *Network) error {
	c.scheduler.Step()
	c.scheduler.StepWithLoss(stats.Loss)
	return nil
}

// EarlyStopping stops training when the mean training loss has stopped improving.
type EarlyStopping struct {
	BaseCallback
	Patience  int
	Threshold float64

	bestLoss     float64
	numBadEpochs int
	Stopped      bool
}

func NewEarlyStopping(patience int, threshold float64) *EarlyStopping {
	return &EarlyStopping{
		Patience:  patience,
		Threshold: threshold,
		bestLoss:  math.MaxFloat64,
	}
}

func (c *EarlyStopping) OnEpochEnd(stats EpochStats, n *Network) error {
	if stats.Loss < c.bestLoss-c.Threshold {
		c.bestLoss = stats.Loss
		c.numBadEpochs = 0
	} else {
		c.numBadEpochs++
	}

	if c.numBadEpochs >= c.Patience {
		klog.Infof("Early stopping at epoch %d: loss %.6f did not improve for %d epochs", stats.Epoch, stats.Loss, c.Patience)
		c.Stopped = true
	}
	return nil
}

// BestCheckpoint saves the model whenever validation accuracy improves on the best so far.
type BestCheckpoint struct {
	BaseCallback
	Filename string

	best float64
}

func NewBestCheckpoint(filename string) *BestCheckpoint {
	return &BestCheckpoint{Filename: filename, best: -1}
}

func (c *BestCheckpoint) OnEpochEnd(stats EpochStats, n *Network) error {
	acc := stats.Accuracy()
	if math.IsNaN(acc) || acc <= c.best {
		return nil
	}
	c.best = acc
	if err := n.Save(c.Filename); err != nil {
		return errors.WithMessage(err, "saving best checkpoint")
	}
	klog.V(1).Infof("Best checkpoint %s: validation accuracy %.2f%%", c.Filename, 100*acc)
	return nil
}

// Logger logs training progress through klog.
type Logger struct {
	BaseCallback
	Prefix string
	// Interval logs every Interval-th epoch; 0 or 1 logs all of them.
	Interval int
}

// Due reports whether epoch is logged.
func (c Logger) Due(epoch int) bool {
	return c.Interval <= 1 || epoch%c.Interval == 0
}

func (c Logger) OnEpochEnd(stats EpochStats, n *Network) error {
	if !c.Due(stats.Epoch) {
		return nil
	}
	klog.Infof("Prefix: %s, epoch: %d, loss: %.6f", c.Prefix, stats.Epoch, stats.Loss)
	klog.Infof("Tested on %d sentences, %d passed, %.2f%% success",
		stats.Validated, stats.Passed, 100*stats.Accuracy())
	return nil
}
