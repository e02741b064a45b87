package net

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ravensaid/ravensaid/internal/opt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerDue(t *testing.T) {
	for _, c := range []Logger{{}, {Interval: 1}} {
		for epoch := 0; epoch < 4; epoch++ {
			assert.True(t, c.Due(epoch), "interval %d epoch %d", c.Interval, epoch)
		}
	}
	c := Logger{Interval: 3}
	var due []int
	for epoch := 0; epoch < 8; epoch++ {
		if c.Due(epoch) {
			due = append(due, epoch)
		}
	}
	assert.Equal(t, []int{0, 3, 6}, due)
	assert.NoError(t, c.OnEpochEnd(EpochStats{Epoch: 1}, &Network{}))
}

func TestCSVLogger(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "log.csv")

	logger := NewCSVLogger(filename, false)
	n := &Network{}

	require.NoError(t, logger.OnTrainBegin(n))
	require.NoError(t, logger.OnEpochEnd(EpochStats{Epoch: 0, Examples: 10, Loss: 0.5, Validated: 4, Passed: 3, LearningRate: 5e-6}, n))
	require.NoError(t, logger.OnEpochEnd(EpochStats{Epoch: 1, Examples: 10, Loss: 0.4, Validated: 4, Passed: 4, LearningRate: 1e-6}, n))
	require.NoError(t, logger.OnTrainEnd(n))

	file, err := os.Open(filename)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3) // Header + 2 epochs
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, []string{"0", "10", "0.500000", "0.7500", "5e-06"}, records[1][:5])
	assert.Equal(t, "1.0000", records[2][3])
}

func TestCSVLoggerAppendKeepsSingleHeader(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "log.csv")
	for run := 0; run < 2; run++ {
		logger := NewCSVLogger(filename, true)
		require.NoError(t, logger.OnTrainBegin(nil))
		require.NoError(t, logger.OnEpochEnd(EpochStats{Epoch: run}, nil))
		require.NoError(t, logger.OnTrainEnd(nil))
	}

	file, err := os.Open(filename)
	require.NoError(t, err)
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestEpochStatsAccuracy(t *testing.T) {
	assert.True(t, math.IsNaN(EpochStats{}.Accuracy()))
	assert.InDelta(t, 0.25, EpochStats{Validated: 8, Passed: 2}.Accuracy(), 1e-12)
}

func TestEarlyStopping(t *testing.T) {
	es := NewEarlyStopping(2, 0.01)
	for i, l := range []float64{1.0, 0.5, 0.499, 0.498} {
		require.NoError(t, es.OnEpochEnd(EpochStats{Epoch: i, Loss: l}, nil))
	}
	assert.True(t, es.Stopped)
}

func TestSchedulerCallbackStepsScheduler(t *testing.T) {
	sgd := &opt.SGD{LR: 1}
	cb := NewSchedulerCallback(opt.NewStepLR(sgd, 1, 0.5))
	require.NoError(t, cb.OnEpochEnd(EpochStats{}, nil))
	assert.Equal(t, 0.5, sgd.LearningRate())
}

func TestBestCheckpointOnlyOnImprovement(t *testing.T) {
	n := tinyNetwork(t)
	filename := filepath.Join(t.TempDir(), "best.nn")
	cb := NewBestCheckpoint(filename)

	require.NoError(t, cb.OnEpochEnd(EpochStats{Validated: 10, Passed: 6}, n))
	require.FileExists(t, filename)
	first, err := os.Stat(filename)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filename))
	require.NoError(t, cb.OnEpochEnd(EpochStats{Validated: 10, Passed: 5}, n))
	assert.NoFileExists(t, filename)

	require.NoError(t, cb.OnEpochEnd(EpochStats{Validated: 10, Passed: 7}, n))
	second, err := os.Stat(filename)
	require.NoError(t, err)
	assert.Equal(t, first.Size(), second.Size())
}
