package net

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// CSVLogger logs training progress to a CSV file.
type CSVLogger struct {
	BaseCallback
	Filename string
	Append   bool

	file   *os.File
	writer *csv.Writer
	start  time.Time
}

// NewCSVLogger creates a new CSVLogger.
func NewCSVLogger(filename string, append bool) *CSVLogger {
	return &CSVLogger{
		Filename: filename,
		Append:   append,
	}
}

var csvHeader = []string{"epoch", "examples", "loss", "accuracy", "learning_rate", "checkpoint", "time_seconds"}

func (c *CSVLogger) OnTrainBegin(n *Network) error {
	mode := os.O_CREATE | os.O_WRONLY
	if c.Append {
		mode |= os.O_APPEND
	} else {
		mode |= os.O_TRUNC
	}

	file, err := os.OpenFile(c.Filename, mode, 0644)
	if err != nil {
		return errors.Wrapf(err, "CSVLogger: failed to open %s", c.Filename)
	}
	c.file = file
	c.writer = csv.NewWriter(file)
	c.start = time.Now()

	// Write header if not appending or if file is empty
	info, err := file.Stat()
	if err == nil && (info.Size() == 0 || !c.Append) {
		_ = c.writer.Write(csvHeader)
		c.writer.Flush()
	}
	return c.writer.Error()
}

func (c *CSVLogger) OnEpochEnd(stats EpochStats, n *Network) error {
	if c.writer == nil {
		return nil
	}

	record := []string{
		strconv.Itoa(stats.Epoch),
		strconv.Itoa(stats.Examples),
		fmt.Sprintf("%.6f", stats.Loss),
		fmt.Sprintf("%.4f", stats.Accuracy()),
		strconv.FormatFloat(stats.LearningRate, 'g', -1, 64),
		stats.Checkpoint,
		fmt.Sprintf("%.2f", time.Since(c.start).Seconds()),
	}
	if err := c.writer.Write(record); err != nil {
		return errors.Wrap(err, "CSVLogger: failed to write record")
	}
	c.writer.Flush()
	return c.writer.Error()
}

func (c *CSVLogger) OnTrainEnd(n *Network) error {
	if c.file == nil {
		return nil
	}
	c.writer.Flush()
	err := c.file.Close()
	c.file = nil
	c.writer = nil
	return errors.Wrap(err, "CSVLogger: failed to close")
}
