// Package history records training runs and their per-epoch metrics in an SQLite database.
package history

import (
	"database/sql"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/ravensaid/ravensaid/internal/net"
	"k8s.io/klog/v2"

	_ "modernc.org/sqlite"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS runs(
	id TEXT PRIMARY KEY,
	started REAL NOT NULL,
	finished REAL,
	prefix TEXT NOT NULL,
	config TEXT NOT NULL,
	status TEXT NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS epochs(
	run_id TEXT NOT NULL REFERENCES runs(id),
	epoch INTEGER NOT NULL,
	examples INTEGER NOT NULL,
	loss REAL NOT NULL,
	validated INTEGER NOT NULL,
	passed INTEGER NOT NULL,
	learning_rate REAL NOT NULL,
	checkpoint TEXT NOT NULL,
	seconds REAL NOT NULL,
	PRIMARY KEY(run_id, epoch)
)`}

// Run statuses.
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// Store is an open history database.
type Store struct {
	db *sql.DB
}

// Run is one recorded training run.
type Run struct {
	ID       string
	Started  time.Time
	Finished time.Time // Zero while running.
	Prefix   string
	Config   string
	Status   string
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000.0
}

func fromUnixSeconds(s float64) time.Time {
	return time.UnixMilli(int64(math.Round(s * 1000)))
}

// Open opens or creates the database at path and makes sure its tables exist.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open history %q", path)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "failed to create history tables in %q", path)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return errors.Wrap(s.db.Close(), "failed to close history")
}

// StartRun registers a new running run and returns its id.
func (s *Store) StartRun(prefix, config string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec("INSERT INTO runs(id, started, prefix, config, status) VALUES(?,?,?,?,?)",
		id, unixSeconds(time.Now()), prefix, config, StatusRunning)
	if err != nil {
		return "", errors.Wrap(err, "failed to record run")
	}
	return id, nil
}

// FinishRun marks a run as finished or failed.
func (s *Store) FinishRun(id, status string) error {
	res, err := s.db.Exec("UPDATE runs SET finished = ?, status = ? WHERE id = ?",
		unixSeconds(time.Now()), status, id)
	if err != nil {
		return errors.Wrapf(err, "failed to finish run %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Errorf("unknown run %s", id)
	}
	return nil
}

// RecordEpoch stores the metrics of one epoch of run id.
func (s *Store) RecordEpoch(id string, stats net.EpochStats) error {
	_, err := s.db.Exec(`INSERT INTO epochs(run_id, epoch, examples, loss, validated, passed, learning_rate, checkpoint, seconds)
		VALUES(?,?,?,?,?,?,?,?,?)`,
		id, stats.Epoch, stats.Examples, stats.Loss, stats.Validated, stats.Passed,
		stats.LearningRate, stats.Checkpoint, stats.Duration.Seconds())
	return errors.Wrapf(err, "failed to record epoch %d of run %s", stats.Epoch, id)
}

// Runs returns all runs, newest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query("SELECT id, started, finished, prefix, config, status FROM runs ORDER BY started DESC, rowid DESC")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  float64
			finished sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Prefix, &r.Config, &r.Status); err != nil {
			return nil, errors.Wrap(err, "failed to read run")
		}
		r.Started = fromUnixSeconds(started)
		if finished.Valid {
			r.Finished = fromUnixSeconds(finished.Float64)
		}
		runs = append(runs, r)
	}
	return runs, errors.Wrap(rows.Err(), "failed to list runs")
}

// Epochs returns the recorded epochs of run id in epoch order.
func (s *Store) Epochs(id string) ([]net.EpochStats, error) {
	rows, err := s.db.Query(`SELECT epoch, examples, loss, validated, passed, learning_rate, checkpoint, seconds
		FROM epochs WHERE run_id = ? ORDER BY epoch`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list epochs of run %s", id)
	}
	defer rows.Close()

	var epochs []net.EpochStats
	for rows.Next() {
		var (
			e       net.EpochStats
			seconds float64
		)
		if err := rows.Scan(&e.Epoch, &e.Examples, &e.Loss, &e.Validated, &e.Passed, &e.LearningRate, &e.Checkpoint, &seconds); err != nil {
			return nil, errors.Wrap(err, "failed to read epoch")
		}
		e.Duration = time.Duration(seconds * float64(time.Second))
		epochs = append(epochs, e)
	}
	return epochs, errors.Wrapf(rows.Err(), "failed to list epochs of run %s", id)
}

// Recorder is a training callback that writes the run into a Store.
type Recorder struct {
	net.BaseCallback
	Store  *Store
	Prefix string
	Config string

	// RunID is set once training begins.
	RunID  string
	failed bool
}

func (r *Recorder) OnTrainBegin(n *net.Network) error {
	id, err := r.Store.StartRun(r.Prefix, r.Config)
	if err != nil {
		return err
	}
	r.RunID = id
	klog.V(1).Infof("Recording run %s", id)
	return nil
}

func (r *Recorder) OnEpochEnd(stats net.EpochStats, n *net.Network) error {
	if err := r.Store.RecordEpoch(r.RunID, stats); err != nil {
		r.failed = true
		return err
	}
	return nil
}

func (r *Recorder) OnTrainEnd(n *net.Network) error {
	if r.RunID == "" {
		return nil
	}
	status := StatusFinished
	if r.failed {
		status = StatusFailed
	}
	return r.Store.FinishRun(r.RunID, status)
}

// Fail marks the run as failed; the status is written by OnTrainEnd.
func (r *Recorder) Fail() {
	r.failed = true
}
