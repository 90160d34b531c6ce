package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Mode is the orchestrator mode a run was started in.
type Mode string

// Run modes.
const (
	ModeImage  Mode = "image"
	ModeBatch  Mode = "batch"
	ModeVideo  Mode = "video"
	ModeCamera Mode = "camera"
)

// StateRunning marks a run that has not finished yet.
const StateRunning = "running"

// Run is one orchestrator invocation.
type Run struct {
	ID         string
	Mode       Mode
	Source     string
	Model      string
	Threshold  float64
	State      string
	Frames     int
	Detections int
	Failures   int
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// RunRepository provides access to run rows.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

// Create inserts r, assigning an ID and start time when missing.
func (r *RunRepository) Create(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.State == "" {
		run.State = StateRunning
	}

	_, err := r.db.Exec(
		`INSERT INTO runs (id, mode, source, model, threshold, state, frames, detections, failures, error, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Mode), run.Source, run.Model, run.Threshold, run.State,
		run.Frames, run.Detections, run.Failures, run.Error, run.StartedAt,
	)
	return errors.Wrap(err, "insert run")
}

// Finish stores the final counters and state of a run.
func (r *RunRepository) Finish(run *Run) error {
	now := time.Now()
	run.FinishedAt = &now

	result, err := r.db.Exec(
		`UPDATE runs SET state = ?, frames = ?, detections = ?, failures = ?, error = ?, finished_at = ?
		 WHERE id = ?`,
		run.State, run.Frames, run.Detections, run.Failures, run.Error, now, run.ID,
	)
	if err != nil {
		return errors.Wrap(err, "finish run")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(id string) (*Run, error) {
	row := r.db.QueryRow(
		`SELECT id, mode, source, model, threshold, state, frames, detections, failures, error, started_at, finished_at
		 FROM runs WHERE id = ?`,
		id,
	)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return run, nil
}

// List returns the most recent runs first, at most limit rows (all when
// limit <= 0).
func (r *RunRepository) List(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(
		`SELECT id, mode, source, model, threshold, state, frames, detections, failures, error, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// Delete removes a run and, through the foreign key, its artifacts.
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	run := &Run{}
	var mode string
	var finished sql.NullTime

	err := s.Scan(&run.ID, &mode, &run.Source, &run.Model, &run.Threshold, &run.State,
		&run.Frames, &run.Detections, &run.Failures, &run.Error, &run.StartedAt, &finished)
	if err != nil {
		return nil, err
	}

	run.Mode = Mode(mode)
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return run, nil
}
