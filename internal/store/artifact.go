package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/ayusman/detecta/internal/detection"
)

// Artifact is one item a run processed: the annotated output written for a
// source and the detections drawn on it, or the kind of error that stopped it.
type Artifact struct {
	ID         int64
	RunID      string
	Source     string
	OutputPath string
	Detections []detection.Detection
	ErrorKind  string
	CreatedAt  time.Time
}

// ArtifactRepository provides access to artifact rows.
type ArtifactRepository struct {
	db *sql.DB
}

// Artifacts returns the artifact repository for this store.
func (s *Store) Artifacts() *ArtifactRepository {
	return &ArtifactRepository{db: s.db}
}

// Create inserts a, setting its ID and creation time.
func (r *ArtifactRepository) Create(a *Artifact) error {
	a.CreatedAt = time.Now()

	dets := a.Detections
	if dets == nil {
		dets = []detection.Detection{}
	}
	data, err := json.Marshal(dets)
	if err != nil {
		return errors.Wrap(err, "encode detections")
	}

	result, err := r.db.Exec(
		`INSERT INTO artifacts (run_id, source, output_path, detections, error_kind, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.RunID, a.Source, a.OutputPath, string(data), a.ErrorKind, a.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "insert artifact")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

// ListByRun returns the artifacts of a run in insertion order.
func (r *ArtifactRepository) ListByRun(runID string) ([]*Artifact, error) {
	rows, err := r.db.Query(
		`SELECT id, run_id, source, output_path, detections, error_kind, created_at
		 FROM artifacts WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []*Artifact
	for rows.Next() {
		a := &Artifact{}
		var data string

		err := rows.Scan(&a.ID, &a.RunID, &a.Source, &a.OutputPath, &data, &a.ErrorKind, &a.CreatedAt)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &a.Detections); err != nil {
			return nil, errors.Wrapf(err, "decode detections of artifact %d", a.ID)
		}

		artifacts = append(artifacts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return artifacts, nil
}

// CountByRun returns how many artifacts a run recorded.
func (r *ArtifactRepository) CountByRun(runID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM artifacts WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}
