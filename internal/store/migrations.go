package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// One row per orchestrator run
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL CHECK(mode IN ('image', 'batch', 'video', 'camera')),
			source TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			threshold REAL NOT NULL,
			state TEXT NOT NULL DEFAULT 'running',
			frames INTEGER NOT NULL DEFAULT 0,
			detections INTEGER NOT NULL DEFAULT 0,
			failures INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			started_at DATETIME NOT NULL,
			finished_at DATETIME
		)`,

		// One row per persisted (or failed) artifact
		`CREATE TABLE IF NOT EXISTS artifacts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			source TEXT NOT NULL,
			output_path TEXT NOT NULL DEFAULT '',
			detections TEXT NOT NULL DEFAULT '[]',
			error_kind TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_artifacts_run_id ON artifacts(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
