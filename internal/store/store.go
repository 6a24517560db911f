// Package store persists analysis run records in SQLite. One record
// per run, written once after the dynamic pipeline completes; fusion
// columns are attached later, exactly once, when the verdict exists.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"whiterabbit/internal/fusion"
	"whiterabbit/internal/logging"
)

// RunRecord is one persisted analysis run.
type RunRecord struct {
	ID         string
	Package    string
	StartedAt  time.Time
	FinishedAt time.Time
	RunDir     string
	Features   map[string]int64
	Degraded   []string
	Fusion     *fusion.Outcome // nil until attached
}

// Store wraps the SQLite database.
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
}

// Open initializes the SQLite database at the given path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		package TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		run_dir TEXT,
		features TEXT,
		degraded TEXT,
		combined_probability REAL,
		certainty REAL,
		final_classification TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_package ON runs(package);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun inserts a run record. Records are write-once: saving an
// existing id is an error.
func (s *Store) SaveRun(rec RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	features, err := json.Marshal(rec.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}
	degraded, err := json.Marshal(rec.Degraded)
	if err != nil {
		return fmt.Errorf("marshal degraded list: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO runs (id, package, started_at, finished_at, run_dir, features, degraded)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Package, rec.StartedAt.UTC(), rec.FinishedAt.UTC(), rec.RunDir, string(features), string(degraded))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rec.ID, err)
	}

	logging.Store("saved run %s (%s, %d features)", rec.ID, rec.Package, len(rec.Features))
	return nil
}

// AttachFusion fills the fusion columns of an existing run record.
// Each record accepts a verdict exactly once.
func (s *Store) AttachFusion(runID string, outcome fusion.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE runs
		SET combined_probability = ?, certainty = ?, final_classification = ?
		WHERE id = ? AND final_classification IS NULL`,
		outcome.CombinedProbability, outcome.CertaintyScore, string(outcome.FinalClassification), runID)
	if err != nil {
		return fmt.Errorf("attach fusion to run %s: %w", runID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found or verdict already attached", runID)
	}

	logging.Store("attached fusion verdict %s to run %s", outcome.FinalClassification, runID)
	return nil
}

// GetRun loads one run record by id.
func (s *Store) GetRun(id string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, package, started_at, finished_at, run_dir, features, degraded,
		       combined_probability, certainty, final_classification
		FROM runs WHERE id = ?`, id)

	rec, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	return rec, err
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, package, started_at, finished_at, run_dir, features, degraded,
		       combined_probability, certainty, final_classification
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*RunRecord, error) {
	var rec RunRecord
	var features, degraded string
	var combined, certainty sql.NullFloat64
	var final sql.NullString

	err := sc.Scan(&rec.ID, &rec.Package, &rec.StartedAt, &rec.FinishedAt, &rec.RunDir,
		&features, &degraded, &combined, &certainty, &final)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(features), &rec.Features); err != nil {
		return nil, fmt.Errorf("parse features of run %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(degraded), &rec.Degraded); err != nil {
		return nil, fmt.Errorf("parse degraded list of run %s: %w", rec.ID, err)
	}

	if final.Valid {
		rec.Fusion = &fusion.Outcome{
			CombinedProbability: combined.Float64,
			CertaintyScore:      certainty.Float64,
			FinalClassification: fusion.Classification(final.String),
		}
	}
	return &rec, nil
}
