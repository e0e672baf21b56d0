// Package ledger persists the run history: one row per accepted stage
// result, plus run bookkeeping, in a sqlite database next to the working
// directories. The weblog reads from here; the harness writes through the
// RecordSink interface.
package ledger

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/sidereal-data/reduction.report/internal/pipeline"
)

type DB struct {
	*sql.DB
}

// Open opens (or creates) the ledger database. The schema is managed by
// migrations; call MigrateUp before first use.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// One writer at a time keeps sqlite happy under the weblog's
	// concurrent reads.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	return &DB{db}, nil
}

// RecordRun registers a run before its first stage executes.
func (db *DB) RecordRun(runID, outputDir, recipe string, startedUnixNanos int64) error {
	_, err := db.Exec(`
		INSERT INTO runs (run_id, output_dir, recipe, started_unix_nanos)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET output_dir = excluded.output_dir
	`, runID, outputDir, recipe, startedUnixNanos)
	return err
}

// CompleteRun marks a run as finished.
func (db *DB) CompleteRun(runID string) error {
	res, err := db.Exec(`UPDATE runs SET completed = 1 WHERE run_id = ?`, runID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("unknown run %s", runID)
	}
	return nil
}

// RecordStage implements pipeline.RecordSink.
func (db *DB) RecordStage(rec pipeline.StageRecord) error {
	_, err := db.Exec(`
		INSERT INTO stage_records
			(run_id, stage_number, stage, vis, status, qa_score, err,
			 started_unix_nanos, ended_unix_nanos)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.StageNumber, rec.Stage, rec.Vis, string(rec.Status),
		rec.QAScore, rec.Err, rec.StartedUnixNanos, rec.EndedUnixNanos)
	if err != nil {
		return fmt.Errorf("failed to record stage %s: %w", rec.Stage, err)
	}
	return nil
}

// StagesForRun returns a run's stage records in stage order.
func (db *DB) StagesForRun(runID string) ([]pipeline.StageRecord, error) {
	rows, err := db.Query(`
		SELECT run_id, stage_number, stage, vis, status, qa_score, err,
		       started_unix_nanos, ended_unix_nanos
		FROM stage_records
		WHERE run_id = ?
		ORDER BY stage_number
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pipeline.StageRecord
	for rows.Next() {
		var rec pipeline.StageRecord
		var status string
		if err := rows.Scan(&rec.RunID, &rec.StageNumber, &rec.Stage, &rec.Vis,
			&status, &rec.QAScore, &rec.Err,
			&rec.StartedUnixNanos, &rec.EndedUnixNanos); err != nil {
			return nil, err
		}
		rec.Status = pipeline.Status(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RunSummary is one row of the weblog's run index.
type RunSummary struct {
	RunID            string
	Recipe           string
	OutputDir        string
	StartedUnixNanos int64
	Completed        bool
	Stages           int
	Failures         int
	MinQAScore       float64
}

// RunSummaries returns every known run, newest first, with per-run stage
// aggregates.
func (db *DB) RunSummaries() ([]RunSummary, error) {
	rows, err := db.Query(`
		SELECT r.run_id, r.recipe, r.output_dir, r.started_unix_nanos, r.completed,
		       COUNT(s.id),
		       COALESCE(SUM(CASE WHEN s.status = 'FAILURE' THEN 1 ELSE 0 END), 0),
		       COALESCE(MIN(s.qa_score), 1.0)
		FROM runs r
		LEFT JOIN stage_records s ON s.run_id = r.run_id
		GROUP BY r.run_id
		ORDER BY r.started_unix_nanos DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var completed int
		if err := rows.Scan(&s.RunID, &s.Recipe, &s.OutputDir, &s.StartedUnixNanos,
			&completed, &s.Stages, &s.Failures, &s.MinQAScore); err != nil {
			return nil, err
		}
		s.Completed = completed != 0
		out = append(out, s)
	}
	return out, rows.Err()
}
