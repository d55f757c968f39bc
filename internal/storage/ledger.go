package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/bdougie/physeval/internal/models"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	model         TEXT NOT NULL,
	total_frames  INTEGER NOT NULL,
	prompt_type   TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	finished_at   TEXT,
	processed     INTEGER NOT NULL DEFAULT 0,
	saved         INTEGER NOT NULL DEFAULT 0,
	skipped       INTEGER NOT NULL DEFAULT 0,
	failed        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS entries (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	video_id      TEXT NOT NULL,
	attempts      INTEGER NOT NULL,
	no_response   INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE INDEX IF NOT EXISTS idx_entries_run ON entries(run_id);
`

// RunCounts is the outcome tally recorded when a run finishes.
type RunCounts struct {
	Processed int
	Saved     int
	Skipped   int
	Failed    int
}

// RunRecord is one row of the ledger.
type RunRecord struct {
	Run
	FinishedAt  time.Time
	Counts      RunCounts
	NoResponses int
}

// Ledger is a local SQLite history of evaluate runs.
type Ledger struct {
	db  *sql.DB
	run Run
}

// OpenLedger opens (or creates) the ledger at path and starts run.
func OpenLedger(ctx context.Context, path string, run Run) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, ledgerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}

	l := &Ledger{db: db, run: run}
	if run.ID != uuid.Nil {
		_, err = db.ExecContext(ctx,
			`INSERT OR IGNORE INTO runs (run_id, model, total_frames, prompt_type, started_at) VALUES (?, ?, ?, ?, ?)`,
			run.ID.String(), run.Model, run.Frames, string(run.Variant), run.StartedAt.Format(time.RFC3339))
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("start run: %w", err)
		}
	}
	return l, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// SaveVerdict records that a verdict was produced in the current run.
func (l *Ledger) SaveVerdict(ctx context.Context, v *models.Verdict) (string, error) {
	noResponse := 0
	if v.ResponseText() == models.NoResponseSentinel {
		noResponse = 1
	}
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO entries (run_id, video_id, attempts, no_response, created_at) VALUES (?, ?, ?, ?, ?)`,
		l.run.ID.String(), v.VideoID, v.Attempts, noResponse, v.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("record entry: %w", err)
	}
	id, _ := res.LastInsertId()
	return fmt.Sprintf("ledger:entries/%d", id), nil
}

// Finish stores the final tally of the current run.
func (l *Ledger) Finish(ctx context.Context, counts RunCounts) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, processed = ?, saved = ?, skipped = ?, failed = ? WHERE run_id = ?`,
		time.Now().UTC().Format(time.RFC3339), counts.Processed, counts.Saved, counts.Skipped, counts.Failed, l.run.ID.String())
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// Runs lists recorded runs, most recent first.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT r.run_id, r.model, r.total_frames, r.prompt_type, r.started_at, COALESCE(r.finished_at, ''),
		       r.processed, r.saved, r.skipped, r.failed,
		       (SELECT COUNT(*) FROM entries e WHERE e.run_id = r.run_id AND e.no_response = 1)
		FROM runs r
		ORDER BY r.started_at DESC, r.rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			rec                   RunRecord
			id, variant           string
			startedAt, finishedAt string
		)
		if err := rows.Scan(&id, &rec.Model, &rec.Frames, &variant, &startedAt, &finishedAt,
			&rec.Counts.Processed, &rec.Counts.Saved, &rec.Counts.Skipped, &rec.Counts.Failed, &rec.NoResponses); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.Variant = models.Variant(variant)
		rec.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		if finishedAt != "" {
			rec.FinishedAt, _ = time.Parse(time.RFC3339, finishedAt)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
