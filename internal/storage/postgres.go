package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bdougie/physeval/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS evaluation_runs (
    id UUID PRIMARY KEY,
    model VARCHAR(255) NOT NULL,
    total_frames INTEGER NOT NULL,
    llm_prompt_type VARCHAR(64) NOT NULL,
    started_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS verdicts (
    id SERIAL PRIMARY KEY,
    run_id UUID REFERENCES evaluation_runs(id) ON DELETE CASCADE,
    video_id VARCHAR(255) NOT NULL,
    model_name VARCHAR(255) NOT NULL,
    total_frames INTEGER NOT NULL,
    llm_prompt_type VARCHAR(64) NOT NULL,
    is_two_step BOOLEAN NOT NULL,
    response TEXT NOT NULL,
    llm_prompt TEXT NOT NULL,
    attempts INTEGER NOT NULL,
    data JSONB,
    labels vector,
    created_at TIMESTAMPTZ NOT NULL,
    UNIQUE(run_id, video_id)
);

CREATE INDEX IF NOT EXISTS idx_verdicts_video_id ON verdicts(video_id);
`

// PostgresStore mirrors verdicts into PostgreSQL, with the parsed Yes/No
// labels stored as a pgvector column.
type PostgresStore struct {
	pool *pgxpool.Pool
	run  Run
}

// NewPostgresStore connects to the database and registers run.
func NewPostgresStore(ctx context.Context, connString string, run Run) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{pool: pool, run: run}
	if err := s.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.registerRun(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema creates the vector extension and tables if they don't exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) registerRun(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO evaluation_runs (id, model, total_frames, llm_prompt_type, started_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO NOTHING`,
		s.run.ID.String(), s.run.Model, s.run.Frames, string(s.run.Variant), s.run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to register run: %w", err)
	}
	return nil
}

// SaveVerdict inserts the verdict under the current run.
func (s *PostgresStore) SaveVerdict(ctx context.Context, v *models.Verdict) (string, error) {
	var id int
	err := s.pool.QueryRow(ctx,
		`INSERT INTO verdicts
        (run_id, video_id, model_name, total_frames, llm_prompt_type, is_two_step,
         response, llm_prompt, attempts, data, labels, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        ON CONFLICT (run_id, video_id) DO UPDATE SET response = EXCLUDED.response, labels = EXCLUDED.labels
        RETURNING id`,
		s.run.ID.String(), v.VideoID, v.ModelName, v.Frames, string(v.PromptType), v.IsTwoStep,
		v.ResponseText(), v.Prompt, v.Attempts, v.Data, responseVector(v.ResponseText()), v.CreatedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to store verdict: %w", err)
	}
	return "postgres:verdicts/" + strconv.Itoa(id), nil
}
