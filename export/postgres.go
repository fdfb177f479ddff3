package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/briangreenhill/rinkjoin/record"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS pipeline_records (
	run_id     UUID PRIMARY KEY,
	handle     TEXT NOT NULL,
	record     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresSink stores records as JSONB in pipeline_records.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink connects to databaseURL and creates the table if needed.
func NewPostgresSink(ctx context.Context, databaseURL string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create pipeline_records: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

// Save implements Sink.
func (s *PostgresSink) Save(ctx context.Context, handle string, runID uuid.UUID, rec *record.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO pipeline_records (run_id, handle, record, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (run_id) DO UPDATE SET handle = EXCLUDED.handle, record = EXCLUDED.record`,
		runID.String(), handle, body)
	if err != nil {
		return fmt.Errorf("save run %s: %w", runID, err)
	}
	return nil
}

// Load implements Sink.
func (s *PostgresSink) Load(ctx context.Context, runID uuid.UUID) (*Saved, error) {
	var (
		handle    string
		body      []byte
		createdAt time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT handle, record, created_at FROM pipeline_records WHERE run_id = $1`,
		runID.String()).Scan(&handle, &body, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	rec, err := record.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &Saved{RunID: runID, Handle: handle, Record: rec, CreatedAt: createdAt}, nil
}

// Close implements Sink.
func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}

var _ Sink = (*PostgresSink)(nil)
