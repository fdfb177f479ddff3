package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/briangreenhill/rinkjoin/record"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS pipeline_records (
	run_id     TEXT PRIMARY KEY,
	handle     TEXT NOT NULL,
	record     TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
)`

// SQLiteSink stores records as JSON text in a local SQLite file.
type SQLiteSink struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteSink opens or creates the database at path.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteSink{db: db, now: time.Now}, nil
}

// Save implements Sink.
func (s *SQLiteSink) Save(ctx context.Context, handle string, runID uuid.UUID, rec *record.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pipeline_records (run_id, handle, record, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (run_id) DO UPDATE SET handle = excluded.handle, record = excluded.record`,
		runID.String(), handle, string(body), s.now().UTC())
	if err != nil {
		return fmt.Errorf("save run %s: %w", runID, err)
	}
	return nil
}

// Load implements Sink.
func (s *SQLiteSink) Load(ctx context.Context, runID uuid.UUID) (*Saved, error) {
	var (
		handle    string
		body      string
		createdAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT handle, record, created_at FROM pipeline_records WHERE run_id = ?`,
		runID.String()).Scan(&handle, &body, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	rec, err := record.Decode([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &Saved{RunID: runID, Handle: handle, Record: rec, CreatedAt: createdAt}, nil
}

// Close implements Sink.
func (s *SQLiteSink) Close() error { return s.db.Close() }

var _ Sink = (*SQLiteSink)(nil)
