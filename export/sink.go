package export

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/briangreenhill/rinkjoin/record"
)

// ErrNotFound is returned by Load for an unknown run.
var ErrNotFound = errors.New("record not found")

// Saved is a stored pipeline result.
type Saved struct {
	RunID     uuid.UUID
	Handle    string
	Record    *record.Record
	CreatedAt time.Time
}

// Sink persists pipeline results keyed by run ID. Saving the same run twice
// replaces the earlier record.
type Sink interface {
	Save(ctx context.Context, handle string, runID uuid.UUID, rec *record.Record) error
	Load(ctx context.Context, runID uuid.UUID) (*Saved, error)
	Close() error
}
