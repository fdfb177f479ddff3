package export

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/rinkjoin/record"
)

func TestWriteCSV(t *testing.T) {
	rec := record.Of(
		"TeamID", float64(1),
		"TeamName", "New Jersey Devils",
		"GoalsPerGame", 2.797,
		"Venue", "Prudential Center, Newark",
		"IsRookie", false,
		"Missing", nil,
		"Nested", map[string]any{"a": float64(1)},
	)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rec))
	assert.Equal(t,
		"TeamID,TeamName,GoalsPerGame,Venue,IsRookie,Missing,Nested\n"+
			"1,New Jersey Devils,2.797,\"Prudential Center, Newark\",false,,\"{\"\"a\"\":1}\"\n",
		buf.String())
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, record.New()))
	assert.Equal(t, "\n\n", buf.String())
}

func exerciseSink(t *testing.T, s Sink) {
	t.Helper()
	ctx := context.Background()
	runID := uuid.New()

	_, err := s.Load(ctx, runID)
	assert.True(t, errors.Is(err, ErrNotFound))

	rec := record.Of("PlayerID", float64(8471214), "PlayerName", "Alex Ovechkin")
	require.NoError(t, s.Save(ctx, "PlayerPipeline", runID, rec))

	saved, err := s.Load(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, runID, saved.RunID)
	assert.Equal(t, "PlayerPipeline", saved.Handle)
	assert.Equal(t, []string{"PlayerID", "PlayerName"}, saved.Record.Keys())
	assert.False(t, saved.CreatedAt.IsZero())

	// Saving the same run again replaces it.
	require.NoError(t, s.Save(ctx, "PlayerPipeline", runID, record.Of("PlayerID", float64(1))))
	saved, err = s.Load(ctx, runID)
	require.NoError(t, err)
	v, _ := saved.Record.Get("PlayerID")
	assert.Equal(t, float64(1), v)
}

func TestSQLiteSink(t *testing.T) {
	s, err := NewSQLiteSink(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	exerciseSink(t, s)
}

func TestPostgresSink(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping postgres sink test")
	}
	s, err := NewPostgresSink(context.Background(), dsn)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	exerciseSink(t, s)
}
