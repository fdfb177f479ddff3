package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixtureAPI serves the nhl package fixtures under /api/v1.
func fixtureAPI(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	routes := map[string]string{
		"/api/v1/teams/1":              "team_1.json",
		"/api/v1/teams/1/stats":        "team_1_stats.json",
		"/api/v1/schedule":             "schedule_1.json",
		"/api/v1/people/8471214":       "person_8471214.json",
		"/api/v1/people/8471214/stats": "person_8471214_stats.json",
	}
	var hits atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		name, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		body, err := os.ReadFile(filepath.Join("nhl", "testdata", name))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(ts.Close)
	return ts, &hits
}

func withEnv(t *testing.T, baseURI string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("NHL_BASE_URI", baseURI)
	t.Setenv("CACHE_DIR", filepath.Join(dir, "cache"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("SINK", "none")
	return dir
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want cliArgs
	}{
		{"defaults", nil, cliArgs{ID: 1, Output: "out.csv"}},
		{"all keys", []string{"id=15", "season=2018", "output=x.csv"}, cliArgs{ID: 15, Season: "2018", Output: "x.csv"}},
		{"invalid id", []string{"id=abc"}, cliArgs{ID: 1, Output: "out.csv"}},
		{"negative id", []string{"id=-3"}, cliArgs{ID: 1, Output: "out.csv"}},
		{"malformed pairs", []string{"id", "season=1=2", "foo=bar"}, cliArgs{ID: 1, Output: "out.csv"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseArgs(tt.args, "out.csv", zerolog.Nop()))
		})
	}
}

func TestRunCLIHelpAndVersion(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runCLI([]string{"help"}, &out))
	assert.Contains(t, out.String(), "Usage: rinkjoin")

	out.Reset()
	require.NoError(t, runCLI([]string{"version"}, &out))
	assert.Equal(t, "rinkjoin v"+version+"\n", out.String())

	assert.Error(t, runCLI([]string{"bogus"}, &out))
}

func TestRunCLITeam(t *testing.T) {
	ts, hits := fixtureAPI(t)
	dir := withEnv(t, ts.URL+"/api")
	output := filepath.Join(dir, "team.csv")

	var out bytes.Buffer
	require.NoError(t, runCLI([]string{"team", "id=1", "season=2019", "output=" + output}, &out))

	saved, err := os.ReadFile(output)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(saved)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "TeamID,TeamName,TeamVenueName,GamesPlayed,GamesWon,GamesLost,Points,GoalsPerGame,DateOfFirstGameInSeason,OpponentInFirstGameInSeason", lines[0])
	assert.Equal(t, "1,New Jersey Devils,Prudential Center,69,28,29,68,2.797,2019-10-04T23:00:00Z,Winnipeg Jets", lines[1])
	assert.Contains(t, out.String(), "saved to "+output)
	assert.Equal(t, int64(3), hits.Load())

	// The cache lives on disk, so a second invocation makes no requests.
	require.NoError(t, runCLI([]string{"team", "id=1", "season=2019", "output=" + output}, &out))
	assert.Equal(t, int64(3), hits.Load())
}

func TestRunCLIPlayerFallsBackToCurrentSeason(t *testing.T) {
	ts, _ := fixtureAPI(t)
	dir := withEnv(t, ts.URL+"/api")
	output := filepath.Join(dir, "player.csv")

	orig := now
	now = func() time.Time { return time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC) }
	defer func() { now = orig }()

	var out bytes.Buffer
	require.NoError(t, runCLI([]string{"player", "id=8471214", "season=1800", "output=" + output}, &out))
	assert.Contains(t, out.String(), "Alex Ovechkin")
}

func TestRunCLIUnknownTeam(t *testing.T) {
	ts, _ := fixtureAPI(t)
	withEnv(t, ts.URL+"/api")
	var out bytes.Buffer
	err := runCLI([]string{"team", "id=999", "output="}, &out)
	assert.Error(t, err)
}

func TestRunCLIListAndGC(t *testing.T) {
	ts, _ := fixtureAPI(t)
	withEnv(t, ts.URL+"/api")

	var out bytes.Buffer
	require.NoError(t, runCLI([]string{"list"}, &out))
	assert.Equal(t, "PlayerPipeline\nTeamPipeline\n", out.String())

	out.Reset()
	require.NoError(t, runCLI([]string{"gc"}, &out))
	assert.Contains(t, out.String(), "NHLPublicAPI: removed 0 expired entries")
}
