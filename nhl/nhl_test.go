package nhl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/rinkjoin/etl"
	"github.com/briangreenhill/rinkjoin/outbound"
	"github.com/briangreenhill/rinkjoin/record"
)

// mockStatsAPI serves testdata fixtures under /api/v1 and records the
// request URIs it saw.
func mockStatsAPI(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	routes := map[string]string{
		"/api/v1/teams/1":              "team_1.json",
		"/api/v1/teams/1/stats":        "team_1_stats.json",
		"/api/v1/schedule":             "schedule_1.json",
		"/api/v1/people/8471214":       "person_8471214.json",
		"/api/v1/people/8471214/stats": "person_8471214_stats.json",
	}
	var mu sync.Mutex
	var seen []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.URL.RequestURI())
		mu.Unlock()
		name, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		body, err := os.ReadFile(filepath.Join("testdata", name))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(ts.Close)
	return ts, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), seen...)
	}
}

func TestCatalogIsValid(t *testing.T) {
	c, err := outbound.NewCatalog(Catalog())
	require.NoError(t, err)
	assert.Equal(t, "https://statsapi.web.nhl.com/api/v1/", c.RequestBaseURI())
	assert.Len(t, c.Endpoints(), 7)
	for _, ep := range c.Endpoints() {
		assert.True(t, ep.Cacheable, ep.Slug)
	}
}

func TestTeamPipeline(t *testing.T) {
	ts, seen := mockStatsAPI(t)
	reg := outbound.NewRegistry(t.TempDir(), outbound.NewHTTPTransport())
	p, err := etl.New(TeamPipeline(CatalogAt(ts.URL+"/api")), reg)
	require.NoError(t, err)

	out, err := p.Run(context.Background(), TeamInput(1, 2019))
	require.NoError(t, err)

	got, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"TeamID": 1,
		"TeamName": "New Jersey Devils",
		"TeamVenueName": "Prudential Center",
		"GamesPlayed": 69,
		"GamesWon": 28,
		"GamesLost": 29,
		"Points": 68,
		"GoalsPerGame": 2.797,
		"DateOfFirstGameInSeason": "2019-10-04T23:00:00Z",
		"OpponentInFirstGameInSeason": "Winnipeg Jets"
	}`, string(got))

	uris := seen()
	require.Len(t, uris, 3)
	assert.Equal(t, "/api/v1/teams/1", uris[0])
	assert.Equal(t, "/api/v1/teams/1/stats", uris[1])
	assert.Equal(t, "/api/v1/schedule?startDate=2019-10-01&endDate=2020-05-01&teamId=1", uris[2])

	// A second run is served from the cache.
	_, err = p.Run(context.Background(), TeamInput(1, 2019))
	require.NoError(t, err)
	assert.Len(t, seen(), 3)
}

func TestPlayerPipeline(t *testing.T) {
	ts, seen := mockStatsAPI(t)
	reg := outbound.NewRegistry("", outbound.NewHTTPTransport())
	p, err := etl.New(PlayerPipeline(CatalogAt(ts.URL+"/api")), reg)
	require.NoError(t, err)

	out, err := p.Run(context.Background(), PlayerInput(8471214, 2019))
	require.NoError(t, err)

	got, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"PlayerID": 8471214,
		"PlayerName": "Alex Ovechkin",
		"CurrentTeam": "Washington Capitals",
		"PlayerAge": 35,
		"PlayerNumber": "8",
		"PlayerPosition": "Left Wing",
		"IsCurrentlyRookie": false,
		"Assists": 19,
		"Goals": 48,
		"PlayerGames": 68,
		"PlayerHits": 164,
		"PlayerPoints": 67
	}`, string(got))
	assert.Equal(t, "/api/v1/people/8471214/stats?season=20192020&stats=statsSingleSeason", seen()[1])
}

func TestTeamPipelineUnknownTeam(t *testing.T) {
	ts, _ := mockStatsAPI(t)
	reg := outbound.NewRegistry("", outbound.NewHTTPTransport())
	p, err := etl.New(TeamPipeline(CatalogAt(ts.URL+"/api")), reg)
	require.NoError(t, err)

	out, err := p.Run(context.Background(), TeamInput(999, 2019))
	assert.Nil(t, out)
	var te *outbound.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusNotFound, te.StatusCode)
}

func TestOpponentName(t *testing.T) {
	teams := func(awayID, homeID float64) map[string]any {
		return map[string]any{
			"away": map[string]any{"team": map[string]any{"id": awayID, "name": "Away"}},
			"home": map[string]any{"team": map[string]any{"id": homeID, "name": "Home"}},
		}
	}
	tests := []struct {
		name   string
		value  any
		teamID any
		want   any
	}{
		{"we are home", teams(52, 1), 1, "Away"},
		{"we are away", teams(1, 52), 1, "Home"},
		{"id from decoded json", teams(1, 52), float64(1), "Home"},
		{"id as string", teams(1, 52), "1", "Home"},
		{"missing home", map[string]any{"away": map[string]any{}}, 1, "N/A"},
		{"not an object", "x", 1, "N/A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			partial := record.Of("TeamID", tt.teamID)
			assert.Equal(t, tt.want, OpponentName(tt.value, record.New(), partial))
		})
	}
}

func TestTransforms(t *testing.T) {
	fn, ok := Transforms().Lookup(OpponentTransform)
	require.True(t, ok)
	assert.NotNil(t, fn)
}

func TestRegister(t *testing.T) {
	pipelines := etl.NewRegistry()
	require.NoError(t, Register(pipelines, outbound.NewRegistry("", outbound.NewHTTPTransport()), Catalog()))
	assert.Equal(t, []string{PlayerHandle, TeamHandle}, pipelines.List())
}

func TestSeasonHelpers(t *testing.T) {
	start, end := SeasonWindow(2019)
	assert.Equal(t, "2019-10-01", start)
	assert.Equal(t, "2020-05-01", end)
	assert.Equal(t, "20192020", SeasonToken(2019))

	in := TeamInput(1, 2019)
	assert.Equal(t, []string{"id", "startDate", "endDate"}, in.Keys())
	pin := PlayerInput(8471214, 2019)
	stats, _ := pin.Get("stats")
	assert.Equal(t, DefaultStatType, stats)
}

func TestResolveSeason(t *testing.T) {
	march := time.Date(2020, time.March, 3, 0, 0, 0, 0, time.UTC)
	november := time.Date(2020, time.November, 3, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		raw      string
		now      time.Time
		want     int
		fallback bool
	}{
		{"2019", march, 2019, false},
		{" 2018 ", march, 2018, false},
		{"", march, 2019, true},
		{"abc", march, 2019, true},
		{"1800", march, 2019, true},
		{"2031", march, 2019, true},
		{"", november, 2020, true},
		{"2020", november, 2020, false},
	}
	for _, tt := range tests {
		got, fallback := ResolveSeason(tt.raw, tt.now)
		assert.Equal(t, tt.want, got, "raw %q", tt.raw)
		assert.Equal(t, tt.fallback, fallback, "raw %q", tt.raw)
	}
}
