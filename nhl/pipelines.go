package nhl

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/briangreenhill/rinkjoin/etl"
	"github.com/briangreenhill/rinkjoin/outbound"
	"github.com/briangreenhill/rinkjoin/pathexpr"
	"github.com/briangreenhill/rinkjoin/record"
)

const (
	TeamHandle   = "TeamPipeline"
	PlayerHandle = "PlayerPipeline"

	// OpponentTransform is the registered name of OpponentName.
	OpponentTransform = "opponent"
)

// TeamPipeline takes {id, startDate, endDate} and produces team details,
// season stats and the first game of the season.
func TeamPipeline(api outbound.CatalogConfig) etl.Definition {
	return etl.Definition{
		Handle:   TeamHandle,
		Catalogs: []outbound.CatalogConfig{api},
		WorkUnits: []etl.WorkUnitConfig{
			{
				API:      CatalogSlug,
				Endpoint: "TeamByID",
				Priority: 1,
				Rename: []etl.RenameRule{
					{Find: "teams[0][id]", Replace: "teamId"},
					{Find: "teams[0][name]", Replace: "teamName"},
				},
			},
			{
				API:      CatalogSlug,
				Endpoint: "TeamSchedule",
				Priority: 3,
				DependentModifiers: []etl.Dependency{
					{Remote: "teamId", ContextKey: "teamId"},
					{Remote: "startDate", ContextKey: "startDate"},
					{Remote: "endDate", ContextKey: "endDate"},
				},
			},
			{
				API:             CatalogSlug,
				Endpoint:        "TeamStats",
				Priority:        2,
				Rename:          []etl.RenameRule{{Find: "teams[0][id]", Replace: "teamId"}},
				DependentParams: []etl.Dependency{{Remote: "id", ContextKey: "teamId"}},
			},
		},
		Output: []pathexpr.Rule{
			{Find: "id", Replace: "TeamID"},
			{Find: "teams[0][name]", Replace: "TeamName"},
			{Find: "teams[0][venue][name]", Replace: "TeamVenueName"},
			{Find: "stats[0][splits][0][stat][gamesPlayed]", Replace: "GamesPlayed"},
			{Find: "stats[0][splits][0][stat][wins]", Replace: "GamesWon"},
			{Find: "stats[0][splits][0][stat][losses]", Replace: "GamesLost"},
			{Find: "stats[0][splits][0][stat][pts]", Replace: "Points"},
			{Find: "stats[0][splits][0][stat][goalsPerGame]", Replace: "GoalsPerGame"},
			{Find: "dates[0][games][0][gameDate]", Replace: "DateOfFirstGameInSeason"},
			{Find: "dates[0][games][0][teams]", Replace: "OpponentInFirstGameInSeason", Transform: OpponentName},
		},
	}
}

// PlayerPipeline takes {id, season, stats} and produces player details and
// single season totals.
func PlayerPipeline(api outbound.CatalogConfig) etl.Definition {
	return etl.Definition{
		Handle:   PlayerHandle,
		Catalogs: []outbound.CatalogConfig{api},
		WorkUnits: []etl.WorkUnitConfig{
			{
				API:             CatalogSlug,
				Endpoint:        "PlayerInfo",
				Priority:        1,
				Rename:          []etl.RenameRule{{Find: "people[0][id]", Replace: "personId"}},
				DependentParams: []etl.Dependency{{Remote: "id", ContextKey: "personId"}},
			},
			{
				API:             CatalogSlug,
				Endpoint:        "PlayerStatsBySeason",
				Priority:        2,
				DependentParams: []etl.Dependency{{Remote: "id", ContextKey: "personId"}},
				DependentModifiers: []etl.Dependency{
					{Remote: "stats", ContextKey: "stats"},
					{Remote: "season", ContextKey: "season"},
				},
			},
		},
		Output: []pathexpr.Rule{
			{Find: "personId", Replace: "PlayerID"},
			{Find: "people[0][fullName]", Replace: "PlayerName"},
			{Find: "people[0][currentTeam][name]", Replace: "CurrentTeam"},
			{Find: "people[0][currentAge]", Replace: "PlayerAge"},
			{Find: "people[0][primaryNumber]", Replace: "PlayerNumber"},
			{Find: "people[0][primaryPosition][name]", Replace: "PlayerPosition"},
			{Find: "people[0][rookie]", Replace: "IsCurrentlyRookie"},
			{Find: "stats[0][splits][0][stat][assists]", Replace: "Assists"},
			{Find: "stats[0][splits][0][stat][goals]", Replace: "Goals"},
			{Find: "stats[0][splits][0][stat][games]", Replace: "PlayerGames"},
			{Find: "stats[0][splits][0][stat][hits]", Replace: "PlayerHits"},
			{Find: "stats[0][splits][0][stat][points]", Replace: "PlayerPoints"},
		},
	}
}

// OpponentName picks the team in a schedule game's {away, home} pair whose
// id differs from the TeamID already projected. It returns "N/A" when the
// pair is incomplete.
func OpponentName(value any, _ *record.Record, partial *record.Record) any {
	teams, ok := value.(map[string]any)
	if !ok {
		return "N/A"
	}
	away, okAway := teams["away"]
	home, okHome := teams["home"]
	if !okAway || !okHome || away == nil || home == nil {
		return "N/A"
	}

	awayID, _ := pathexpr.Resolve(away, "team.id")
	ours, _ := partial.Get("TeamID")
	pick := away
	if sameID(awayID, ours) {
		pick = home
	}
	name, ok := pathexpr.Resolve(pick, "team.name")
	if !ok {
		return "N/A"
	}
	return name
}

func sameID(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	af, errA := cast.ToFloat64E(a)
	bf, errB := cast.ToFloat64E(b)
	if errA == nil && errB == nil {
		return af == bf
	}
	return cast.ToString(a) == cast.ToString(b)
}

// Transforms returns the custom transforms the NHL pipelines refer to.
func Transforms() *etl.Transforms {
	t := etl.NewTransforms()
	_ = t.Register(OpponentTransform, OpponentName)
	return t
}

// Register builds both pipelines against api and adds them to pipelines.
func Register(pipelines *etl.Registry, reg *outbound.Registry, api outbound.CatalogConfig, opts ...etl.Option) error {
	for _, def := range []etl.Definition{TeamPipeline(api), PlayerPipeline(api)} {
		p, err := etl.New(def, reg, opts...)
		if err != nil {
			return fmt.Errorf("build %s: %w", def.Handle, err)
		}
		pipelines.Register(p)
	}
	return nil
}
