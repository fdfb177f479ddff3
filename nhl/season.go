package nhl

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/briangreenhill/rinkjoin/record"
)

// MinSeason is the earliest season year accepted from callers.
const MinSeason = 1900

// DefaultStatType asks PlayerStatsBySeason for regular season totals.
const DefaultStatType = "statsSingleSeason"

// SeasonWindow returns the schedule range for the season opening in year.
// Seasons start in October and are over by May.
func SeasonWindow(year int) (startDate, endDate string) {
	return fmt.Sprintf("%04d-10-01", year), fmt.Sprintf("%04d-05-01", year+1)
}

// SeasonToken returns the API season identifier, e.g. 20192020.
func SeasonToken(year int) string {
	return fmt.Sprintf("%04d%04d", year, year+1)
}

// ResolveSeason parses raw as a season opening year. Missing, malformed or
// out of range input falls back to the most recently started season, in
// which case fallback is true.
func ResolveSeason(raw string, now time.Time) (year int, fallback bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err == nil && n >= MinSeason && n <= now.Year() {
		return n, false
	}
	if now.Month() >= time.October {
		return now.Year(), true
	}
	return now.Year() - 1, true
}

// TeamInput returns the initial bindings for TeamPipeline.
func TeamInput(id, season int) *record.Record {
	start, end := SeasonWindow(season)
	return record.Of("id", id, "startDate", start, "endDate", end)
}

// PlayerInput returns the initial bindings for PlayerPipeline.
func PlayerInput(id, season int) *record.Record {
	return record.Of("id", id, "season", SeasonToken(season), "stats", DefaultStatType)
}
