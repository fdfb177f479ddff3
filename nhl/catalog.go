// Package nhl defines the NHL public stats API catalog and the team and
// player pipelines built on it.
package nhl

import "github.com/briangreenhill/rinkjoin/outbound"

const (
	CatalogSlug    = "NHLPublicAPI"
	DefaultBaseURI = "https://statsapi.web.nhl.com/api"
	Version        = "v1"
)

// Catalog returns the endpoint catalog rooted at DefaultBaseURI.
func Catalog() outbound.CatalogConfig {
	return CatalogAt(DefaultBaseURI)
}

// CatalogAt returns the catalog rooted at baseURI, for mirrors and tests.
func CatalogAt(baseURI string) outbound.CatalogConfig {
	return outbound.CatalogConfig{
		Slug:    CatalogSlug,
		BaseURI: baseURI,
		Version: Version,
		Endpoints: []outbound.EndpointConfig{
			{
				Slug:       "Teams",
				Path:       "teams",
				Modifiers:  []string{"expand", "teamId", "stats"},
				Cacheable:  true,
				TTLSeconds: 300,
			},
			{
				Slug:       "TeamByID",
				Path:       "teams/{id}",
				Parameters: []string{"id"},
				Modifiers:  []string{"expand", "stats"},
				Cacheable:  true,
			},
			{
				Slug:       "TeamRoster",
				Path:       "teams/{id}/roster",
				Parameters: []string{"id"},
				Cacheable:  true,
			},
			{
				Slug:       "TeamStats",
				Path:       "teams/{id}/stats",
				Parameters: []string{"id"},
				Cacheable:  true,
			},
			{
				Slug:      "TeamSchedule",
				Path:      "schedule",
				Modifiers: []string{"teamId", "startDate", "endDate"},
				Cacheable: true,
			},
			{
				Slug:       "PlayerInfo",
				Path:       "people/{id}",
				Parameters: []string{"id"},
				Cacheable:  true,
			},
			{
				Slug:       "PlayerStatsBySeason",
				Path:       "people/{id}/stats",
				Parameters: []string{"id"},
				Modifiers:  []string{"stats", "season"},
				Cacheable:  true,
			},
		},
	}
}
