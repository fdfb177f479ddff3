package outbound

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(CatalogConfig{
		Slug:    "NHLPublicAPI",
		BaseURI: "https://statsapi.web.nhl.com/api",
		Version: "v1",
		Endpoints: []EndpointConfig{
			{Slug: "TeamByID", Path: "teams/{id}", Parameters: []string{"id"}, Modifiers: []string{"expand", "stats"}, Cacheable: true},
			{Slug: "TeamRoster", Path: "teams/{id}/roster", Parameters: []string{"id"}, Cacheable: true, TTLSeconds: 60},
			{Slug: "Live", Path: "game/{id}/feed/live", Parameters: []string{"id"}},
			{Slug: "Submit", Path: "submit", Method: "post"},
		},
	})
	require.NoError(t, err)
	return c
}

func TestNewCatalogValidation(t *testing.T) {
	ok := EndpointConfig{Slug: "A", Path: "a"}
	tests := []struct {
		name  string
		cfg   CatalogConfig
		field string
	}{
		{"missing slug", CatalogConfig{BaseURI: "https://x"}, "slug"},
		{"missing base", CatalogConfig{Slug: "x"}, "base_uri"},
		{"relative base", CatalogConfig{Slug: "x", BaseURI: "/api"}, "base_uri"},
		{"endpoint without slug", CatalogConfig{Slug: "x", BaseURI: "https://x", Endpoints: []EndpointConfig{{Path: "a"}}}, "endpoints[0].slug"},
		{"duplicate slug", CatalogConfig{Slug: "x", BaseURI: "https://x", Endpoints: []EndpointConfig{ok, ok}}, "endpoints[1].slug"},
		{"endpoint without path", CatalogConfig{Slug: "x", BaseURI: "https://x", Endpoints: []EndpointConfig{{Slug: "A"}}}, "endpoints[0].path"},
		{"bad method", CatalogConfig{Slug: "x", BaseURI: "https://x", Endpoints: []EndpointConfig{{Slug: "A", Path: "a", Method: "FETCH"}}}, "endpoints[0].method"},
		{"negative ttl", CatalogConfig{Slug: "x", BaseURI: "https://x", Endpoints: []EndpointConfig{{Slug: "A", Path: "a", TTLSeconds: -1}}}, "endpoints[0].ttl_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCatalog(tt.cfg)
			require.Error(t, err)
			assert.Nil(t, c)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestRequestBaseURI(t *testing.T) {
	c := testCatalog(t)
	assert.Equal(t, "https://statsapi.web.nhl.com/api/v1/", c.RequestBaseURI())

	bare, err := NewCatalog(CatalogConfig{Slug: "bare", BaseURI: "https://example.com/"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/", bare.RequestBaseURI())
}

func TestResolve(t *testing.T) {
	c := testCatalog(t)

	ep, err := c.Resolve(Slug("TeamRoster"))
	require.NoError(t, err)
	assert.Equal(t, "teams/{id}/roster", ep.Path)
	assert.Equal(t, "GET", ep.Method)

	same, err := c.Resolve(Handle{Endpoint: ep})
	require.NoError(t, err)
	assert.Same(t, ep, same)

	submit, err := c.Resolve(Slug("Submit"))
	require.NoError(t, err)
	assert.Equal(t, "POST", submit.Method)

	foreign := &Endpoint{Slug: "TeamRoster", Path: "teams/{id}/roster"}
	for _, ref := range []EndpointRef{Slug("Nope"), Handle{Endpoint: foreign}, Handle{}, nil} {
		_, err := c.Resolve(ref)
		var ue *UnknownEndpointError
		require.True(t, errors.As(err, &ue), "ref %v", ref)
		assert.Equal(t, "NHLPublicAPI", ue.Catalog)
	}
}

func TestEndpointsIsACopy(t *testing.T) {
	c := testCatalog(t)
	eps := c.Endpoints()
	require.Len(t, eps, 4)
	eps[0] = nil
	assert.NotNil(t, c.Endpoints()[0])
}
