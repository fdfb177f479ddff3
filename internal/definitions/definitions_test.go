package definitions

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/rinkjoin/etl"
	"github.com/briangreenhill/rinkjoin/nhl"
	"github.com/briangreenhill/rinkjoin/outbound"
)

func TestLoad(t *testing.T) {
	set, err := Load(filepath.Join("testdata", "pipelines.yaml"), nhl.Transforms())
	require.NoError(t, err)

	require.Len(t, set.Catalogs, 1)
	api := set.Catalogs[0]
	assert.Equal(t, "NHLPublicAPI", api.Slug)
	require.Len(t, api.Endpoints, 3)
	assert.Equal(t, []string{"id"}, api.Endpoints[1].Parameters)
	assert.Equal(t, 60, api.Endpoints[1].TTLSeconds)
	assert.True(t, api.Endpoints[1].Cacheable)

	require.Len(t, set.Pipelines, 2)
	roster := set.Pipelines[0]
	assert.Equal(t, "RosterPipeline", roster.Handle)
	require.Len(t, roster.WorkUnits, 2)
	assert.Equal(t, []etl.RenameRule{{Find: "teams[0].id", Replace: "teamId"}}, roster.WorkUnits[0].Rename)
	assert.Equal(t, []etl.Dependency{{Remote: "id", ContextKey: "teamId"}}, roster.WorkUnits[1].DependentParams)
	assert.Len(t, roster.Output, 2)
	assert.Nil(t, roster.Output[0].Transform)

	firstGame := set.Pipelines[1]
	require.Len(t, firstGame.Output, 2)
	assert.NotNil(t, firstGame.Output[1].Transform)
}

func TestLoadRegistersPipelines(t *testing.T) {
	set, err := Load(filepath.Join("testdata", "pipelines.yaml"), nhl.Transforms())
	require.NoError(t, err)

	pipelines := etl.NewRegistry()
	reg := outbound.NewRegistry("", outbound.NewHTTPTransport())
	require.NoError(t, set.Register(pipelines, reg))
	assert.Equal(t, []string{"FirstGamePipeline", "RosterPipeline"}, pipelines.List())
	assert.Equal(t, []string{"NHLPublicAPI"}, reg.List())
}

func TestLoadUnknownTransform(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "unknown_transform.yaml"), nhl.Transforms())
	var ve *outbound.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "output[0].transform", ve.Field)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestConvertUnknownCatalog(t *testing.T) {
	_, err := convert(document{Pipelines: []pipelineDoc{{Handle: "x", Catalogs: []string{"Missing"}}}}, nil)
	var ve *outbound.ValidationError
	assert.True(t, errors.As(err, &ve))
}
