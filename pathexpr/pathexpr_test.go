package pathexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/rinkjoin/record"
)

func TestSegments(t *testing.T) {
	tests := []struct {
		expr string
		want []string
	}{
		{"a", []string{"a"}},
		{"a.b.c", []string{"a", "b", "c"}},
		{"a[0].b", []string{"a", "0", "b"}},
		{"a[0][b]", []string{"a", "0", "b"}},
		{".a.b", []string{"a", "b"}},
		{"", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Segments(tt.expr), tt.expr)
	}
}

func TestResolve(t *testing.T) {
	body, err := record.Decode([]byte(`{
		"a": [{"b": 5}],
		"teams": [{"id": 1, "venue": {"name": "Capital One Arena"}}],
		"n": 3
	}`))
	require.NoError(t, err)

	tests := []struct {
		expr string
		want any
		ok   bool
	}{
		{"a[0].b", float64(5), true},
		{"a.0.b", float64(5), true},
		{"teams[0].venue.name", "Capital One Arena", true},
		{".n", float64(3), true},
		{"a.b.c", nil, false},
		{"a[1].b", nil, false},
		{"a[-1]", nil, false},
		{"a[0x0]", nil, false},
		{"n.x", nil, false},
		{"missing", nil, false},
		{"", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, ok := Resolve(body, tt.expr)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolvePlainValues(t *testing.T) {
	v, ok := Resolve(map[string]any{"x": []any{"y"}}, "x[0]")
	require.True(t, ok)
	assert.Equal(t, "y", v)

	_, ok = Resolve(nil, "x")
	assert.False(t, ok)
	_, ok = Resolve("scalar", "x")
	assert.False(t, ok)
}

func TestRenameInPlace(t *testing.T) {
	rec, err := record.Decode([]byte(`{"teams":[{"id":1}]}`))
	require.NoError(t, err)

	assert.True(t, RenameInPlace(rec, "teams[0].id", "TeamID"))
	v, _ := rec.Get("TeamID")
	assert.Equal(t, float64(1), v)
	_, kept := rec.Get("teams")
	assert.True(t, kept)

	assert.False(t, RenameInPlace(rec, "teams[3].id", "Other"))
	_, ok := rec.Get("Other")
	assert.False(t, ok)
}

func TestProject(t *testing.T) {
	ctx, err := record.Decode([]byte(`{
		"teams": [{"id": 1, "name": "Washington Capitals"}],
		"roster": [{"person": {"fullName": "Alex Ovechkin"}}]
	}`))
	require.NoError(t, err)

	var seenPartial *record.Record
	out := Project(ctx, []Rule{
		{Find: "teams[0].id", Replace: "TeamID"},
		{Find: "teams[0].name", Replace: "TeamName"},
		{Find: "missing.path", Replace: "Missing"},
		{
			Find:    "roster[0].person.fullName",
			Replace: "Upper",
			Transform: func(v any, context, partial *record.Record) any {
				seenPartial = partial
				name, _ := partial.Get("TeamName")
				return v.(string) + " / " + name.(string)
			},
		},
		{
			Find:      "nothing",
			Replace:   "Skipped",
			Transform: func(any, *record.Record, *record.Record) any { return "x" },
		},
	})

	assert.Equal(t, []string{"TeamID", "TeamName", "Upper"}, out.Keys())
	v, _ := out.Get("Upper")
	assert.Equal(t, "Alex Ovechkin / Washington Capitals", v)
	assert.Same(t, out, seenPartial)

	// Renames land in the context too.
	_, ok := ctx.Get("TeamID")
	assert.True(t, ok)
}

func TestProjectKeepsPreseededKey(t *testing.T) {
	ctx := record.Of("season", "20192020")
	out := Project(ctx, []Rule{{Find: "nope", Replace: "season"}})
	v, ok := out.Get("season")
	require.True(t, ok)
	assert.Equal(t, "20192020", v)
}
