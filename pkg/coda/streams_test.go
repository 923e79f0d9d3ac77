package coda

import (
	"testing"

	"github.com/ohler55/ojg/oj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/coda-tap/internal/testutil"
	"github.com/Sternrassler/coda-tap/pkg/engine"
	"github.com/Sternrassler/coda-tap/pkg/schema"
	"github.com/Sternrassler/coda-tap/pkg/sink"
)

func TestGraph(t *testing.T) {
	g, err := Graph()
	require.NoError(t, err)
	assert.Equal(t, 8, g.Len())

	var order []string
	g.Walk(func(i int) { order = append(order, g.Definition(i).Name) })
	assert.Equal(t, []string{
		"docs", "pages", "formulas", "controls", "permissions", "tables", "columns", "rows",
	}, order)

	rows, ok := g.Index(StreamRows)
	require.True(t, ok)
	assert.Equal(t, []string{KeyDocID, KeyTable}, g.GuaranteedKeys(rows))
}

func TestStreamNames(t *testing.T) {
	assert.Equal(t, []string{
		"docs", "pages", "formulas", "controls", "permissions", "tables", "columns", "rows",
	}, StreamNames())
}

func TestDefinitions_FreshValues(t *testing.T) {
	a := Definitions()
	a[0].Name = "changed"
	assert.Equal(t, StreamDocs, Definitions()[0].Name)
}

// discover resolves every stream against the bundled description.
func discover(t *testing.T) *sink.Recorder {
	t.Helper()

	parsed, err := oj.ParseString(testutil.CodaDescription)
	require.NoError(t, err)
	doc, ok := parsed.(map[string]any)
	require.True(t, ok)

	g, err := Graph()
	require.NoError(t, err)

	o, err := engine.New(g, schema.NewResolver(schema.NewCache(doc)), nopFetcher{}, sink.NewRecorder(), engine.Config{})
	require.NoError(t, err)

	catalog := sink.NewRecorder()
	require.NoError(t, o.Discover(catalog))
	return catalog
}

func properties(t *testing.T, catalog *sink.Recorder, stream string) map[string]any {
	t.Helper()
	s, _, ok := catalog.Schema(stream)
	require.True(t, ok, "no schema for %s", stream)
	props, ok := s["properties"].(map[string]any)
	require.True(t, ok)
	return props
}

func TestSchemas_ResolveAgainstDescription(t *testing.T) {
	catalog := discover(t)
	assert.Equal(t, StreamNames(), catalog.Streams())

	wantKeys := map[string][]string{
		StreamDocs:        {"id"},
		StreamPages:       {KeyDocID, "id"},
		StreamFormulas:    {KeyDocID, "id"},
		StreamControls:    {KeyDocID, "id"},
		StreamPermissions: {KeyDocID, "id"},
		StreamTables:      {KeyDocID, "id"},
		StreamColumns:     {KeyDocID, KeyTable, "id"},
		StreamRows:        {KeyDocID, KeyTable, "id"},
	}
	for _, name := range StreamNames() {
		s, keys, _ := catalog.Schema(name)
		assert.Equal(t, wantKeys[name], keys, name)
		assert.NotEmpty(t, s["description"], name)
	}
}

func TestSchemas_ContextFields(t *testing.T) {
	catalog := discover(t)

	assert.NotContains(t, properties(t, catalog, StreamDocs), KeyDocID)
	assert.Contains(t, properties(t, catalog, StreamPages), KeyDocID)
	assert.NotContains(t, properties(t, catalog, StreamPages), KeyTable)

	rows := properties(t, catalog, StreamRows)
	assert.Equal(t, map[string]any{"type": "string"}, rows[KeyDocID])
	assert.Equal(t, map[string]any{"type": "string"}, rows[KeyTable])
}

func TestSchemas_Patches(t *testing.T) {
	catalog := discover(t)

	principal := properties(t, catalog, StreamPermissions)["principal"].(map[string]any)
	assert.Equal(t, "object", principal["type"])

	format := properties(t, catalog, StreamColumns)["format"].(map[string]any)
	assert.Equal(t, "object", format["type"])

	values := properties(t, catalog, StreamRows)["values"].(map[string]any)
	assert.NotContains(t, values, "additionalProperties")
	assert.Equal(t, "object", values["type"])

	formulas := properties(t, catalog, StreamFormulas)
	assert.NotContains(t, formulas, "value")
	for _, f := range []string{"value__string", "value__number", "value__boolean"} {
		assert.Contains(t, formulas, f)
	}
}
