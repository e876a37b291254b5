package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vector-viz/store"
)

func TestTableAppend(t *testing.T) {
	table := NewTable(2)
	table.Append(Row{ID: "a", Fields: map[string]any{"title": "first", "author": "x"}})
	table.Append(Row{ID: "", Coords: []float64{0.5}, Fields: map[string]any{"pages": 3, "title": "second"}})

	require.Equal(t, 2, table.Len())
	assert.Equal(t, []string{"author", "title", "pages"}, table.Fields)
	assert.Equal(t, []string{"id", "x", "y", "author", "title", "pages"}, table.Header())

	assert.Equal(t, UnknownID, table.Rows[1].ID)
	assert.Equal(t, []float64{0.5, 0}, table.Rows[1].Coords)
	assert.Equal(t, []float64{0, 0}, table.Rows[0].Coords)

	pos, ok := table.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, 0, pos)
	_, ok = table.Lookup("missing")
	assert.False(t, ok)
}

func TestNewTableDims(t *testing.T) {
	assert.Equal(t, 2, NewTable(2).Dims)
	assert.Equal(t, 3, NewTable(3).Dims)
	assert.Equal(t, 3, NewTable(7).Dims)
	assert.Equal(t, []string{"x", "y", "z"}, NewTable(3).Columns())

	var nilTable *Table
	assert.Equal(t, 0, nilTable.Len())
}

func TestFlatten(t *testing.T) {
	rec := store.Record{
		ID:     "doc-1",
		Values: []float64{1, 2, 3},
		Metadata: map[string]any{
			"x":        99.0,
			"y":        "ignored",
			"z":        "kept in 2D",
			"id":       "other",
			"category": "A",
			"score":    0.75,
			"tags":     []any{"a", "b"},
			"nested":   map[string]any{"k": 1.0},
		},
	}

	row := Flatten(rec, 2)
	assert.Equal(t, "doc-1", row.ID)
	assert.Equal(t, []float64{0, 0}, row.Coords)
	assert.NotContains(t, row.Fields, "x")
	assert.NotContains(t, row.Fields, "y")
	assert.NotContains(t, row.Fields, "id")
	assert.Equal(t, "kept in 2D", row.Fields["z"])
	assert.Equal(t, "A", row.Fields["category"])
	assert.Equal(t, 0.75, row.Fields["score"])
	assert.Equal(t, `["a","b"]`, row.Fields["tags"])
	assert.Equal(t, `{"k":1}`, row.Fields["nested"])

	row3 := Flatten(rec, 3)
	assert.NotContains(t, row3.Fields, "z")
	assert.Len(t, row3.Coords, 3)
}

func TestFlattenMetadataNeverOverridesCoordinates(t *testing.T) {
	table := NewTable(2)
	table.Append(Flatten(store.Record{ID: "a", Metadata: map[string]any{"x": 42.0}}, 2))

	assert.Equal(t, 0.0, table.Rows[0].Coords[0])
	assert.NotContains(t, table.Fields, "x")
}

func TestFlattenWithoutMetadata(t *testing.T) {
	row := Flatten(store.Record{}, 3)
	assert.Equal(t, UnknownID, row.ID)
	assert.Empty(t, row.Fields)
	assert.Equal(t, []float64{0, 0, 0}, row.Coords)
}
