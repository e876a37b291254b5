package pipeline

// placeholder used for rows whose record carries no identifier
const UnknownID = "unknown"

var axisNames = []string{"x", "y", "z"}

/*
Row is one flattened record: its identifier, its coordinates and the extra fields copied
from its metadata.

Coords always has the length of the table's dimensionality; coordinates default to zero
until the projection stage writes them.
*/
type Row struct {
	ID     string
	Coords []float64
	Fields map[string]any
}

/*
Table is an ordered collection of rows sharing one dimensionality.

Fields lists the extra field names in the order they were first seen.
*/
type Table struct {
	Dims   int
	Rows   []Row
	Fields []string

	seen  map[string]bool
	index map[string]int
	// positions of rows that carry UnknownID
	placeholders []int
}

/*
NewTable creates an empty table; dims other than 2 and 3 are treated as 3
*/
func NewTable(dims int) *Table {
	if dims != 2 && dims != 3 {
		dims = 3
	}
	return &Table{
		Dims:  dims,
		seen:  make(map[string]bool),
		index: make(map[string]int),
	}
}

/*
Columns returns the coordinate column names of the table
*/
func (t *Table) Columns() []string {
	return append([]string(nil), axisNames[:t.Dims]...)
}

/*
Header returns every column name: id, the coordinates and the extra fields
*/
func (t *Table) Header() []string {
	header := append([]string{"id"}, t.Columns()...)
	return append(header, t.Fields...)
}

/*
Append adds a row, filling in the placeholder id and default coordinates where missing
*/
func (t *Table) Append(row Row) {
	if t.seen == nil {
		t.seen = make(map[string]bool)
		t.index = make(map[string]int)
	}
	if row.ID == "" {
		row.ID = UnknownID
	}
	coords := make([]float64, t.Dims)
	copy(coords, row.Coords)
	row.Coords = coords
	if row.Fields == nil {
		row.Fields = map[string]any{}
	}

	for _, name := range sortedKeys(row.Fields) {
		if !t.seen[name] {
			t.seen[name] = true
			t.Fields = append(t.Fields, name)
		}
	}
	if row.ID == UnknownID {
		t.placeholders = append(t.placeholders, len(t.Rows))
	}
	if _, ok := t.index[row.ID]; !ok {
		t.index[row.ID] = len(t.Rows)
	}
	t.Rows = append(t.Rows, row)
}

/*
Lookup returns the position of the first row with the given id
*/
func (t *Table) Lookup(id string) (int, bool) {
	i, ok := t.index[id]
	return i, ok
}

/*
Len returns the number of rows
*/
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}
