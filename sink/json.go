package sink

import (
	"math"

	"vector-viz/pipeline"
)

/*
Records converts table to JSON-ready row objects.

Every object carries id, the coordinates and every extra field of the table; missing values
and non-finite numbers become nil so they encode as null.
*/
func Records(table *pipeline.Table) []map[string]any {
	if table == nil {
		return []map[string]any{}
	}

	columns := table.Columns()
	out := make([]map[string]any, 0, len(table.Rows))
	for _, row := range table.Rows {
		obj := make(map[string]any, 1+len(columns)+len(table.Fields))
		obj["id"] = row.ID
		for d, name := range columns {
			obj[name] = nil
			if d < len(row.Coords) {
				obj[name] = finite(row.Coords[d])
			}
		}
		for _, name := range table.Fields {
			obj[name] = finite(row.Fields[name])
		}
		out = append(out, obj)
	}
	return out
}

func finite(v any) any {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil
	}
	return v
}
