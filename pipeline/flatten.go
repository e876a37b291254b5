package pipeline

import (
	"encoding/json"
	"fmt"
	"sort"

	"vector-viz/store"
)

/*
Flatten turns a record into a row.

Metadata keys are copied as extra fields, except the reserved names id, x, y (and z for 3D
tables), which are dropped so the coordinate columns stay authoritative. Maps and slices are
stored as compact JSON text; scalars pass through unchanged.
*/
func Flatten(rec store.Record, dims int) Row {
	row := Row{
		ID:     rec.ID,
		Coords: make([]float64, dims),
		Fields: make(map[string]any, len(rec.Metadata)),
	}
	if row.ID == "" {
		row.ID = UnknownID
	}

	for key, value := range rec.Metadata {
		if isReserved(key, dims) {
			continue
		}
		row.Fields[key] = flattenValue(value)
	}
	return row
}

func isReserved(key string, dims int) bool {
	switch key {
	case "id", "x", "y":
		return true
	case "z":
		return dims >= 3
	}
	return false
}

func flattenValue(value any) any {
	switch value.(type) {
	case map[string]any, []any, []string, []float64, []int, map[string]string:
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(data)
	}
	return value
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
