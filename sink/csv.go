package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"vector-viz/pipeline"
)

/*
WriteCSV writes table as delimited text.

The header is id, the coordinate columns, then the extra fields in first-seen order. Fields a
row does not have are written as empty cells.
*/
func WriteCSV(w io.Writer, table *pipeline.Table, delim rune) error {
	if table == nil {
		return ErrEmptyTable
	}

	writer := csv.NewWriter(w)
	writer.Comma = delim

	if err := writer.Write(table.Header()); err != nil {
		return err
	}

	record := make([]string, 0, 1+table.Dims+len(table.Fields))
	for _, row := range table.Rows {
		record = record[:0]
		record = append(record, row.ID)
		for d := 0; d < table.Dims; d++ {
			var c float64
			if d < len(row.Coords) {
				c = row.Coords[d]
			}
			record = append(record, formatCell(c))
		}
		for _, name := range table.Fields {
			record = append(record, formatCell(row.Fields[name]))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

/*
ReadCSV reads a table written by WriteCSV.

dims 0 infers the dimensionality: a z column right after y means 3D. Cells are read back as
numbers or booleans where they parse as such, empty cells as nil.
*/
func ReadCSV(r io.Reader, delim rune, dims int) (*pipeline.Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = delim
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrBadHeader)
	}
	if err != nil {
		return nil, err
	}
	if len(header) < 3 || header[0] != "id" || header[1] != "x" || header[2] != "y" {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, header)
	}
	if dims == 0 {
		dims = 2
		if len(header) > 3 && header[3] == "z" {
			dims = 3
		}
	}
	if dims == 3 && (len(header) < 4 || header[3] != "z") {
		return nil, fmt.Errorf("%w: missing z column", ErrBadHeader)
	}

	table := pipeline.NewTable(dims)
	fields := header[1+dims:]

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		row := pipeline.Row{
			ID:     cell(record, 0),
			Coords: make([]float64, dims),
			Fields: make(map[string]any, len(fields)),
		}
		for d := 0; d < dims; d++ {
			if v, err := strconv.ParseFloat(cell(record, 1+d), 64); err == nil {
				row.Coords[d] = v
			}
		}
		for i, name := range fields {
			if v := parseCell(cell(record, 1+dims+i)); v != nil {
				row.Fields[name] = v
			}
		}
		table.Append(row)
	}

	// keep the file's column order even for fields no row carries
	table.Fields = append([]string(nil), fields...)
	return table, nil
}

func cell(record []string, i int) string {
	if i < len(record) {
		return record[i]
	}
	return ""
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return ""
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case float32:
		return formatCell(float64(val))
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

func parseCell(s string) any {
	if s == "" {
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return v
	}
	if v, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false" || s == "True" || s == "False") {
		return v
	}
	return s
}
