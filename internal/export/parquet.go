package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/parquet-go/parquet-go"

	"github.com/askdb/askdb/internal/query"
)

// WriteParquet stores every column as an optional UTF-8 string so arbitrary
// result sets share one encoding. Duplicate or empty column names are made
// unique because parquet fields are keyed by name.
func WriteParquet(w io.Writer, result query.Result) error {
	if len(result.Columns) == 0 {
		return fmt.Errorf("result has no columns")
	}
	names := uniqueColumnNames(result.Columns)

	group := make(parquet.Group, len(names))
	for _, name := range names {
		group[name] = parquet.Optional(parquet.String())
	}
	schema := parquet.NewSchema("result", group)

	leafIndex := make(map[string]int, len(names))
	for i, path := range schema.Columns() {
		leafIndex[path[0]] = i
	}

	writer := parquet.NewWriter(w, schema)
	rows := make([]parquet.Row, 0, len(result.Rows))
	for rowIndex, values := range result.Rows {
		if len(values) != len(names) {
			return fmt.Errorf("row %d has %d values, want %d", rowIndex, len(values), len(names))
		}
		row := make(parquet.Row, len(names))
		for i, value := range values {
			leaf := leafIndex[names[i]]
			text, ok := cellText(value)
			if !ok {
				row[leaf] = parquet.NullValue().Level(0, 0, leaf)
				continue
			}
			row[leaf] = parquet.ByteArrayValue([]byte(text)).Level(0, 1, leaf)
		}
		rows = append(rows, row)
	}
	if _, err := writer.WriteRows(rows); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

func uniqueColumnNames(columns []string) []string {
	seen := make(map[string]int, len(columns))
	out := make([]string, len(columns))
	for i, column := range columns {
		name := column
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		base := name
		for seen[name] > 0 {
			seen[base]++
			name = base + "_" + strconv.Itoa(seen[base])
		}
		seen[name]++
		out[i] = name
	}
	return out
}
