package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/askdb/askdb/internal/query"
)

// WriteCSV writes a header row followed by every result row. NULL becomes an
// empty field.
func WriteCSV(w io.Writer, result query.Result) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(result.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(result.Columns))
	for rowIndex, row := range result.Rows {
		if len(row) != len(result.Columns) {
			return fmt.Errorf("row %d has %d values, want %d", rowIndex, len(row), len(result.Columns))
		}
		for i, value := range row {
			record[i], _ = cellText(value)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", rowIndex, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
