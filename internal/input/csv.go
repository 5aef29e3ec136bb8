package input

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/asamad/invoicebot/internal/order"
)

// ReadCSV loads records from a CSV file whose first row is the header.
// Empty lines are skipped; a file with a header but no data rows is an
// error, matching the batch's refusal to start on empty input.
func ReadCSV(path string) ([]order.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("input: open %s: %w", path, err)
	}
	defer f.Close()

	records, err := parseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("input: %s: %w", path, err)
	}
	return records, nil
}

func parseCSV(r io.Reader) ([]order.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var out []order.Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(out)+2, err)
		}
		if empty(row) {
			continue
		}
		m := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				m[col] = row[i]
			}
		}
		out = append(out, recordFromRow(m))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no data rows")
	}
	return out, nil
}

func empty(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
