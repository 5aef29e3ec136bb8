package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"
)

var csvHeader = []string{"order_no", "status", "message", "timestamp"}

// CSVSink appends results to a CSV file, one row per outcome. The file is
// created with a header on first write and re-read for the idempotence
// filter on later runs.
type CSVSink struct {
	path string
}

func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

// Append implements Sink.
func (s *CSVSink) Append(ctx context.Context, results []Result) error {
	if len(results) == 0 {
		return nil
	}
	info, err := os.Stat(s.path)
	fresh := os.IsNotExist(err) || (err == nil && info.Size() == 0)

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("report: open %s: %w", s.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("report: write header: %w", err)
		}
	}
	for _, r := range results {
		row := []string{r.OrderNo, string(r.Kind), r.Message, r.Timestamp.Format(time.RFC3339)}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("report: write row for %s: %w", r.OrderNo, err)
		}
	}
	w.Flush()
	return w.Error()
}

// Succeeded implements Sink.
func (s *CSVSink) Succeeded(ctx context.Context) (map[string]bool, error) {
	done := make(map[string]bool)
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return done, nil
		}
		return nil, fmt.Errorf("report: open %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("report: read %s: %w", s.path, err)
		}
		if first {
			first = false
			continue
		}
		if len(row) < 2 {
			continue
		}
		if processed(Kind(row[1])) {
			done[row[0]] = true
		}
	}
	return done, nil
}

var _ Sink = (*CSVSink)(nil)
