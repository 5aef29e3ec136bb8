package report

import (
	"context"
	"fmt"
	"time"

	sheets "google.golang.org/api/sheets/v4"
)

// SheetsSink appends results to a Google Sheets range, mirroring the CSV
// layout: order number, status kind, message, timestamp.
type SheetsSink struct {
	svc           *sheets.Service
	spreadsheetID string
	writeRange    string
}

func NewSheetsSink(svc *sheets.Service, spreadsheetID, writeRange string) *SheetsSink {
	return &SheetsSink{svc: svc, spreadsheetID: spreadsheetID, writeRange: writeRange}
}

// Append implements Sink.
func (s *SheetsSink) Append(ctx context.Context, results []Result) error {
	if len(results) == 0 {
		return nil
	}
	values := make([][]interface{}, 0, len(results))
	for _, r := range results {
		values = append(values, []interface{}{
			r.OrderNo, string(r.Kind), r.Message, r.Timestamp.Format(time.RFC3339),
		})
	}
	vr := &sheets.ValueRange{Values: values}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, s.writeRange, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("report: append to sheet %s: %w", s.spreadsheetID, err)
	}
	return nil
}

// Succeeded implements Sink.
func (s *SheetsSink) Succeeded(ctx context.Context) (map[string]bool, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.writeRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("report: read sheet %s: %w", s.spreadsheetID, err)
	}
	return succeededFromRows(resp.Values), nil
}

// succeededFromRows extracts the processed-order set from raw sheet rows.
// A header row, when present, is skipped by virtue of its status cell not
// being a processed kind.
func succeededFromRows(rows [][]interface{}) map[string]bool {
	done := make(map[string]bool)
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		orderNo, ok := row[0].(string)
		if !ok || orderNo == "" {
			continue
		}
		kind, ok := row[1].(string)
		if !ok {
			continue
		}
		if processed(Kind(kind)) {
			done[orderNo] = true
		}
	}
	return done
}

var _ Sink = (*SheetsSink)(nil)
