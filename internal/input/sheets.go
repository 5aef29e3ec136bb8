package input

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/asamad/invoicebot/internal/order"
)

const (
	fetchAttempts = 3
	fetchBackoff  = 2 * time.Second
)

// NewSheetsService builds a Sheets client from a service-account
// credentials file.
func NewSheetsService(ctx context.Context, credentialsFile string) (*sheets.Service, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("input: create sheets client: %w", err)
	}
	return svc, nil
}

// SheetSource reads records from a Google Sheets range whose first row is
// the header.
type SheetSource struct {
	svc           *sheets.Service
	spreadsheetID string
	readRange     string
}

func NewSheetSource(svc *sheets.Service, spreadsheetID, readRange string) *SheetSource {
	return &SheetSource{svc: svc, spreadsheetID: spreadsheetID, readRange: readRange}
}

// Fetch retrieves the range with a bounded retry for transient network
// failures, then converts rows to records.
func (s *SheetSource) Fetch(ctx context.Context) ([]order.Record, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).Context(ctx).Do()
		if err == nil {
			records := RowsToRecords(resp.Values)
			if len(records) == 0 {
				return nil, fmt.Errorf("input: sheet %s range %s has no data rows", s.spreadsheetID, s.readRange)
			}
			return records, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Int("max", fetchAttempts).
			Msg("Sheet fetch failed")
		if attempt < fetchAttempts {
			select {
			case <-time.After(fetchBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("input: fetch sheet %s: %w", s.spreadsheetID, lastErr)
}

// RowsToRecords converts a raw value range into records. The first row is
// the header; missing trailing cells become empty strings, the way the
// Sheets API truncates sparse rows.
func RowsToRecords(rows [][]interface{}) []order.Record {
	if len(rows) < 2 {
		return nil
	}
	header := make([]string, len(rows[0]))
	for i, cell := range rows[0] {
		header[i] = fmt.Sprint(cell)
	}

	out := make([]order.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		m := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				m[col] = fmt.Sprint(row[i])
			}
		}
		rec := recordFromRow(m)
		if rec == (order.Record{}) {
			continue
		}
		out = append(out, rec)
	}
	return out
}
