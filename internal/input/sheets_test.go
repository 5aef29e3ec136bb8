package input

import "testing"

func TestRowsToRecords(t *testing.T) {
	rows := [][]interface{}{
		{"Order no", "Invoice No", "Invoice Date", "IRN NO", "Business Area",
			"Total Invoice Base Amount (Quantity)", "HSN/SAC", "SAC", "Choose File"},
		{"PO1001", "INV-01", "12-05-2025", "IRN123", "1000", "500", "SAC", "998311", "/data/inv01.pdf"},
		{"PO1002", "INV-02"}, // sparse row: API truncates trailing blanks
	}

	records := RowsToRecords(rows)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].OrderNo != "PO1001" || records[0].BaseAmount != "500" {
		t.Errorf("first record = %+v", records[0])
	}
	if records[1].OrderNo != "PO1002" {
		t.Errorf("second record OrderNo = %q", records[1].OrderNo)
	}
	if records[1].InvoiceDate != "" {
		t.Errorf("truncated cell should be empty, got %q", records[1].InvoiceDate)
	}
}

func TestRowsToRecordsHeaderOnly(t *testing.T) {
	rows := [][]interface{}{{"Order no"}}
	if got := RowsToRecords(rows); got != nil {
		t.Errorf("expected nil for header-only input, got %v", got)
	}
	if got := RowsToRecords(nil); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}

func TestRowsToRecordsSkipsBlankRows(t *testing.T) {
	rows := [][]interface{}{
		{"Order no", "Invoice No"},
		{"", ""},
		{"PO1003", "INV-03"},
	}
	records := RowsToRecords(rows)
	if len(records) != 1 || records[0].OrderNo != "PO1003" {
		t.Fatalf("blank rows should be dropped, got %+v", records)
	}
}
