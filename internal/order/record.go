// Package order defines the unit of work for the invoice batch: one
// purchase-order row with the fields needed to fill the portal's Create
// Invoice form.
package order

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is one input row. All fields are read as strings from the source
// table; BaseAmount is parsed on demand via Amount.
type Record struct {
	OrderNo        string
	InvoiceNo      string
	InvoiceDate    string
	IRN            string
	BusinessArea   string
	BaseAmount     string
	TaxScheme      string // HSN or SAC, the form's scheme selector value
	TaxCode        string // the code filled for the selected scheme
	AttachmentPath string

	// Carried through to the report but never filled into the form;
	// the portal derives the tax and total lines itself.
	CGST        string
	SGST        string
	TotalAmount string
}

// ValidationError reports a record that cannot be processed. It is raised
// before any browser interaction takes place.
type ValidationError struct {
	OrderNo string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("order %s: %s", e.OrderNo, e.Reason)
}

// Validate checks that every field the form filler needs is present and
// that the base amount parses. The order number itself missing is reported
// with the row's ordinal-less placeholder so the result still has a key.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.OrderNo) == "" {
		return &ValidationError{OrderNo: "(missing)", Reason: "order number is empty"}
	}
	required := []struct {
		name  string
		value string
	}{
		{"invoice number", r.InvoiceNo},
		{"invoice date", r.InvoiceDate},
		{"reference number (IRN)", r.IRN},
		{"business area", r.BusinessArea},
		{"base amount", r.BaseAmount},
		{"tax scheme", r.TaxScheme},
		{"tax code", r.TaxCode},
		{"attachment path", r.AttachmentPath},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{OrderNo: r.OrderNo, Reason: f.name + " is empty"}
		}
	}
	if _, err := ParseAmount(r.BaseAmount); err != nil {
		return &ValidationError{OrderNo: r.OrderNo, Reason: fmt.Sprintf("base amount %q is not numeric", r.BaseAmount)}
	}
	return nil
}

// Amount returns the parsed base amount. Validate must have passed first;
// a parse failure here is treated as zero with an error.
func (r *Record) Amount() (float64, error) {
	return ParseAmount(r.BaseAmount)
}

// FormattedDate normalizes the invoice date's separator for the portal's
// date field, which expects slashes (e.g. 12-05-2025 -> 12/05/2025).
func (r *Record) FormattedDate() string {
	return strings.ReplaceAll(r.InvoiceDate, "-", "/")
}

// ParseAmount parses a possibly locale-formatted amount string. Thousands
// separators (commas) and surrounding whitespace are stripped before
// parsing; anything that still fails to parse is an error rather than a
// silent zero.
func ParseAmount(s string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if cleaned == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return v, nil
}
