// Package input materializes the batch's work records from either a CSV
// file or a Google Sheets range. Both sources share one column vocabulary,
// taken from the operations team's order sheet.
package input

import (
	"strings"

	"github.com/asamad/invoicebot/internal/order"
)

// Column headers as they appear in the source table.
const (
	ColOrderNo      = "Order no"
	ColInvoiceNo    = "Invoice No"
	ColInvoiceDate  = "Invoice Date"
	ColIRN          = "IRN NO"
	ColBusinessArea = "Business Area"
	ColBaseAmount   = "Total Invoice Base Amount (Quantity)"
	ColCGST         = "CGST"
	ColSGST         = "SGST"
	ColTotalAmount  = "Total Invoice Amount"
	ColTaxScheme    = "HSN/SAC"
	ColTaxCode      = "SAC"
	ColAttachment   = "Choose File"
)

// recordFromRow maps one header-keyed row onto a Record. Missing cells
// come through as empty strings; validation happens later, at batch start.
func recordFromRow(row map[string]string) order.Record {
	get := func(col string) string { return strings.TrimSpace(row[col]) }
	return order.Record{
		OrderNo:        get(ColOrderNo),
		InvoiceNo:      get(ColInvoiceNo),
		InvoiceDate:    get(ColInvoiceDate),
		IRN:            get(ColIRN),
		BusinessArea:   get(ColBusinessArea),
		BaseAmount:     get(ColBaseAmount),
		TaxScheme:      get(ColTaxScheme),
		TaxCode:        get(ColTaxCode),
		AttachmentPath: get(ColAttachment),
		CGST:           get(ColCGST),
		SGST:           get(ColSGST),
		TotalAmount:    get(ColTotalAmount),
	}
}
