package portal

import "fmt"

// Selector strings for the portal UI. The document manager is a single-page
// shell hosting the actual app in a nested iframe, which itself hosts the
// legacy invoice form in a second iframe; everything below the login page
// is addressed relative to one of those two frames.
const (
	selMainFrame   = `iframe[name="main-app-iframe"]`
	selLegacyFrame = `iframe[name="legacy-frame"]`

	selCookieAccept = `#cookie-consent-accept-all`
	selUsername     = `input[name="j_username"]`
	selPassword     = `input[name="j_password"]`
	selLoginSubmit  = `#proceed`

	selFilterButton   = `//button[contains(., "Filter")]`
	selSearchBox      = `//input[@placeholder="Search"]`
	selDocTypesButton = `//button[contains(., "Document Types")]`
	selStatusButton   = `//button[contains(., "Status")]`
	selUnselectAll    = `//div[normalize-space(text())="Unselect all"]`
	selTypeInvoice    = `.invoice.flex-none`
	selTypeOrder      = `.order.flex-none`
	selStatusReceived = `.DELIVERED_RECEIVED.flex-none`

	selCreateInvoice = `//button[contains(., "Create Invoice")]`
	selInvoiceNumber = `//input[@aria-label="Invoice number"]`
	selIssueDate     = `//div[starts-with(normalize-space(.), "Issue date")]//input`
	selIRN           = `//input[@aria-label="IRN (Invoice Reference Number)"]`
	selBusinessArea  = `//input[@aria-label="Business Area"]`
	selLineAmount    = `#lines_0__amount`
	selTaxScheme     = `#lines_0__additionalItemIdentification_schemeId`
	selTaxValue      = `#lines_0__additionalItemIdentification_value`
	selAttachment    = `input[name="attachment"]`
	selPreview       = `#preview`
	selSaveDraft     = `//button[contains(., "Save as draft")]`

	selValidationBox = `.document-validation-errors`
)

// orderLinkSelector addresses the result link whose visible text is exactly
// the order number.
func orderLinkSelector(orderNo string) string {
	return fmt.Sprintf(`//a[normalize-space(text())=%q]`, orderNo)
}

// statusCellSelector addresses the status cell in the row containing the
// order link. The list view keeps status in the fourth column.
func statusCellSelector(orderNo string) string {
	return fmt.Sprintf(`//a[normalize-space(text())=%q]/ancestor::tr[1]/td[4]`, orderNo)
}
