package portal

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/asamad/invoicebot/internal/browser"
	"github.com/asamad/invoicebot/internal/config"
	"github.com/asamad/invoicebot/internal/order"
)

// FormOutcome is the terminal state of one form workflow.
type FormOutcome int

const (
	// FormSaved means the draft was submitted with no validation errors.
	FormSaved FormOutcome = iota
	// FormSavedWithErrors means the workflow completed mechanically but
	// the portal reported content-validation failures on preview. Distinct
	// from a form failure: the document exists but is invalid.
	FormSavedWithErrors
	// FormAmountMismatch means the pre-filled amount was below the
	// record's base amount and the record was aborted before any field
	// was written. A data problem upstream, not a UI problem.
	FormAmountMismatch
)

// FormResult carries the outcome of Filler.FillAndSubmit.
type FormResult struct {
	Outcome            FormOutcome
	PrefillAmount      float64
	ValidationMessages []string
}

// Filler executes the invoice-creation workflow for one eligible record.
// Step order is load-bearing: each step depends on UI state produced by
// the previous one.
type Filler struct {
	cfg config.Config
}

func NewFiller(cfg config.Config) *Filler {
	return &Filler{cfg: cfg}
}

// FillAndSubmit opens the order, starts invoice creation, runs the amount
// guard, fills every field, attaches the file, previews, and saves as
// draft. Call only for records the locator found with RECEIVED status.
func (f *Filler) FillAndSubmit(ctx context.Context, nav *NavContext, link browser.Element, rec order.Record) (FormResult, error) {
	if err := link.Click(ctx); err != nil {
		return FormResult{}, failure(FailForm, "open order", err)
	}
	if err := settle(ctx, f.cfg.Settles.Frame); err != nil {
		return FormResult{}, err
	}

	// The order view replaces the list view inside the shell; the main
	// frame must be re-resolved before descending into the legacy frame.
	form, err := f.formScope(ctx, nav)
	if err != nil {
		return FormResult{}, err
	}

	create, err := waitVisible(ctx, form, selCreateInvoice, f.cfg.Timeouts.Element)
	if err != nil {
		return FormResult{}, failure(FailForm, "locate create invoice trigger", err)
	}
	if err := create.Click(ctx); err != nil {
		return FormResult{}, failure(FailForm, "click create invoice", err)
	}
	if err := settle(ctx, f.cfg.Settles.Frame); err != nil {
		return FormResult{}, err
	}

	// The invoice form lives in a fresh legacy frame.
	form, err = f.formScope(ctx, nav)
	if err != nil {
		return FormResult{}, err
	}

	prefill, err := f.checkAmount(ctx, form, rec)
	if err != nil {
		return FormResult{}, err
	}
	want, _ := rec.Amount()
	if prefill < want {
		log.Warn().Str("order", rec.OrderNo).
			Float64("prefill", prefill).Float64("base", want).
			Msg("Prefilled amount below record base amount; aborting record")
		return FormResult{Outcome: FormAmountMismatch, PrefillAmount: prefill}, nil
	}

	fills := []struct {
		step  string
		sel   string
		value string
	}{
		{"fill invoice number", selInvoiceNumber, rec.InvoiceNo},
		{"fill issue date", selIssueDate, rec.FormattedDate()},
		{"fill reference number", selIRN, rec.IRN},
		{"fill business area", selBusinessArea, rec.BusinessArea},
		{"fill base amount", selLineAmount, rec.BaseAmount},
	}
	for _, step := range fills {
		if err := f.fill(ctx, form, step.step, step.sel, step.value); err != nil {
			return FormResult{}, err
		}
	}

	scheme, err := form.Find(ctx, selTaxScheme)
	if err != nil {
		return FormResult{}, failure(FailForm, "locate tax scheme selector", err)
	}
	if err := scheme.SelectOption(ctx, rec.TaxScheme); err != nil {
		return FormResult{}, failure(FailForm, "select tax scheme", err)
	}
	if err := f.fill(ctx, form, "fill tax code", selTaxValue, rec.TaxCode); err != nil {
		return FormResult{}, err
	}

	attach, err := form.Find(ctx, selAttachment)
	if err != nil {
		return FormResult{}, failure(FailForm, "locate attachment input", err)
	}
	if err := attach.SetFiles(ctx, rec.AttachmentPath); err != nil {
		return FormResult{}, failure(FailForm, "attach file", err)
	}
	// Upload has no completion event.
	if err := settle(ctx, f.cfg.Settles.Attachment); err != nil {
		return FormResult{}, err
	}

	preview, err := form.Find(ctx, selPreview)
	if err != nil {
		return FormResult{}, failure(FailForm, "locate preview trigger", err)
	}
	if err := preview.Click(ctx); err != nil {
		return FormResult{}, failure(FailForm, "trigger preview", err)
	}
	if err := settle(ctx, f.cfg.Settles.Toggle); err != nil {
		return FormResult{}, err
	}

	if msgs, found, err := f.validationMessages(ctx, form); err != nil {
		return FormResult{}, err
	} else if found {
		log.Warn().Str("order", rec.OrderNo).Strs("messages", msgs).
			Msg("Portal reported document validation errors on preview")
		return FormResult{Outcome: FormSavedWithErrors, PrefillAmount: prefill, ValidationMessages: msgs}, nil
	}

	draft, err := form.Find(ctx, selSaveDraft)
	if err != nil {
		return FormResult{}, failure(FailForm, "locate save-as-draft", err)
	}
	if err := draft.Click(ctx); err != nil {
		return FormResult{}, failure(FailForm, "save as draft", err)
	}
	// Submission completes silently.
	if err := settle(ctx, f.cfg.Settles.Submission); err != nil {
		return FormResult{}, err
	}

	log.Info().Str("order", rec.OrderNo).Str("invoice", rec.InvoiceNo).Msg("Draft invoice saved")
	return FormResult{Outcome: FormSaved, PrefillAmount: prefill}, nil
}

// formScope re-resolves the nested main → legacy frame chain. Knowledge of
// the nesting depth lives here and nowhere else.
func (f *Filler) formScope(ctx context.Context, nav *NavContext) (browser.Scope, error) {
	main, err := nav.Root.Frame(ctx, selMainFrame)
	if err != nil {
		return nil, failure(FailForm, "resolve app frame", err)
	}
	if _, err := waitPresent(ctx, main, selLegacyFrame, f.cfg.Timeouts.Element); err != nil {
		return nil, failure(FailForm, "wait for form frame", err)
	}
	form, err := main.Frame(ctx, selLegacyFrame)
	if err != nil {
		return nil, failure(FailForm, "resolve form frame", err)
	}
	return form, nil
}

// checkAmount reads the pre-filled line amount. An unparsable prefill is a
// form failure, not a silent zero that would trip the guard.
func (f *Filler) checkAmount(ctx context.Context, form browser.Scope, rec order.Record) (float64, error) {
	field, err := waitPresent(ctx, form, selLineAmount, f.cfg.Timeouts.Element)
	if err != nil {
		return 0, failure(FailForm, "locate prefilled amount", err)
	}
	raw, err := field.Value(ctx)
	if err != nil {
		return 0, failure(FailForm, "read prefilled amount", err)
	}
	prefill, err := order.ParseAmount(raw)
	if err != nil {
		return 0, failure(FailForm, "parse prefilled amount", err)
	}
	return prefill, nil
}

func (f *Filler) fill(ctx context.Context, scope browser.Scope, step, sel, value string) error {
	el, err := scope.Find(ctx, sel)
	if err != nil {
		return failure(FailForm, step, err)
	}
	if err := el.Fill(ctx, value); err != nil {
		return failure(FailForm, step, err)
	}
	return nil
}

// validationMessages checks the preview for the validation-error
// indicator and collects its messages, one per line.
func (f *Filler) validationMessages(ctx context.Context, form browser.Scope) ([]string, bool, error) {
	box, err := form.Find(ctx, selValidationBox)
	if err != nil {
		if errors.Is(err, browser.ErrNoElement) {
			return nil, false, nil
		}
		return nil, false, failure(FailForm, "check validation indicator", err)
	}
	text, err := box.Text(ctx)
	if err != nil {
		return nil, false, failure(FailForm, "read validation messages", err)
	}
	var msgs []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			msgs = append(msgs, line)
		}
	}
	if len(msgs) == 0 {
		msgs = []string{"document validation failed (no detail)"}
	}
	return msgs, true, nil
}
