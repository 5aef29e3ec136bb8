// Package batch runs the per-record order-processing state machine:
// navigate, locate, conditionally fill, record the outcome, and recover
// the session when a record fails. Records are processed strictly one at a
// time; the single live browsing context is the shared resource.
package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/asamad/invoicebot/internal/browser"
	"github.com/asamad/invoicebot/internal/order"
	"github.com/asamad/invoicebot/internal/portal"
	"github.com/asamad/invoicebot/internal/report"
)

// Sessions is the session-lifecycle dependency.
type Sessions interface {
	Open(ctx context.Context) (*portal.Session, error)
	Recreate(ctx context.Context, old *portal.Session) (*portal.Session, error)
	Close(s *portal.Session)
}

// Navigator re-establishes the document manager view.
type Navigator interface {
	Goto(ctx context.Context, sess *portal.Session) (*portal.NavContext, error)
}

// Locator finds one order in the list view.
type Locator interface {
	Find(ctx context.Context, nav *portal.NavContext, orderNo string) (portal.LocateResult, error)
}

// Filler runs the invoice form workflow for an eligible order.
type Filler interface {
	FillAndSubmit(ctx context.Context, nav *portal.NavContext, link browser.Element, rec order.Record) (portal.FormResult, error)
}

// Options tunes a batch run.
type Options struct {
	MaxPasses     int
	PassDelay     time.Duration
	ScreenshotDir string
	// DryRun stops each eligible record before the form workflow.
	DryRun bool
}

// Orchestrator iterates input records, drives the portal components in
// sequence per record, aggregates results, and triggers session recovery
// on failure.
type Orchestrator struct {
	sessions Sessions
	nav      Navigator
	loc      Locator
	filler   Filler
	sink     report.Sink
	opts     Options
}

func New(sessions Sessions, nav Navigator, loc Locator, filler Filler, sink report.Sink, opts Options) *Orchestrator {
	if opts.MaxPasses <= 0 {
		opts.MaxPasses = 1
	}
	return &Orchestrator{sessions: sessions, nav: nav, loc: loc, filler: filler, sink: sink, opts: opts}
}

// Run processes all records and returns the run summary. The returned
// error is non-nil only for fatal conditions: no usable input, a sink that
// cannot be read, initial login failure, or a failed session recreation.
// Per-record failures are absorbed into results.
func (o *Orchestrator) Run(ctx context.Context, records []order.Record) (report.Summary, error) {
	var summary report.Summary
	var results []report.Result

	pending := make([]order.Record, 0, len(records))
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			log.Error().Str("order", rec.OrderNo).Err(err).Msg("Record failed validation; excluded from processing")
			results = append(results, result(rec.OrderNo, report.KindError, "validation: "+err.Error()))
			continue
		}
		pending = append(pending, rec)
	}

	done, err := o.sink.Succeeded(ctx)
	if err != nil {
		return summary, fmt.Errorf("batch: read processed orders from sink: %w", err)
	}
	if len(done) > 0 {
		filtered := pending[:0]
		for _, rec := range pending {
			if done[rec.OrderNo] {
				log.Info().Str("order", rec.OrderNo).Msg("Already processed in a previous run; skipping")
				continue
			}
			filtered = append(filtered, rec)
		}
		pending = filtered
	}

	if len(pending) == 0 {
		if err := o.flush(ctx, results, &summary); err != nil {
			return summary, err
		}
		log.Info().Msg("Nothing to process")
		return summary, nil
	}

	sess, err := o.sessions.Open(ctx)
	if err != nil {
		return summary, fmt.Errorf("batch: open session: %w", err)
	}
	defer func() { o.sessions.Close(sess) }()

	for pass := 1; pass <= o.opts.MaxPasses && len(pending) > 0; pass++ {
		log.Info().Int("pass", pass).Int("max", o.opts.MaxPasses).Int("pending", len(pending)).
			Msg("Starting pass")

		var retry []order.Record
		for _, rec := range pending {
			// Cancellation is observed only between records; a record in
			// flight always runs to its own terminal state.
			if ctx.Err() != nil {
				results = append(results, o.markRemaining(rec, pending, "run cancelled", true)...)
				if flushErr := o.flush(context.WithoutCancel(ctx), results, &summary); flushErr != nil {
					log.Error().Err(flushErr).Msg("Flush after cancellation failed")
				}
				return summary, ctx.Err()
			}

			res, needsRecovery := o.processRecord(ctx, sess, rec, pass)
			results = append(results, res)
			if needsRecovery {
				retry = append(retry, rec)
				next, err := o.sessions.Recreate(ctx, sess)
				if err != nil {
					// Without a working session no further record can be
					// attempted safely.
					results = append(results, o.markRemaining(rec, pending, "session recovery failed", false)...)
					if flushErr := o.flush(ctx, results, &summary); flushErr != nil {
						log.Error().Err(flushErr).Msg("Flush after fatal recovery failure failed")
					}
					sess = nil
					return summary, fmt.Errorf("batch: session recovery failed: %w", err)
				}
				sess = next
			}
		}

		// Persist progress after every pass so a crash loses at most the
		// pass in flight.
		if err := o.flush(ctx, results, &summary); err != nil {
			return summary, err
		}
		results = nil
		pending = retry

		if len(pending) > 0 && pass < o.opts.MaxPasses {
			log.Info().Int("pending", len(pending)).Dur("delay", o.opts.PassDelay).
				Msg("Waiting before retry pass")
			select {
			case <-time.After(o.opts.PassDelay):
			case <-ctx.Done():
			}
		}
	}

	for _, rec := range pending {
		results = append(results, result(rec.OrderNo, report.KindError, "max retries exceeded"))
	}
	if err := o.flush(ctx, results, &summary); err != nil {
		return summary, err
	}
	return summary, nil
}

// processRecord runs one record to a terminal state. recover reports
// whether the session must be torn down and recreated before the next
// record.
func (o *Orchestrator) processRecord(ctx context.Context, sess *portal.Session, rec order.Record, pass int) (res report.Result, recover bool) {
	lg := log.With().Str("order", rec.OrderNo).Int("pass", pass).Logger()
	lg.Info().Msg("Processing order")

	nav, err := o.nav.Goto(ctx, sess)
	if err != nil {
		lg.Error().Err(err).Msg("Navigation failed")
		o.snapshot(ctx, sess, rec.OrderNo, pass)
		return result(rec.OrderNo, report.KindError, "navigation: "+err.Error()), true
	}

	loc, err := o.loc.Find(ctx, nav, rec.OrderNo)
	if err != nil {
		lg.Error().Err(err).Msg("Locate failed")
		o.snapshot(ctx, sess, rec.OrderNo, pass)
		return result(rec.OrderNo, report.KindError, "locate: "+err.Error()), true
	}
	if loc.Outcome == portal.LocateNotFound {
		lg.Info().Msg("Order not found; skipping")
		return result(rec.OrderNo, report.KindSkipped, "order not found in filtered search results"), false
	}
	if !loc.Eligible() {
		lg.Info().Str("status", loc.Status).Msg("Order not eligible; skipping")
		msg := fmt.Sprintf("status %q is not %s", loc.Status, portal.StatusReceived)
		return result(rec.OrderNo, report.KindSkipped, msg), false
	}

	if o.opts.DryRun {
		lg.Info().Msg("Dry run: eligible, form workflow skipped")
		return result(rec.OrderNo, report.KindSkipped, "dry run: eligible for invoicing"), false
	}

	form, err := o.filler.FillAndSubmit(ctx, nav, loc.Link, rec)
	if err != nil {
		lg.Error().Err(err).Msg("Form workflow failed")
		o.snapshot(ctx, sess, rec.OrderNo, pass)
		return result(rec.OrderNo, report.KindError, "form: "+err.Error()), true
	}

	switch form.Outcome {
	case portal.FormAmountMismatch:
		base, _ := rec.Amount()
		msg := fmt.Sprintf("prefilled amount %s is less than record base amount %s",
			formatAmount(form.PrefillAmount), formatAmount(base))
		lg.Warn().Msg(msg)
		return result(rec.OrderNo, report.KindSkipped, msg), false
	case portal.FormSavedWithErrors:
		msg := "draft saved with validation errors: " + joinMessages(form.ValidationMessages)
		return result(rec.OrderNo, report.KindSuccessWithErrors, msg), false
	default:
		lg.Info().Msg("Order processed")
		return result(rec.OrderNo, report.KindSuccess, "draft invoice saved"), false
	}
}

// markRemaining produces results for the unattempted tail of the pending
// slice when the run stops early. includeCurrent also marks the record the
// stop was detected on (cancellation, where it has no result yet).
func (o *Orchestrator) markRemaining(current order.Record, pending []order.Record, msg string, includeCurrent bool) []report.Result {
	var out []report.Result
	if includeCurrent {
		out = append(out, result(current.OrderNo, report.KindError, msg))
	}
	seen := false
	for _, rec := range pending {
		if rec.OrderNo == current.OrderNo {
			seen = true
			continue
		}
		if seen {
			out = append(out, result(rec.OrderNo, report.KindError, msg))
		}
	}
	return out
}

func (o *Orchestrator) flush(ctx context.Context, results []report.Result, summary *report.Summary) error {
	for _, r := range results {
		summary.Count(r)
	}
	if len(results) == 0 {
		return nil
	}
	if err := o.sink.Append(ctx, results); err != nil {
		return fmt.Errorf("batch: flush results: %w", err)
	}
	return nil
}

// snapshot captures the failing UI state for diagnosis. Best effort; a
// dead session makes it fail and that is fine.
func (o *Orchestrator) snapshot(ctx context.Context, sess *portal.Session, orderNo string, pass int) {
	if o.opts.ScreenshotDir == "" || sess == nil {
		return
	}
	path := filepath.Join(o.opts.ScreenshotDir, fmt.Sprintf("%s_pass%d.png", orderNo, pass))
	if err := sess.Driver().Screenshot(ctx, path); err != nil {
		log.Debug().Err(err).Str("path", path).Msg("Screenshot failed")
	}
}

func result(orderNo string, kind report.Kind, msg string) report.Result {
	return report.Result{OrderNo: orderNo, Kind: kind, Message: msg, Timestamp: time.Now()}
}

func formatAmount(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	// Whole amounts read better without the trailing cents in messages.
	if s[len(s)-3:] == ".00" {
		return s[:len(s)-3]
	}
	return s
}

func joinMessages(msgs []string) string {
	out := ""
	for i, m := range msgs {
		if i > 0 {
			out += "; "
		}
		out += m
	}
	return out
}
