package portal

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/asamad/invoicebot/internal/browser"
	"github.com/asamad/invoicebot/internal/config"
)

// StatusReceived is the only list-view status eligible for invoicing.
// Comparison is exact after trimming whitespace; anything else is a skip.
const StatusReceived = "RECEIVED"

// LocateOutcome is the tri-state result of a list-view lookup.
type LocateOutcome int

const (
	// LocateNotFound means the order is absent from the filtered results.
	// A legitimate terminal outcome, not an error.
	LocateNotFound LocateOutcome = iota
	// LocateFound means the order row was located and its status read.
	LocateFound
)

// LocateResult carries the outcome of Locator.Find. Link is non-nil only
// for LocateFound and remains valid until the next navigation.
type LocateResult struct {
	Outcome LocateOutcome
	Status  string
	Link    browser.Element
}

// Eligible reports whether the located record may be invoiced.
func (r LocateResult) Eligible() bool {
	return r.Outcome == LocateFound && strings.TrimSpace(r.Status) == StatusReceived
}

// Locator scopes the list view to orders-and-invoices in RECEIVED state
// and searches it for one order number.
type Locator struct {
	cfg config.Config
}

func NewLocator(cfg config.Config) *Locator {
	return &Locator{cfg: cfg}
}

// Find applies the filter sequence, searches for orderNo, and reads the
// matching row's status. Each filter toggle is followed by a settle delay;
// the list view applies filters asynchronously with no signal.
func (l *Locator) Find(ctx context.Context, nav *NavContext, orderNo string) (LocateResult, error) {
	toggles := []struct {
		step string
		sel  string
	}{
		{"open filter panel", selFilterButton},
		{"open document types", selDocTypesButton},
		{"unselect all document types", selUnselectAll},
		{"select invoice type", selTypeInvoice},
		{"select order type", selTypeOrder},
		{"open status filter", selStatusButton},
		{"unselect all statuses", selUnselectAll},
		{"select received status", selStatusReceived},
	}
	for _, t := range toggles {
		if err := l.click(ctx, nav.Main, t.step, t.sel); err != nil {
			return LocateResult{}, err
		}
		if err := settle(ctx, l.cfg.Settles.Toggle); err != nil {
			return LocateResult{}, err
		}
	}

	search, err := nav.Main.Find(ctx, selSearchBox)
	if err != nil {
		return LocateResult{}, failure(FailLocate, "locate search box", err)
	}
	if err := search.Clear(ctx); err != nil {
		return LocateResult{}, failure(FailLocate, "clear search box", err)
	}
	if err := search.Fill(ctx, orderNo); err != nil {
		return LocateResult{}, failure(FailLocate, "fill search box", err)
	}
	// Results arrive asynchronously after the debounce.
	if err := settle(ctx, l.cfg.Settles.Search); err != nil {
		return LocateResult{}, err
	}

	link, err := nav.Main.Find(ctx, orderLinkSelector(orderNo))
	if err != nil {
		if errors.Is(err, browser.ErrNoElement) {
			log.Info().Str("order", orderNo).Msg("Order not in filtered search results")
			return LocateResult{Outcome: LocateNotFound}, nil
		}
		return LocateResult{}, failure(FailLocate, "query order link", err)
	}
	if err := link.WaitVisible(ctx, l.cfg.Timeouts.Element); err != nil {
		return LocateResult{}, failure(FailLocate, "wait for order link", err)
	}

	cell, err := nav.Main.Find(ctx, statusCellSelector(orderNo))
	if err != nil {
		return LocateResult{}, failure(FailLocate, "locate status cell", err)
	}
	status, err := cell.Text(ctx)
	if err != nil {
		return LocateResult{}, failure(FailLocate, "read status cell", err)
	}
	status = strings.TrimSpace(status)
	log.Debug().Str("order", orderNo).Str("status", status).Msg("Order located")

	return LocateResult{Outcome: LocateFound, Status: status, Link: link}, nil
}

func (l *Locator) click(ctx context.Context, scope browser.Scope, step, sel string) error {
	el, err := scope.Find(ctx, sel)
	if err != nil {
		return failure(FailLocate, step, err)
	}
	if err := el.Click(ctx); err != nil {
		return failure(FailLocate, step, err)
	}
	return nil
}
