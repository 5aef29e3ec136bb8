package portal

import (
	"context"
	"errors"
	"testing"

	"github.com/asamad/invoicebot/internal/browser/browsertest"
)

// listViewFake scripts a filtered list view. When status is non-empty the
// order PO1001 is present with that status in its row.
func listViewFake(status string) *browsertest.Fake {
	f := readyFake()
	for _, sel := range []string{
		selDocTypesButton, selUnselectAll, selTypeInvoice,
		selTypeOrder, selStatusButton, selStatusReceived,
	} {
		f.AddElement(&browsertest.Element{}, selMainFrame, sel)
	}
	if status != "" {
		f.AddElement(&browsertest.Element{}, selMainFrame, orderLinkSelector("PO1001"))
		f.AddElement(&browsertest.Element{TextContent: status}, selMainFrame, statusCellSelector("PO1001"))
	}
	return f
}

func TestFindReceivedOrder(t *testing.T) {
	f := listViewFake("\n  RECEIVED  ")
	loc := NewLocator(testCfg())

	res, err := loc.Find(context.Background(), navContext(t, f), "PO1001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != LocateFound {
		t.Fatalf("outcome = %v, want LocateFound", res.Outcome)
	}
	if res.Status != "RECEIVED" {
		t.Errorf("status = %q, want trimmed RECEIVED", res.Status)
	}
	if !res.Eligible() {
		t.Error("expected record to be eligible")
	}
	if res.Link == nil {
		t.Error("expected link handle")
	}

	// The search box is cleared before the order number goes in.
	calls := f.CallsFor(selMainFrame, selSearchBox)
	if len(calls) != 2 || calls[0].Op != "clear" || calls[1].Op != "fill" || calls[1].Arg != "PO1001" {
		t.Errorf("search box calls = %+v, want clear then fill PO1001", calls)
	}
}

func TestFindNotFound(t *testing.T) {
	f := listViewFake("")
	res, err := NewLocator(testCfg()).Find(context.Background(), navContext(t, f), "PO9999")
	if err != nil {
		t.Fatalf("a search miss is not an error, got %v", err)
	}
	if res.Outcome != LocateNotFound {
		t.Fatalf("outcome = %v, want LocateNotFound", res.Outcome)
	}
	if res.Eligible() {
		t.Error("not-found result must not be eligible")
	}
}

func TestFindIneligibleStatus(t *testing.T) {
	for _, status := range []string{"PAID", "Received", "", "DELIVERED"} {
		f := listViewFake("placeholder")
		f.Element(selMainFrame, statusCellSelector("PO1001")).TextContent = status

		res, err := NewLocator(testCfg()).Find(context.Background(), navContext(t, f), "PO1001")
		if err != nil {
			t.Fatalf("status %q: unexpected error: %v", status, err)
		}
		if res.Outcome != LocateFound {
			t.Fatalf("status %q: outcome = %v, want LocateFound", status, res.Outcome)
		}
		if res.Eligible() {
			t.Errorf("status %q must not be eligible", status)
		}
	}
}

func TestFindToggleFailure(t *testing.T) {
	f := listViewFake("RECEIVED")
	f.Element(selMainFrame, selDocTypesButton).Errs = map[string]error{"click": errors.New("detached")}

	_, err := NewLocator(testCfg()).Find(context.Background(), navContext(t, f), "PO1001")
	var pe *Error
	if !errors.As(err, &pe) || pe.Type != FailLocate {
		t.Fatalf("expected FailLocate portal error, got %v", err)
	}
}

func TestFindMissingFilterControl(t *testing.T) {
	f := readyFake() // anchors only, none of the filter toggles
	_, err := NewLocator(testCfg()).Find(context.Background(), navContext(t, f), "PO1001")
	var pe *Error
	if !errors.As(err, &pe) || pe.Type != FailLocate {
		t.Fatalf("expected FailLocate portal error, got %v", err)
	}
}
