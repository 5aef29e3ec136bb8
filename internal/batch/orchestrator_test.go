package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/asamad/invoicebot/internal/browser"
	"github.com/asamad/invoicebot/internal/browser/browsertest"
	"github.com/asamad/invoicebot/internal/order"
	"github.com/asamad/invoicebot/internal/portal"
	"github.com/asamad/invoicebot/internal/report"
)

func validRecord(orderNo string) order.Record {
	return order.Record{
		OrderNo:        orderNo,
		InvoiceNo:      "INV-" + orderNo,
		InvoiceDate:    "12-05-2025",
		IRN:            "IRN-" + orderNo,
		BusinessArea:   "1000",
		BaseAmount:     "500",
		TaxScheme:      "SAC",
		TaxCode:        "998313",
		AttachmentPath: "/tmp/" + orderNo + ".pdf",
	}
}

type stubSessions struct {
	opened      int
	recreated   int
	closed      int
	openErr     error
	recreateErr error
}

func (s *stubSessions) Open(ctx context.Context) (*portal.Session, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.opened++
	return portal.NewSession(fmt.Sprintf("s%d", s.opened), browsertest.New()), nil
}

func (s *stubSessions) Recreate(ctx context.Context, old *portal.Session) (*portal.Session, error) {
	s.recreated++
	if s.recreateErr != nil {
		return nil, s.recreateErr
	}
	return s.Open(ctx)
}

func (s *stubSessions) Close(sess *portal.Session) { s.closed++ }

type stubNav struct {
	calls int
	errs  []error // popped per call; nil error once exhausted
}

func (n *stubNav) Goto(ctx context.Context, sess *portal.Session) (*portal.NavContext, error) {
	n.calls++
	if len(n.errs) > 0 {
		err := n.errs[0]
		n.errs = n.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &portal.NavContext{}, nil
}

type stubLocator struct {
	calls   []string
	results map[string]portal.LocateResult
	errs    map[string]error
}

func (l *stubLocator) Find(ctx context.Context, nav *portal.NavContext, orderNo string) (portal.LocateResult, error) {
	l.calls = append(l.calls, orderNo)
	if err := l.errs[orderNo]; err != nil {
		return portal.LocateResult{}, err
	}
	if res, ok := l.results[orderNo]; ok {
		return res, nil
	}
	return portal.LocateResult{Outcome: portal.LocateFound, Status: portal.StatusReceived}, nil
}

type stubFiller struct {
	calls   []string
	results map[string]portal.FormResult
	errs    map[string][]error // popped per call, for retry scripting
}

func (f *stubFiller) FillAndSubmit(ctx context.Context, nav *portal.NavContext, link browser.Element, rec order.Record) (portal.FormResult, error) {
	f.calls = append(f.calls, rec.OrderNo)
	if q := f.errs[rec.OrderNo]; len(q) > 0 {
		err := q[0]
		f.errs[rec.OrderNo] = q[1:]
		if err != nil {
			return portal.FormResult{}, err
		}
	}
	if res, ok := f.results[rec.OrderNo]; ok {
		return res, nil
	}
	return portal.FormResult{Outcome: portal.FormSaved}, nil
}

type memSink struct {
	flushes   [][]report.Result
	succeeded map[string]bool
	readErr   error
}

func (s *memSink) Append(ctx context.Context, results []report.Result) error {
	cp := make([]report.Result, len(results))
	copy(cp, results)
	s.flushes = append(s.flushes, cp)
	return nil
}

func (s *memSink) Succeeded(ctx context.Context) (map[string]bool, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.succeeded, nil
}

func (s *memSink) all() []report.Result {
	var out []report.Result
	for _, f := range s.flushes {
		out = append(out, f...)
	}
	return out
}

func (s *memSink) byOrder(orderNo string) []report.Result {
	var out []report.Result
	for _, r := range s.all() {
		if r.OrderNo == orderNo {
			out = append(out, r)
		}
	}
	return out
}

type fixture struct {
	sessions *stubSessions
	nav      *stubNav
	loc      *stubLocator
	filler   *stubFiller
	sink     *memSink
}

func newFixture() *fixture {
	return &fixture{
		sessions: &stubSessions{},
		nav:      &stubNav{},
		loc:      &stubLocator{results: map[string]portal.LocateResult{}, errs: map[string]error{}},
		filler:   &stubFiller{results: map[string]portal.FormResult{}, errs: map[string][]error{}},
		sink:     &memSink{},
	}
}

func (fx *fixture) orchestrator(opts Options) *Orchestrator {
	return New(fx.sessions, fx.nav, fx.loc, fx.filler, fx.sink, opts)
}

func TestRunRejectsInvalidRecordsWithoutSession(t *testing.T) {
	fx := newFixture()
	bad := validRecord("PO-BAD")
	bad.IRN = ""

	summary, err := fx.orchestrator(Options{MaxPasses: 3}).Run(context.Background(), []order.Record{bad})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fx.sessions.opened != 0 {
		t.Error("no session may be opened when nothing is processable")
	}
	res := fx.sink.byOrder("PO-BAD")
	if len(res) != 1 || res[0].Kind != report.KindError || !strings.HasPrefix(res[0].Message, "validation:") {
		t.Errorf("results = %+v, want one validation error", res)
	}
	if summary.Errors != 1 || summary.Total != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRunSkipsAlreadyProcessedOrders(t *testing.T) {
	fx := newFixture()
	fx.sink.succeeded = map[string]bool{"PO-1": true}

	_, err := fx.orchestrator(Options{}).Run(context.Background(),
		[]order.Record{validRecord("PO-1"), validRecord("PO-2")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := fx.filler.calls; len(got) != 1 || got[0] != "PO-2" {
		t.Errorf("filler calls = %v, want only PO-2", got)
	}
	if len(fx.sink.byOrder("PO-1")) != 0 {
		t.Error("already-processed order must not produce a new result")
	}
}

func TestRunSkipsNotFoundAndIneligible(t *testing.T) {
	fx := newFixture()
	fx.loc.results["PO-1"] = portal.LocateResult{Outcome: portal.LocateNotFound}
	fx.loc.results["PO-2"] = portal.LocateResult{Outcome: portal.LocateFound, Status: "PAID"}

	summary, err := fx.orchestrator(Options{MaxPasses: 3}).Run(context.Background(),
		[]order.Record{validRecord("PO-1"), validRecord("PO-2")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fx.filler.calls) != 0 {
		t.Errorf("filler must not run for skipped orders, got calls %v", fx.filler.calls)
	}
	if fx.sessions.recreated != 0 {
		t.Error("skips must not trigger session recovery")
	}
	res1 := fx.sink.byOrder("PO-1")
	if len(res1) != 1 || res1[0].Kind != report.KindSkipped || !strings.Contains(res1[0].Message, "not found") {
		t.Errorf("PO-1 results = %+v", res1)
	}
	res2 := fx.sink.byOrder("PO-2")
	if len(res2) != 1 || res2[0].Kind != report.KindSkipped || !strings.Contains(res2[0].Message, `"PAID"`) {
		t.Errorf("PO-2 results = %+v", res2)
	}
	if summary.Skipped != 2 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRunAmountMismatchNamesBothAmounts(t *testing.T) {
	fx := newFixture()
	fx.filler.results["PO-1"] = portal.FormResult{Outcome: portal.FormAmountMismatch, PrefillAmount: 400}

	_, err := fx.orchestrator(Options{}).Run(context.Background(), []order.Record{validRecord("PO-1")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := fx.sink.byOrder("PO-1")
	if len(res) != 1 || res[0].Kind != report.KindSkipped {
		t.Fatalf("results = %+v, want one skip", res)
	}
	for _, amount := range []string{"400", "500"} {
		if !strings.Contains(res[0].Message, amount) {
			t.Errorf("message %q must mention %s", res[0].Message, amount)
		}
	}
	if fx.sessions.recreated != 0 {
		t.Error("amount mismatch is a skip, not a session failure")
	}
}

func TestRunReportsSavedAndSavedWithErrors(t *testing.T) {
	fx := newFixture()
	fx.filler.results["PO-2"] = portal.FormResult{
		Outcome:            portal.FormSavedWithErrors,
		ValidationMessages: []string{"Tax code missing"},
	}

	summary, err := fx.orchestrator(Options{}).Run(context.Background(),
		[]order.Record{validRecord("PO-1"), validRecord("PO-2")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res := fx.sink.byOrder("PO-1"); len(res) != 1 || res[0].Kind != report.KindSuccess {
		t.Errorf("PO-1 results = %+v", res)
	}
	res := fx.sink.byOrder("PO-2")
	if len(res) != 1 || res[0].Kind != report.KindSuccessWithErrors || !strings.Contains(res[0].Message, "Tax code missing") {
		t.Errorf("PO-2 results = %+v", res)
	}
	if summary.Success != 1 || summary.WithErrors != 1 || summary.Total != 2 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRunRecoversSessionAndRetries(t *testing.T) {
	fx := newFixture()
	fx.filler.errs["PO-1"] = []error{errors.New("form blew up")}

	summary, err := fx.orchestrator(Options{MaxPasses: 2}).Run(context.Background(),
		[]order.Record{validRecord("PO-1"), validRecord("PO-2")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fx.sessions.recreated != 1 {
		t.Errorf("recreated = %d, want exactly 1", fx.sessions.recreated)
	}
	// PO-2 still runs in pass 1, on the replacement session.
	if got := fx.filler.calls; len(got) != 3 || got[0] != "PO-1" || got[1] != "PO-2" || got[2] != "PO-1" {
		t.Errorf("filler calls = %v, want PO-1, PO-2, then retried PO-1", got)
	}
	if len(fx.sink.flushes) != 2 {
		t.Errorf("flushes = %d, want one per pass", len(fx.sink.flushes))
	}
	res := fx.sink.byOrder("PO-1")
	if len(res) != 2 || res[0].Kind != report.KindError || res[1].Kind != report.KindSuccess {
		t.Errorf("PO-1 results = %+v, want error then success", res)
	}
	if summary.Success != 2 || summary.Errors != 1 || summary.Total != 3 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRunGivesUpAfterMaxPasses(t *testing.T) {
	fx := newFixture()
	fx.filler.errs["PO-1"] = []error{errors.New("boom"), errors.New("boom again")}

	summary, err := fx.orchestrator(Options{MaxPasses: 2}).Run(context.Background(),
		[]order.Record{validRecord("PO-1")})
	if err != nil {
		t.Fatalf("exhausted retries are a per-record outcome, not a run error: %v", err)
	}
	res := fx.sink.byOrder("PO-1")
	if len(res) != 3 {
		t.Fatalf("results = %+v, want two pass errors plus the terminal one", res)
	}
	if res[2].Message != "max retries exceeded" {
		t.Errorf("terminal message = %q", res[2].Message)
	}
	if summary.Errors != 3 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRunAbortsWhenRecoveryFails(t *testing.T) {
	fx := newFixture()
	fx.filler.errs["PO-1"] = []error{errors.New("boom")}
	fx.sessions.recreateErr = errors.New("login dead")

	_, err := fx.orchestrator(Options{MaxPasses: 3}).Run(context.Background(),
		[]order.Record{validRecord("PO-1"), validRecord("PO-2")})
	if err == nil || !strings.Contains(err.Error(), "session recovery failed") {
		t.Fatalf("err = %v, want fatal recovery failure", err)
	}
	res := fx.sink.byOrder("PO-2")
	if len(res) != 1 || res[0].Kind != report.KindError || res[0].Message != "session recovery failed" {
		t.Errorf("PO-2 results = %+v, want unattempted marker", res)
	}
}

func TestRunDryRunStopsBeforeForm(t *testing.T) {
	fx := newFixture()

	_, err := fx.orchestrator(Options{DryRun: true}).Run(context.Background(),
		[]order.Record{validRecord("PO-1")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fx.filler.calls) != 0 {
		t.Error("dry run must not reach the form workflow")
	}
	res := fx.sink.byOrder("PO-1")
	if len(res) != 1 || res[0].Kind != report.KindSkipped || !strings.Contains(res[0].Message, "dry run") {
		t.Errorf("results = %+v", res)
	}
}

func TestRunCancelledContextMarksRemaining(t *testing.T) {
	fx := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.orchestrator(Options{}).Run(ctx, []order.Record{validRecord("PO-1"), validRecord("PO-2")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	all := fx.sink.all()
	if len(all) != 2 {
		t.Fatalf("results = %+v, want both records marked", all)
	}
	for _, r := range all {
		if r.Kind != report.KindError || r.Message != "run cancelled" {
			t.Errorf("result = %+v", r)
		}
	}
}

func TestRunFailsWhenSinkUnreadable(t *testing.T) {
	fx := newFixture()
	fx.sink.readErr = errors.New("sheet unreachable")

	_, err := fx.orchestrator(Options{}).Run(context.Background(), []order.Record{validRecord("PO-1")})
	if err == nil || !strings.Contains(err.Error(), "sheet unreachable") {
		t.Fatalf("err = %v, want sink read failure", err)
	}
	if fx.sessions.opened != 0 {
		t.Error("no session may be opened when the sink cannot be read")
	}
}
