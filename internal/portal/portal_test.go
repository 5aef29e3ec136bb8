package portal

import (
	"context"
	"testing"
	"time"

	"github.com/asamad/invoicebot/internal/browser/browsertest"
	"github.com/asamad/invoicebot/internal/config"
)

// testCfg shrinks every delay so the fake-driver tests run instantly.
func testCfg() config.Config {
	cfg := config.Default()
	cfg.Username = "user@example.com"
	cfg.Password = "secret"
	ms := time.Millisecond
	cfg.Timeouts = config.Timeouts{Navigation: 50 * ms, Element: 50 * ms, Login: 50 * ms}
	cfg.Settles = config.Settles{
		Toggle: ms, Search: ms, Frame: ms,
		Attachment: ms, Submission: ms, NavRetry: ms, PassDelay: ms,
	}
	return cfg
}

// readyFake scripts a document manager that is reachable and ready: the
// app frame exists and both anchor controls are visible inside it.
func readyFake() *browsertest.Fake {
	f := browsertest.New()
	f.AddFrame(selMainFrame)
	f.AddElement(&browsertest.Element{}, selMainFrame, selFilterButton)
	f.AddElement(&browsertest.Element{}, selMainFrame, selSearchBox)
	return f
}

// navContext resolves the fake's main frame the way the navigator would.
func navContext(t *testing.T, f *browsertest.Fake) *NavContext {
	t.Helper()
	root := f.Root()
	main, err := root.Frame(context.Background(), selMainFrame)
	if err != nil {
		t.Fatalf("resolve main frame: %v", err)
	}
	return &NavContext{Root: root, Main: main}
}

func testSession(f *browsertest.Fake) *Session {
	return NewSession("test", f)
}
