package portal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/asamad/invoicebot/internal/browser"
	"github.com/asamad/invoicebot/internal/config"
)

// NavContext is the known-good UI state the navigator establishes: the
// resolved main app frame scope plus the root document. It is valid until
// the next navigation and is re-established per record.
type NavContext struct {
	Root browser.Scope
	Main browser.Scope
}

// Navigator reaches the document manager list view with bounded retries
// and a reload fallback.
type Navigator struct {
	cfg config.Config
}

func NewNavigator(cfg config.Config) *Navigator {
	return &Navigator{cfg: cfg}
}

// Goto drives the session to the document manager and confirms readiness.
// Readiness is structural: the main frame exists and both anchor controls
// (filter trigger, search box) are visible inside it, because the shell
// reports loaded long before the embedded app has rendered.
//
// Up to cfg.NavAttempts direct attempts are made with a fixed delay in
// between. If all fail, the page is reloaded once and one final attempt is
// made; if that also fails the last error is surfaced as a navigation
// failure. Escalation beyond that (session recreation) belongs to the
// orchestrator, not here.
func (n *Navigator) Goto(ctx context.Context, sess *Session) (*NavContext, error) {
	var lastErr error
	for attempt := 1; attempt <= n.cfg.NavAttempts; attempt++ {
		nav, err := n.attempt(ctx, sess)
		if err == nil {
			log.Debug().Int("attempt", attempt).Msg("Document manager ready")
			return nav, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Int("max", n.cfg.NavAttempts).
			Msg("Document manager navigation failed")
		if attempt < n.cfg.NavAttempts {
			if err := settle(ctx, n.cfg.Settles.NavRetry); err != nil {
				return nil, err
			}
		}
	}

	// Reload fallback: the shell sometimes wedges in a state no further
	// navigation escapes, and a reload clears it.
	log.Warn().Msg("All direct attempts failed; reloading page before final attempt")
	if err := sess.Driver().Reload(ctx, n.cfg.Timeouts.Navigation); err != nil {
		return nil, failure(FailNavigation, "reload fallback", lastErr)
	}
	if err := settle(ctx, n.cfg.Settles.NavRetry); err != nil {
		return nil, err
	}
	nav, err := n.attempt(ctx, sess)
	if err != nil {
		return nil, failure(FailNavigation, "navigate to document manager", err)
	}
	log.Info().Msg("Document manager ready after reload fallback")
	return nav, nil
}

func (n *Navigator) attempt(ctx context.Context, sess *Session) (*NavContext, error) {
	drv := sess.Driver()
	if err := drv.Navigate(ctx, n.cfg.DocumentManager, n.cfg.Timeouts.Navigation); err != nil {
		return nil, err
	}

	root := drv.Root()
	if _, err := waitPresent(ctx, root, selMainFrame, n.cfg.Timeouts.Element); err != nil {
		return nil, err
	}
	main, err := root.Frame(ctx, selMainFrame)
	if err != nil {
		return nil, err
	}
	if _, err := waitVisible(ctx, main, selFilterButton, n.cfg.Timeouts.Element); err != nil {
		return nil, err
	}
	if _, err := waitVisible(ctx, main, selSearchBox, n.cfg.Timeouts.Element); err != nil {
		return nil, err
	}
	if err := settle(ctx, n.cfg.Settles.Toggle); err != nil {
		return nil, err
	}
	return &NavContext{Root: root, Main: main}, nil
}
