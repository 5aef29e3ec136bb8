// Package portal implements the interaction layer against the Tradeshift
// web UI: session lifecycle, document-manager navigation, order lookup,
// and the invoice form workflow. All UI access goes through the
// browser.Driver capability, so the whole package runs unchanged against
// the scripted fake in tests.
package portal

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/asamad/invoicebot/internal/browser"
	"github.com/asamad/invoicebot/internal/config"
)

// DriverFactory creates a fresh browsing context. The session manager owns
// the returned driver and closes it on teardown.
type DriverFactory func(ctx context.Context) (browser.Driver, error)

// Session is one live authenticated browsing context. Sessions are never
// repaired after a failure; the manager discards and replaces them, since
// UI state after an exception is unknown.
type Session struct {
	id  string
	drv browser.Driver
}

// NewSession wraps an already-authenticated driver as a Session. The
// session manager builds sessions through here; tests that stub the
// lifecycle do too.
func NewSession(id string, drv browser.Driver) *Session {
	return &Session{id: id, drv: drv}
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Driver exposes the underlying browsing context.
func (s *Session) Driver() browser.Driver { return s.drv }

// SessionManager owns browser session lifecycle: open, authenticate,
// close, recreate.
type SessionManager struct {
	factory DriverFactory
	cfg     config.Config
}

func NewSessionManager(factory DriverFactory, cfg config.Config) *SessionManager {
	return &SessionManager{factory: factory, cfg: cfg}
}

// Open creates a browsing context and authenticates it. Auth failures are
// returned as FailAuth portal errors; the caller decides whether they are
// fatal (batch start, failed recreate) or recoverable.
func (m *SessionManager) Open(ctx context.Context) (*Session, error) {
	drv, err := m.factory(ctx)
	if err != nil {
		return nil, failure(FailAuth, "launch browser", err)
	}
	sess := NewSession(uuid.NewString()[:8], drv)
	if err := m.login(ctx, sess); err != nil {
		_ = drv.Close()
		return nil, err
	}
	log.Info().Str("session", sess.id).Msg("Session authenticated")
	return sess, nil
}

// Recreate tears down old and opens a replacement. A failure here is
// fatal for the batch: without a working session no further record can be
// attempted.
func (m *SessionManager) Recreate(ctx context.Context, old *Session) (*Session, error) {
	if old != nil {
		log.Warn().Str("session", old.id).Msg("Discarding session for recovery")
		m.Close(old)
	}
	sess, err := m.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("session recreate: %w", err)
	}
	return sess, nil
}

// Close releases the session's resources unconditionally. Safe on nil and
// on already-dead sessions.
func (m *SessionManager) Close(s *Session) {
	if s == nil || s.drv == nil {
		return
	}
	if err := s.drv.Close(); err != nil {
		log.Debug().Err(err).Str("session", s.id).Msg("Browser close reported error")
	}
}

func (m *SessionManager) login(ctx context.Context, sess *Session) error {
	drv := sess.drv
	if err := drv.Navigate(ctx, m.cfg.BaseURL, m.cfg.Timeouts.Navigation); err != nil {
		return failure(FailAuth, "open login page", err)
	}

	root := drv.Root()

	// The consent banner only shows on fresh browser profiles.
	if banner, err := root.Find(ctx, selCookieAccept); err == nil {
		if err := banner.Click(ctx); err != nil {
			log.Debug().Err(err).Msg("Cookie banner present but not clickable; continuing")
		}
	} else if !errors.Is(err, browser.ErrNoElement) {
		return failure(FailAuth, "check cookie banner", err)
	}

	userField, err := root.Find(ctx, selUsername)
	if err != nil {
		return failure(FailAuth, "locate username field", err)
	}
	if err := userField.Fill(ctx, m.cfg.Username); err != nil {
		return failure(FailAuth, "fill username", err)
	}
	passField, err := root.Find(ctx, selPassword)
	if err != nil {
		return failure(FailAuth, "locate password field", err)
	}
	if err := passField.Fill(ctx, m.cfg.Password); err != nil {
		return failure(FailAuth, "fill password", err)
	}
	submit, err := root.Find(ctx, selLoginSubmit)
	if err != nil {
		return failure(FailAuth, "locate login button", err)
	}
	if err := submit.Click(ctx); err != nil {
		return failure(FailAuth, "submit login", err)
	}

	// Authenticated state is defined structurally: the app shell's main
	// frame appears only after a successful login.
	if _, err := waitPresent(ctx, root, selMainFrame, m.cfg.Timeouts.Login); err != nil {
		return failure(FailAuth, "wait for authenticated shell", err)
	}
	if err := settle(ctx, m.cfg.Settles.Frame); err != nil {
		return err
	}
	return nil
}
