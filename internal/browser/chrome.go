package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// Options configures a Chrome driver.
type Options struct {
	Headless bool
	// DefaultTimeout bounds operations whose caller passes no explicit
	// timeout. Zero means 60s, matching the portal's slowest views.
	DefaultTimeout time.Duration
}

// Chrome drives a real Chrome instance over the DevTools protocol.
type Chrome struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	timeout     time.Duration
}

// NewChrome launches a browser and returns a Driver bound to a fresh
// browsing context. The parent context bounds the whole browser lifetime.
func NewChrome(parent context.Context, opts Options) (*Chrome, error) {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 60 * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("start-maximized", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	// Force the browser process to start now so launch failures surface
	// here instead of on the first navigation.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("browser: launch chrome: %w", err)
	}

	return &Chrome{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		timeout:     opts.DefaultTimeout,
	}, nil
}

func (c *Chrome) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if timeout <= 0 {
		timeout = c.timeout
	}
	tctx, tcancel := context.WithTimeout(c.ctx, timeout)
	defer tcancel()
	// Honor the caller's cancellation as well as the driver's lifetime.
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(tctx, actions...) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		tcancel()
		<-done
		return ctx.Err()
	}
}

// Navigate implements Driver.
func (c *Chrome) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := c.run(ctx, timeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	return nil
}

// Reload implements Driver.
func (c *Chrome) Reload(ctx context.Context, timeout time.Duration) error {
	if err := c.run(ctx, timeout,
		chromedp.Reload(),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("browser: reload: %w", err)
	}
	return nil
}

// Root implements Driver.
func (c *Chrome) Root() Scope {
	return &chromeScope{drv: c}
}

// Screenshot implements Driver.
func (c *Chrome) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := c.run(ctx, 0, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("browser: screenshot: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("browser: screenshot dir: %w", err)
		}
	}
	return os.WriteFile(path, buf, 0o644)
}

// Close implements Driver. Cancel tears down the browsing context and the
// browser process; it is safe on fatal paths where the context is already
// dead.
func (c *Chrome) Close() error {
	err := chromedp.Cancel(c.ctx)
	c.cancel()
	c.allocCancel()
	return err
}

// chromeScope is the top document or a nested frame. frame is nil for the
// root scope; for frame scopes it is the iframe's resolved node, and CSS
// queries are evaluated from it.
type chromeScope struct {
	drv   *Chrome
	frame *cdp.Node
}

func (s *chromeScope) queryOpts(selector string) []chromedp.QueryOption {
	if IsXPath(selector) {
		// DOM search spans frame boundaries, which is what the portal's
		// frame-within-frame text targets rely on.
		return []chromedp.QueryOption{chromedp.BySearch}
	}
	opts := []chromedp.QueryOption{chromedp.ByQuery}
	if s.frame != nil {
		opts = append(opts, chromedp.FromNode(s.frame))
	}
	return opts
}

// Find implements Scope.
func (s *chromeScope) Find(ctx context.Context, selector string) (Element, error) {
	var nodes []*cdp.Node
	opts := append(s.queryOpts(selector), chromedp.AtLeast(0))
	if err := s.drv.run(ctx, 0, chromedp.Nodes(selector, &nodes, opts...)); err != nil {
		return nil, fmt.Errorf("browser: find %q: %w", selector, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("browser: find %q: %w", selector, ErrNoElement)
	}
	return &chromeElement{scope: s, selector: selector}, nil
}

// Frame implements Scope.
func (s *chromeScope) Frame(ctx context.Context, selector string) (Scope, error) {
	var nodes []*cdp.Node
	opts := append(s.queryOpts(selector), chromedp.AtLeast(0))
	if err := s.drv.run(ctx, 0, chromedp.Nodes(selector, &nodes, opts...)); err != nil {
		return nil, fmt.Errorf("browser: frame %q: %w", selector, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("browser: frame %q: %w", selector, ErrNoElement)
	}
	return &chromeScope{drv: s.drv, frame: nodes[0]}, nil
}

type chromeElement struct {
	scope    *chromeScope
	selector string
}

func (e *chromeElement) opts() []chromedp.QueryOption {
	return e.scope.queryOpts(e.selector)
}

func (e *chromeElement) WaitVisible(ctx context.Context, timeout time.Duration) error {
	if err := e.scope.drv.run(ctx, timeout, chromedp.WaitVisible(e.selector, e.opts()...)); err != nil {
		return fmt.Errorf("browser: wait visible %q: %w", e.selector, err)
	}
	return nil
}

func (e *chromeElement) Click(ctx context.Context) error {
	if err := e.scope.drv.run(ctx, 0, chromedp.Click(e.selector, e.opts()...)); err != nil {
		return fmt.Errorf("browser: click %q: %w", e.selector, err)
	}
	return nil
}

func (e *chromeElement) Fill(ctx context.Context, text string) error {
	if err := e.scope.drv.run(ctx, 0, chromedp.SetValue(e.selector, text, e.opts()...)); err != nil {
		return fmt.Errorf("browser: fill %q: %w", e.selector, err)
	}
	return nil
}

func (e *chromeElement) Clear(ctx context.Context) error {
	if err := e.scope.drv.run(ctx, 0, chromedp.SetValue(e.selector, "", e.opts()...)); err != nil {
		return fmt.Errorf("browser: clear %q: %w", e.selector, err)
	}
	return nil
}

func (e *chromeElement) SelectOption(ctx context.Context, value string) error {
	if err := e.scope.drv.run(ctx, 0, chromedp.SetValue(e.selector, value, e.opts()...)); err != nil {
		return fmt.Errorf("browser: select %q on %q: %w", value, e.selector, err)
	}
	return nil
}

func (e *chromeElement) SetFiles(ctx context.Context, paths ...string) error {
	if err := e.scope.drv.run(ctx, 0, chromedp.SetUploadFiles(e.selector, paths, e.opts()...)); err != nil {
		return fmt.Errorf("browser: set files on %q: %w", e.selector, err)
	}
	return nil
}

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var out string
	if err := e.scope.drv.run(ctx, 0, chromedp.Text(e.selector, &out, e.opts()...)); err != nil {
		return "", fmt.Errorf("browser: text of %q: %w", e.selector, err)
	}
	return out, nil
}

func (e *chromeElement) Value(ctx context.Context) (string, error) {
	var out string
	if err := e.scope.drv.run(ctx, 0, chromedp.Value(e.selector, &out, e.opts()...)); err != nil {
		return "", fmt.Errorf("browser: value of %q: %w", e.selector, err)
	}
	return out, nil
}

var _ Driver = (*Chrome)(nil)
