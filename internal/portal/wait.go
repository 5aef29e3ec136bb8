package portal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asamad/invoicebot/internal/browser"
)

const presencePollInterval = 250 * time.Millisecond

// settle sleeps for d while honoring cancellation. The portal UI gives no
// completion signal for most mutations; these floors are the substitute.
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitPresent polls scope for selector until it resolves or timeout
// elapses. Find alone races the portal's asynchronous rendering; the shell
// reports loaded well before the embedded app has produced its elements.
func waitPresent(ctx context.Context, scope browser.Scope, selector string, timeout time.Duration) (browser.Element, error) {
	deadline := time.Now().Add(timeout)
	for {
		el, err := scope.Find(ctx, selector)
		if err == nil {
			return el, nil
		}
		if !errors.Is(err, browser.ErrNoElement) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("element %q not present after %s: %w", selector, timeout, browser.ErrNoElement)
		}
		if err := settle(ctx, presencePollInterval); err != nil {
			return nil, err
		}
	}
}

// waitVisible resolves selector and waits for it to become visible.
func waitVisible(ctx context.Context, scope browser.Scope, selector string, timeout time.Duration) (browser.Element, error) {
	el, err := waitPresent(ctx, scope, selector, timeout)
	if err != nil {
		return nil, err
	}
	if err := el.WaitVisible(ctx, timeout); err != nil {
		return nil, err
	}
	return el, nil
}
