// Package browser defines the automation capability the portal layer runs
// against: navigation, element lookup, interaction, and nested-frame
// scoping. The production implementation drives Chrome through the DevTools
// protocol (chrome.go); tests run against the scripted fake in
// browsertest.
//
// Selectors are plain strings. A selector beginning with "//" or "(" is
// interpreted as an XPath expression, anything else as a CSS query. XPath
// is what makes text-addressed targets ("the link whose text is the order
// number") expressible without a role/text DSL.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrNoElement is returned by Scope.Find when the selector matches nothing.
// Callers that treat absence as a legitimate outcome (search miss,
// optional cookie banner) test for it with errors.Is.
var ErrNoElement = errors.New("browser: no element matches selector")

// Driver is a live browsing context. A Driver is not safe for concurrent
// use; the batch layer guarantees sequential access.
type Driver interface {
	// Navigate loads url and waits for the DOM content to be ready,
	// bounded by timeout.
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// Reload reloads the current page, bounded by timeout.
	Reload(ctx context.Context, timeout time.Duration) error

	// Root returns the top-level document scope.
	Root() Scope

	// Screenshot captures the current viewport to path.
	Screenshot(ctx context.Context, path string) error

	// Close releases the underlying browsing context unconditionally.
	Close() error
}

// Scope is a resolved element-query context: the top document or a nested
// frame. Scopes are cheap values; resolving a frame once and threading the
// Scope through subsequent calls is how frame-within-frame addressing
// stays in one place.
type Scope interface {
	// Find resolves the selector to exactly one element handle, or
	// ErrNoElement when nothing matches. Multiple matches resolve to the
	// first.
	Find(ctx context.Context, selector string) (Element, error)

	// Frame resolves the selector to an iframe and returns the scope of
	// its content document.
	Frame(ctx context.Context, selector string) (Scope, error)
}

// Element is a handle to one located element. Handles stay valid for the
// lifetime of the page state they were found in; after navigation they are
// stale and must be re-found.
type Element interface {
	WaitVisible(ctx context.Context, timeout time.Duration) error
	Click(ctx context.Context) error
	// Fill replaces the element's value with text.
	Fill(ctx context.Context, text string) error
	// Clear empties the element's value.
	Clear(ctx context.Context) error
	// SelectOption chooses the option with the given value attribute.
	SelectOption(ctx context.Context, value string) error
	// SetFiles attaches local files to a file input.
	SetFiles(ctx context.Context, paths ...string) error
	// Text returns the element's rendered text content.
	Text(ctx context.Context) (string, error)
	// Value returns the element's current value property.
	Value(ctx context.Context) (string, error)
}

// IsXPath reports whether selector should be evaluated as an XPath
// expression rather than a CSS query.
func IsXPath(selector string) bool {
	return len(selector) > 0 && (selector[0] == '/' || selector[0] == '(')
}
