// Package browsertest provides a scripted in-memory browser.Driver for
// testing the portal and batch layers without Chrome. Tests register
// elements keyed by their frame path and selector, queue navigation
// failures, and inspect the recorded call log afterward.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/asamad/invoicebot/internal/browser"
)

// Sep joins frame selectors and element selectors into element keys,
// e.g. `iframe[name="main-app-iframe"] >> //input[@placeholder="Search"]`.
const Sep = " >> "

// Call is one recorded element operation.
type Call struct {
	Op  string // "click", "fill", "clear", "select", "setfiles", "text", "value", "wait"
	Key string // full frame-path key of the element
	Arg string // fill text, selected value, or first file path
}

// Element is one scripted DOM element.
type Element struct {
	TextContent string
	InputValue  string
	Hidden      bool // WaitVisible times out

	// Per-op injected failures; keys match Call.Op.
	Errs map[string]error
}

// Fake is a scripted Driver. All methods are safe for concurrent use,
// though the code under test is sequential by contract.
type Fake struct {
	mu sync.Mutex

	elements map[string]*Element
	frames   map[string]bool

	// NavErrs is popped once per Navigate call; a nil entry means that
	// attempt succeeds. When exhausted, navigation succeeds.
	NavErrs   []error
	ReloadErr error

	Navigations []string
	Reloads     int
	Screenshots []string
	Calls       []Call
	Closed      bool
}

// New returns an empty fake with no elements registered.
func New() *Fake {
	return &Fake{
		elements: make(map[string]*Element),
		frames:   make(map[string]bool),
	}
}

// AddFrame registers a frame at the given path (parent frames first, then
// the frame's own selector).
func (f *Fake) AddFrame(path ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames[join(path)] = true
}

// AddElement registers an element reachable at the given path. The last
// path component is the element selector; anything before it is the frame
// chain, which is registered implicitly.
func (f *Fake) AddElement(el *Element, path ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 1; i < len(path); i++ {
		f.frames[join(path[:i])] = true
	}
	f.elements[join(path)] = el
}

// RemoveElement unregisters an element, simulating content that left the
// DOM.
func (f *Fake) RemoveElement(path ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.elements, join(path))
}

// RemoveFrame unregisters a frame, simulating a shell that never loaded.
func (f *Fake) RemoveFrame(path ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.frames, join(path))
	delete(f.elements, join(path))
}

// Element returns the registered element, or nil.
func (f *Fake) Element(path ...string) *Element {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.elements[join(path)]
}

// CallsFor returns the recorded operations against one element key.
func (f *Fake) CallsFor(path ...string) []Call {
	key := join(path)
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.Calls {
		if c.Key == key {
			out = append(out, c)
		}
	}
	return out
}

func join(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += Sep
		}
		out += p
	}
	return out
}

// --- Driver implementation ---

func (f *Fake) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Navigations = append(f.Navigations, url)
	if len(f.NavErrs) > 0 {
		err := f.NavErrs[0]
		f.NavErrs = f.NavErrs[1:]
		return err
	}
	return nil
}

func (f *Fake) Reload(ctx context.Context, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reloads++
	return f.ReloadErr
}

func (f *Fake) Root() browser.Scope {
	return &fakeScope{drv: f}
}

func (f *Fake) Screenshot(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Screenshots = append(f.Screenshots, path)
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

type fakeScope struct {
	drv  *Fake
	path []string
}

func (s *fakeScope) Find(ctx context.Context, selector string) (browser.Element, error) {
	key := join(append(append([]string{}, s.path...), selector))
	s.drv.mu.Lock()
	el, ok := s.drv.elements[key]
	if !ok && s.drv.frames[key] {
		// A registered frame is findable as an element too, the way a
		// real iframe node is.
		el = &Element{}
		s.drv.elements[key] = el
		ok = true
	}
	s.drv.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("find %q: %w", key, browser.ErrNoElement)
	}
	return &fakeElement{drv: s.drv, key: key, el: el}, nil
}

func (s *fakeScope) Frame(ctx context.Context, selector string) (browser.Scope, error) {
	path := append(append([]string{}, s.path...), selector)
	key := join(path)
	s.drv.mu.Lock()
	ok := s.drv.frames[key]
	s.drv.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("frame %q: %w", key, browser.ErrNoElement)
	}
	return &fakeScope{drv: s.drv, path: path}, nil
}

type fakeElement struct {
	drv *Fake
	key string
	el  *Element
}

func (e *fakeElement) record(op, arg string) error {
	e.drv.mu.Lock()
	e.drv.Calls = append(e.drv.Calls, Call{Op: op, Key: e.key, Arg: arg})
	err := e.el.Errs[op]
	e.drv.mu.Unlock()
	return err
}

func (e *fakeElement) WaitVisible(ctx context.Context, timeout time.Duration) error {
	if err := e.record("wait", ""); err != nil {
		return err
	}
	if e.el.Hidden {
		return fmt.Errorf("element %q not visible after %s", e.key, timeout)
	}
	return nil
}

func (e *fakeElement) Click(ctx context.Context) error {
	return e.record("click", "")
}

func (e *fakeElement) Fill(ctx context.Context, text string) error {
	if err := e.record("fill", text); err != nil {
		return err
	}
	e.drv.mu.Lock()
	e.el.InputValue = text
	e.drv.mu.Unlock()
	return nil
}

func (e *fakeElement) Clear(ctx context.Context) error {
	if err := e.record("clear", ""); err != nil {
		return err
	}
	e.drv.mu.Lock()
	e.el.InputValue = ""
	e.drv.mu.Unlock()
	return nil
}

func (e *fakeElement) SelectOption(ctx context.Context, value string) error {
	if err := e.record("select", value); err != nil {
		return err
	}
	e.drv.mu.Lock()
	e.el.InputValue = value
	e.drv.mu.Unlock()
	return nil
}

func (e *fakeElement) SetFiles(ctx context.Context, paths ...string) error {
	arg := ""
	if len(paths) > 0 {
		arg = paths[0]
	}
	return e.record("setfiles", arg)
}

func (e *fakeElement) Text(ctx context.Context) (string, error) {
	if err := e.record("text", ""); err != nil {
		return "", err
	}
	return e.el.TextContent, nil
}

func (e *fakeElement) Value(ctx context.Context) (string, error) {
	if err := e.record("value", ""); err != nil {
		return "", err
	}
	return e.el.InputValue, nil
}

var _ browser.Driver = (*Fake)(nil)
