// Package testutil provides a scriptable in-memory browser session for tests.
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"autoprobe/internal/browser"

	"github.com/chromedp/cdproto"
)

var _ browser.Session = (*Session)(nil)

// Element is a fake input element.
type Element struct {
	ID      string
	Hidden  bool
	Value   string
	FillErr error
	session *Session
	stale   bool
}

// errStaleNode mirrors the protocol error for a node of a replaced document.
var errStaleNode = errors.New("could not find node with given id")

// Session is an in-memory browser.Session. Page behaviour on submission is
// scripted through OnEnter; every interaction is recorded for assertions.
type Session struct {
	mu sync.Mutex

	URL      string
	Document string
	inputs   []*Element
	focused  *Element

	// OnEnter runs when Enter is pressed, with the element filled last.
	OnEnter func(s *Session, focused *Element)
	// OnNavigate runs after every Navigate call.
	OnNavigate func(s *Session, url string)

	NavigateErr error
	QueryErr    error
	ChannelErr  error
	CloseErr    error

	Navigations []string
	Fills       []string
	Waits       []time.Duration
	Backs       int
	Closed      bool
	Dismissed   []string

	history   []string
	dialogs   map[int]browser.DialogHandler
	nextID    int
	expects   []*Expectation
	channels  []*Channel
	evaluated map[string]any
}

// NewSession returns a session showing url.
func NewSession(url string) *Session {
	return &Session{
		URL:       url,
		dialogs:   make(map[int]browser.DialogHandler),
		evaluated: make(map[string]any),
	}
}

// AddInput appends an input element to the page.
func (s *Session) AddInput(id string, hidden bool) *Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &Element{ID: id, Hidden: hidden, session: s}
	s.inputs = append(s.inputs, e)
	return e
}

// SetEvaluation scripts the result of Evaluate for expression.
func (s *Session) SetEvaluation(expression string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluated[expression] = v
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	s.Navigations = append(s.Navigations, url)
	err := s.NavigateErr
	if err == nil {
		s.history = append(s.history, s.URL)
		s.URL = url
	}
	hook := s.OnNavigate
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if hook != nil {
		hook(s, url)
	}
	return nil
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.URL, nil
}

func (s *Session) QueryAll(ctx context.Context, selector string) ([]browser.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	out := make([]browser.Element, 0, len(s.inputs))
	for _, e := range s.inputs {
		out = append(out, e)
	}
	return out, nil
}

func (s *Session) PressKey(ctx context.Context, key string) error {
	s.mu.Lock()
	hook, focused := s.OnEnter, s.focused
	s.mu.Unlock()
	if key == "Enter" && hook != nil {
		hook(s, focused)
	}
	return nil
}

func (s *Session) Wait(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Waits = append(s.Waits, d)
	return ctx.Err()
}

func (s *Session) GoBack(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Backs++
	if n := len(s.history); n > 0 {
		s.URL = s.history[n-1]
		s.history = s.history[:n-1]
	}
	return nil
}

// ReplaceDocument simulates the page loading a new document at the same URL,
// e.g. a form posting back to itself. Existing handles go stale and the
// inputs are recreated empty.
func (s *Session) ReplaceDocument() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fresh := make([]*Element, 0, len(s.inputs))
	for _, e := range s.inputs {
		e.stale = true
		fresh = append(fresh, &Element{ID: e.ID, Hidden: e.Hidden, session: s})
	}
	s.inputs = fresh
	s.focused = nil
}

// SetURL simulates the page navigating on its own, e.g. a form submission.
func (s *Session) SetURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, s.URL)
	s.URL = url
}

func (s *Session) OnDialog(handler browser.DialogHandler) (release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.dialogs[id] = handler
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.dialogs, id)
	}
}

// DialogHandlers returns the number of registered dialog handlers.
func (s *Session) DialogHandlers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dialogs)
}

// RaiseDialog delivers a dialog to every subscribed handler synchronously.
// Unhandled dialogs are dismissed, as the real session does.
func (s *Session) RaiseDialog(message string) {
	s.mu.Lock()
	handlers := make([]browser.DialogHandler, 0, len(s.dialogs))
	for _, h := range s.dialogs {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	d := &dialog{s: s, message: message}
	if len(handlers) == 0 {
		_ = d.Dismiss()
		return
	}
	for _, h := range handlers {
		h(d)
	}
}

type dialog struct {
	s         *Session
	message   string
	dismissed bool
}

func (d *dialog) Message() string { return d.message }

func (d *dialog) Dismiss() error {
	if d.dismissed {
		return errors.New("dialog already handled")
	}
	d.dismissed = true
	d.s.mu.Lock()
	d.s.Dismissed = append(d.s.Dismissed, d.message)
	d.s.mu.Unlock()
	return nil
}

func (s *Session) ExpectResponse(ctx context.Context, match func(browser.Response) bool) browser.Expectation {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &Expectation{match: match}
	s.expects = append(s.expects, e)
	return e
}

// OpenExpectations returns the number of expectations not yet closed.
func (s *Session) OpenExpectations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.expects {
		if !e.closed {
			n++
		}
	}
	return n
}

// Respond delivers a finished response to every open expectation that accepts it.
func (s *Session) Respond(url, body string) {
	s.mu.Lock()
	expects := append([]*Expectation(nil), s.expects...)
	s.mu.Unlock()

	r := &Response{url: url, body: body}
	for _, e := range expects {
		if !e.closed && e.got == nil && e.match(r) {
			e.got = r
		}
	}
}

// Expectation resolves to the first accepted response. Without one Wait
// behaves as if the timeout elapsed.
type Expectation struct {
	match  func(browser.Response) bool
	got    *Response
	closed bool
}

func (e *Expectation) Wait(ctx context.Context, timeout time.Duration) (browser.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.got == nil {
		return nil, nil
	}
	return e.got, nil
}

func (e *Expectation) Close() { e.closed = true }

// Response is a fake network response.
type Response struct {
	url  string
	body string
}

func (r *Response) URL() string                              { return r.url }
func (r *Response) Status() int64                            { return 200 }
func (r *Response) Text(ctx context.Context) (string, error) { return r.body, nil }

func (s *Session) OpenChannel(ctx context.Context) (browser.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ChannelErr != nil {
		return nil, s.ChannelErr
	}
	ch := &Channel{handlers: make(map[int]channelHandler)}
	s.channels = append(s.channels, ch)
	return ch, nil
}

// Channels returns every channel opened so far.
func (s *Session) Channels() []*Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Channel(nil), s.channels...)
}

// Emit delivers ev to every attached channel handler registered for method.
func (s *Session) Emit(method cdproto.MethodType, ev any) {
	for _, ch := range s.Channels() {
		ch.emit(method, ev)
	}
}

type channelHandler struct {
	method cdproto.MethodType
	fn     func(any)
}

// Channel is a fake protocol channel.
type Channel struct {
	mu       sync.Mutex
	Sent     []browser.Command
	Detached bool
	handlers map[int]channelHandler
	nextID   int
}

func (c *Channel) Send(ctx context.Context, cmd browser.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Detached {
		return errors.New("channel detached")
	}
	c.Sent = append(c.Sent, cmd)
	return nil
}

func (c *Channel) On(method cdproto.MethodType, handler func(ev any)) (release func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = channelHandler{method: method, fn: handler}
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers, id)
	}
}

func (c *Channel) Detach(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Detached = true
	return nil
}

// Handlers returns the number of registered handlers.
func (c *Channel) Handlers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers)
}

func (c *Channel) emit(method cdproto.MethodType, ev any) {
	c.mu.Lock()
	if c.Detached {
		c.mu.Unlock()
		return
	}
	var fns []func(any)
	for _, h := range c.handlers {
		if h.method == method {
			fns = append(fns, h.fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Session) DocumentHTML(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Document, nil
}

func (s *Session) Evaluate(ctx context.Context, expression string, res any) error {
	s.mu.Lock()
	v, ok := s.evaluated[expression]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no scripted result for %q", expression)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("scripted result for %q: %w", expression, err)
	}
	return json.Unmarshal(data, res)
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return s.CloseErr
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	if e.isStale() {
		return false, errStaleNode
	}
	return !e.Hidden, nil
}

func (e *Element) Connected(ctx context.Context) (bool, error) {
	return !e.isStale(), nil
}

func (e *Element) isStale() bool {
	e.session.mu.Lock()
	defer e.session.mu.Unlock()
	return e.stale
}

func (e *Element) Fill(ctx context.Context, value string, opts browser.FillOptions) error {
	if e.FillErr != nil {
		return e.FillErr
	}
	if e.isStale() {
		return errStaleNode
	}
	if e.Hidden && !opts.Force {
		return browser.ErrNotActionable
	}
	s := e.session
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Value = value
	s.focused = e
	s.Fills = append(s.Fills, e.ID+"="+value)
	return nil
}

func (e *Element) OuterHTML(ctx context.Context) (string, error) {
	if e.isStale() {
		return "", errStaleNode
	}
	hidden := ""
	if e.Hidden {
		hidden = ` type="hidden"`
	}
	return fmt.Sprintf(`<input id="%s"%s value="%s">`, e.ID, hidden, e.Value), nil
}
