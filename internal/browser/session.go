// Package browser provides the browser session that detection modules drive.
package browser

import (
	"context"
	"time"

	"github.com/chromedp/cdproto"
)

// Session is a single page in a running browser. It is the only boundary the
// detection modules and the orchestrator depend on.
//
// Listener registrations (OnDialog, ExpectResponse, Channel.On) return a
// release handle; callers must release it before they return so handlers
// never leak into the next module sharing the page.
type Session interface {
	// Navigate loads url and waits until network activity settles.
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	PressKey(ctx context.Context, key string) error
	Wait(ctx context.Context, d time.Duration) error
	GoBack(ctx context.Context) error

	// OnDialog subscribes to alert/confirm/prompt dialogs. Dialogs raised
	// while nobody is subscribed are dismissed by the session.
	OnDialog(handler DialogHandler) (release func())

	// ExpectResponse starts watching for the next response accepted by match.
	// It must be called before the action that triggers the response.
	ExpectResponse(ctx context.Context, match func(Response) bool) Expectation

	OpenChannel(ctx context.Context) (Channel, error)

	DocumentHTML(ctx context.Context) (string, error)
	Evaluate(ctx context.Context, expression string, res any) error

	Close() error
}

// FillOptions tune Element.Fill.
type FillOptions struct {
	// Force skips the visibility and enabled checks.
	Force bool
}

// Element is a handle to a DOM element of the current document.
type Element interface {
	Visible(ctx context.Context) (bool, error)
	Fill(ctx context.Context, value string, opts FillOptions) error
	OuterHTML(ctx context.Context) (string, error)
	// Connected reports whether the element still belongs to the current
	// document. Handles from a replaced document report false.
	Connected(ctx context.Context) (bool, error)
}

// DialogHandler receives dialogs raised by the page. It runs outside the
// browser event loop and may issue commands.
type DialogHandler func(Dialog)

// Dialog is a JavaScript alert, confirm, prompt or beforeunload dialog.
type Dialog interface {
	Message() string
	Dismiss() error
}

// Response is a network response observed by the session.
type Response interface {
	URL() string
	Status() int64
	Text(ctx context.Context) (string, error)
}

// Expectation is a pending wait for a response.
type Expectation interface {
	// Wait blocks until a matching response has finished loading. It returns
	// nil, nil when timeout elapses first.
	Wait(ctx context.Context, timeout time.Duration) (Response, error)
	Close()
}

// Command is a low level protocol command, e.g. network.Enable().
type Command interface {
	Do(ctx context.Context) error
}

// Channel is a raw protocol channel attached to the page.
type Channel interface {
	Send(ctx context.Context, cmd Command) error
	// On registers handler for events of the given method. Handlers run on the
	// browser event loop and must not block.
	On(method cdproto.MethodType, handler func(ev any)) (release func())
	Detach(ctx context.Context) error
}
