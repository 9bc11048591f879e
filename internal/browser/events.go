package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// OnDialog registers handler for dialogs until release is called.
func (s *ChromeSession) OnDialog(handler DialogHandler) (release func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.dialogs[id] = handler
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.dialogs, id)
			s.mu.Unlock()
		})
	}
}

func (s *ChromeSession) dispatchDialog(ev any) {
	e, ok := ev.(*page.EventJavascriptDialogOpening)
	if !ok {
		return
	}

	s.mu.Lock()
	handlers := make([]DialogHandler, 0, len(s.dialogs))
	for _, h := range s.dialogs {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	d := &chromeDialog{s: s, message: e.Message}
	// Handling a dialog sends commands, which must not happen on the event loop.
	go func() {
		if len(handlers) == 0 {
			if err := d.Dismiss(); err != nil {
				log.Debug().Err(err).Msg("Failed to dismiss unhandled dialog")
			}
			return
		}
		for _, h := range handlers {
			h(d)
		}
	}()
}

type chromeDialog struct {
	s       *ChromeSession
	message string
	once    sync.Once
	err     error
}

func (d *chromeDialog) Message() string { return d.message }

func (d *chromeDialog) Dismiss() error {
	d.once.Do(func() {
		d.err = chromedp.Run(d.s.ctx, page.HandleJavaScriptDialog(false))
	})
	return d.err
}

// ExpectResponse watches for the first response accepted by match whose body
// has finished loading.
func (s *ChromeSession) ExpectResponse(ctx context.Context, match func(Response) bool) Expectation {
	listenCtx, cancel := context.WithCancel(s.ctx)
	w := &responseWatch{
		cancel:  cancel,
		found:   make(chan *chromeResponse, 1),
		pending: make(map[network.RequestID]*chromeResponse),
	}
	chromedp.ListenTarget(listenCtx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			if e.Response == nil {
				return
			}
			r := &chromeResponse{s: s, id: e.RequestID, url: e.Response.URL, status: e.Response.Status}
			if match(r) {
				w.pending[e.RequestID] = r
			}
		case *network.EventLoadingFinished:
			if r, ok := w.pending[e.RequestID]; ok {
				delete(w.pending, e.RequestID)
				select {
				case w.found <- r:
				default:
				}
			}
		case *network.EventLoadingFailed:
			delete(w.pending, e.RequestID)
		}
	})
	return w
}

// responseWatch is only touched by the event loop, except for found.
type responseWatch struct {
	cancel  context.CancelFunc
	found   chan *chromeResponse
	pending map[network.RequestID]*chromeResponse
}

func (w *responseWatch) Wait(ctx context.Context, timeout time.Duration) (Response, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case r := <-w.found:
		return r, nil
	case <-t.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (w *responseWatch) Close() { w.cancel() }

type chromeResponse struct {
	s      *ChromeSession
	id     network.RequestID
	url    string
	status int64
}

func (r *chromeResponse) URL() string   { return r.url }
func (r *chromeResponse) Status() int64 { return r.status }

func (r *chromeResponse) Text(ctx context.Context) (string, error) {
	var body []byte
	err := r.s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		body, err = network.GetResponseBody(r.id).Do(ctx)
		return err
	}))
	if err != nil {
		return "", fmt.Errorf("failed to read response body of %s: %w", r.url, err)
	}
	return string(body), nil
}

// OpenChannel attaches a protocol channel to the tab. Detaching it drops
// every handler registered through it.
func (s *ChromeSession) OpenChannel(ctx context.Context) (Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	chCtx, cancel := context.WithCancel(s.ctx)
	ch := &chromeChannel{s: s, cancel: cancel, handlers: make(map[int]channelHandler)}
	chromedp.ListenTarget(chCtx, ch.dispatch)
	return ch, nil
}

type channelHandler struct {
	method cdproto.MethodType
	fn     func(ev any)
}

type chromeChannel struct {
	s      *ChromeSession
	cancel context.CancelFunc

	mu       sync.Mutex
	handlers map[int]channelHandler
	nextID   int
	detached bool
}

func (c *chromeChannel) Send(ctx context.Context, cmd Command) error {
	return c.s.run(ctx, chromedp.ActionFunc(cmd.Do))
}

func (c *chromeChannel) On(method cdproto.MethodType, handler func(ev any)) (release func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = channelHandler{method: method, fn: handler}
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
	}
}

func (c *chromeChannel) Detach(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detached = true
	c.handlers = make(map[int]channelHandler)
	c.cancel()
	return nil
}

func (c *chromeChannel) dispatch(ev any) {
	method := eventMethod(ev)
	if method == "" {
		return
	}
	c.mu.Lock()
	if c.detached {
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

// eventMethod maps the decoded events a channel can forward back to their
// protocol method names.
func eventMethod(ev any) cdproto.MethodType {
	switch ev.(type) {
	case *network.EventResponseReceived:
		return cdproto.EventNetworkResponseReceived
	case *network.EventRequestWillBeSent:
		return cdproto.EventNetworkRequestWillBeSent
	case *network.EventLoadingFinished:
		return cdproto.EventNetworkLoadingFinished
	case *network.EventLoadingFailed:
		return cdproto.EventNetworkLoadingFailed
	case *page.EventJavascriptDialogOpening:
		return cdproto.EventPageJavascriptDialogOpening
	case *page.EventLifecycleEvent:
		return cdproto.EventPageLifecycleEvent
	case *page.EventFrameNavigated:
		return cdproto.EventPageFrameNavigated
	}
	return ""
}
