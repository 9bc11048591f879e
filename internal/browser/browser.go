package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/rs/zerolog/log"
)

// Config configures a new ChromeSession.
type Config struct {
	Headless                bool          `mapstructure:"headless"`
	Proxy                   string        `mapstructure:"proxy"`
	UserAgent               string        `mapstructure:"user_agent"`
	IgnoreCertificateErrors bool          `mapstructure:"ignore_certificate_errors"`
	NavigationTimeout       time.Duration `mapstructure:"navigation_timeout"`
}

// ChromeSession implements Session on top of a headless Chrome tab driven by chromedp.
type ChromeSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	navTimeout  time.Duration

	mu       sync.Mutex
	dialogs  map[int]DialogHandler
	nextID   int
	closed   bool
	closeErr error
}

// Launch starts a browser process, opens a tab and enables the network and
// lifecycle event domains the session relies on.
func Launch(ctx context.Context, cfg Config) (*ChromeSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.Proxy != "" {
		opts = append(opts, chromedp.ProxyServer(cfg.Proxy))
	}
	if cfg.IgnoreCertificateErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancel := chromedp.NewContext(allocCtx)

	navTimeout := cfg.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}

	s := &ChromeSession{
		ctx:         tabCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		navTimeout:  navTimeout,
		dialogs:     make(map[int]DialogHandler),
	}
	chromedp.ListenTarget(tabCtx, s.dispatchDialog)

	if err := chromedp.Run(tabCtx,
		network.Enable(),
		page.SetLifecycleEventsEnabled(true),
	); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	log.Debug().Bool("headless", cfg.Headless).Msg("Browser session started")
	return s, nil
}

// Close closes the tab, then the browser, then kills the allocated process.
// It is safe to call more than once.
func (s *ChromeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.closeErr
	}
	s.closed = true

	if err := chromedp.Cancel(s.ctx); err != nil {
		s.closeErr = fmt.Errorf("failed to close browser: %w", err)
	}
	s.cancel()
	s.allocCancel()
	return s.closeErr
}

// run executes actions on the tab while honouring cancellation of ctx.
func (s *ChromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for the networkIdle lifecycle event. If the
// page never goes idle within the navigation timeout the wait is abandoned
// and navigation is considered complete.
func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	idle := make(chan struct{}, 1)
	listenCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	var started bool
	chromedp.ListenTarget(listenCtx, func(ev any) {
		e, ok := ev.(*page.EventLifecycleEvent)
		if !ok {
			return
		}
		switch e.Name {
		case "init":
			started = true
		case "networkIdle":
			if started {
				select {
				case idle <- struct{}{}:
				default:
				}
			}
		}
	})

	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	select {
	case <-idle:
	case <-time.After(s.navTimeout):
		log.Debug().Str("url", url).Dur("timeout", s.navTimeout).Msg("Network did not go idle, continuing")
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (s *ChromeSession) CurrentURL(ctx context.Context) (string, error) {
	var u string
	if err := s.run(ctx, chromedp.Location(&u)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return u, nil
}

func (s *ChromeSession) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", selector, err)
	}
	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &chromeElement{s: s, node: n})
	}
	return elements, nil
}

var namedKeys = map[string]string{
	"Enter":     kb.Enter,
	"Tab":       kb.Tab,
	"Escape":    kb.Escape,
	"Backspace": kb.Backspace,
}

func (s *ChromeSession) PressKey(ctx context.Context, key string) error {
	if k, ok := namedKeys[key]; ok {
		key = k
	}
	return s.run(ctx, chromedp.KeyEvent(key))
}

func (s *ChromeSession) Wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ChromeSession) GoBack(ctx context.Context) error {
	if err := s.run(ctx, chromedp.NavigateBack()); err != nil {
		return fmt.Errorf("failed to navigate back: %w", err)
	}
	return nil
}

// DocumentHTML returns the rendered outer HTML of the document element.
func (s *ChromeSession) DocumentHTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	return html, nil
}

func (s *ChromeSession) Evaluate(ctx context.Context, expression string, res any) error {
	return s.run(ctx, chromedp.Evaluate(expression, res))
}
