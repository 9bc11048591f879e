package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// ErrNotActionable is returned by Fill when the element is hidden or
// disabled and FillOptions.Force is not set.
var ErrNotActionable = errors.New("element is not visible or enabled")

const (
	visibleFn = `function() {
	const style = window.getComputedStyle(this);
	const rect = this.getBoundingClientRect();
	return style.visibility !== 'hidden' && style.display !== 'none' && rect.width > 0 && rect.height > 0;
}`
	enabledFn   = `function() { return !this.disabled && !this.readOnly; }`
	outerHTMLFn = `function() { return this.outerHTML; }`
	connectedFn = `function() { return this.isConnected; }`
	fillFn      = `function() {
	this.focus();
	this.value = %s;
	this.dispatchEvent(new Event('input', { bubbles: true }));
	this.dispatchEvent(new Event('change', { bubbles: true }));
}`
)

type chromeElement struct {
	s    *ChromeSession
	node *cdp.Node
}

// call runs fn with this bound to the element and decodes its return value
// into res, which may be nil.
func (e *chromeElement) call(ctx context.Context, fn string, res any) error {
	return e.s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		defer func() {
			_ = runtime.ReleaseObject(obj.ObjectID).Do(ctx)
		}()

		result, exception, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exception != nil {
			return fmt.Errorf("javascript exception: %s", exception.Text)
		}
		if res == nil || result == nil || len(result.Value) == 0 {
			return nil
		}
		return json.Unmarshal([]byte(result.Value), res)
	}))
}

func (e *chromeElement) Visible(ctx context.Context) (bool, error) {
	var visible bool
	if err := e.call(ctx, visibleFn, &visible); err != nil {
		return false, fmt.Errorf("failed to check visibility: %w", err)
	}
	return visible, nil
}

func (e *chromeElement) Fill(ctx context.Context, value string, opts FillOptions) error {
	if !opts.Force {
		visible, err := e.Visible(ctx)
		if err != nil {
			return err
		}
		var enabled bool
		if err := e.call(ctx, enabledFn, &enabled); err != nil {
			return fmt.Errorf("failed to check enabled state: %w", err)
		}
		if !visible || !enabled {
			return ErrNotActionable
		}
	}

	literal, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := e.call(ctx, fmt.Sprintf(fillFn, literal), nil); err != nil {
		return fmt.Errorf("failed to fill element: %w", err)
	}
	return nil
}

func (e *chromeElement) OuterHTML(ctx context.Context) (string, error) {
	var html string
	if err := e.call(ctx, outerHTMLFn, &html); err != nil {
		return "", fmt.Errorf("failed to serialize element: %w", err)
	}
	return html, nil
}

// Connected treats a node the browser can no longer resolve as detached.
func (e *chromeElement) Connected(ctx context.Context) (bool, error) {
	var connected bool
	if err := e.call(ctx, connectedFn, &connected); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		log.Debug().Err(err).Msg("Element handle no longer resolves")
		return false, nil
	}
	return connected, nil
}
