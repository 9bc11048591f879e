package modules

import (
	"context"
	"strings"

	"autoprobe/internal/browser"

	"github.com/fatih/color"
)

// XSSName is the name of the XSS module and the token its payloads raise.
const XSSName = "XSSModule"

// XSSEvidence describes the injection that was last tested, or the one that
// fired when the module is positive.
type XSSEvidence struct {
	URL     string `json:"url"`
	Payload string `json:"payload"`
	Element string `json:"element"`
}

// XSSModule detects reflected XSS by filling inputs with payloads that raise
// a dialog carrying the module name.
type XSSModule struct {
	state
	opts     Options
	payloads []string
}

// NewXSSModule creates a new XSSModule.
func NewXSSModule(opts Options) *XSSModule {
	catalog := defaultXSSPayloads
	if len(opts.XSSPayloads) > 0 {
		catalog = opts.XSSPayloads
	}
	return &XSSModule{
		state:    newState(XSSName),
		opts:     opts,
		payloads: expandPayloads(catalog, XSSName),
	}
}

// Payloads returns the catalog in test order.
func (m *XSSModule) Payloads() []string {
	return append([]string(nil), m.payloads...)
}

// Run subscribes to dialogs for the duration of the scan only.
func (m *XSSModule) Run(ctx context.Context, s browser.Session) {
	release := s.OnDialog(m.handleDialog)
	defer func() {
		release()
		if r := m.Result(); r.Positive {
			m.critical().Interface("evidence", r.Result).Msg(color.RedString("Found positive XSS result"))
		}
	}()

	try := func(ctx context.Context, a attempt) error {
		m.setResult(XSSEvidence{URL: a.url, Payload: a.payload, Element: a.element})
		if err := a.input.Fill(ctx, a.payload, browser.FillOptions{Force: true}); err != nil {
			return err
		}
		if err := s.PressKey(ctx, "Enter"); err != nil {
			return err
		}
		return s.Wait(ctx, m.opts.settle())
	}

	if err := m.injectInputs(ctx, s, m.opts, m.payloads, try); err != nil {
		m.warning().Err(err).Msg("Error running")
	}
}

// handleDialog dismisses every dialog; only those carrying the module name
// count as a confirmation.
func (m *XSSModule) handleDialog(d browser.Dialog) {
	if strings.Contains(d.Message(), m.Name()) && m.markPositive() {
		m.info().Str("dialog", d.Message()).Msg("Dialog raised by injected payload")
	}
	if err := d.Dismiss(); err != nil {
		m.warning().Err(err).Msg("Failed to dismiss dialog")
	}
}
