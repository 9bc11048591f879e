package modules

import (
	"context"
	"time"

	"autoprobe/internal/browser"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/network"
)

// TLSName is the name of the TLS certificate module.
const TLSName = "TLSCertificateModule"

// CertificateSnapshot is the security details of the first secured response
// observed during a run.
type CertificateSnapshot struct {
	URL         string    `json:"url"`
	Protocol    string    `json:"protocol"`
	KeyExchange string    `json:"key_exchange"`
	Cipher      string    `json:"cipher"`
	SubjectName string    `json:"subject_name"`
	SanList     []string  `json:"san_list"`
	Issuer      string    `json:"issuer"`
	ValidFrom   time.Time `json:"valid_from"`
	ValidTo     time.Time `json:"valid_to"`
}

func newSnapshot(url string, d *network.SecurityDetails) *CertificateSnapshot {
	snap := &CertificateSnapshot{
		URL:         url,
		Protocol:    d.Protocol,
		KeyExchange: d.KeyExchange,
		Cipher:      d.Cipher,
		SubjectName: d.SubjectName,
		SanList:     append([]string(nil), d.SanList...),
		Issuer:      d.Issuer,
	}
	if d.ValidFrom != nil {
		snap.ValidFrom = d.ValidFrom.Time()
	}
	if d.ValidTo != nil {
		snap.ValidTo = d.ValidTo.Time()
	}
	return snap
}

// TLSCertificateModule captures the certificate the server presented for the
// page by observing network responses over a protocol channel.
type TLSCertificateModule struct {
	state
	snapshot *CertificateSnapshot
}

// NewTLSCertificateModule creates a new TLSCertificateModule.
func NewTLSCertificateModule(Options) *TLSCertificateModule {
	return &TLSCertificateModule{state: newState(TLSName)}
}

func (m *TLSCertificateModule) Run(ctx context.Context, s browser.Session) {
	if err := m.capture(ctx, s); err != nil {
		m.warning().Err(err).Msg("Error running")
	}

	snap := m.captured()
	m.analyze(snap)
	if snap != nil {
		m.setResult(snap)
	}
}

// capture reloads the current URL with a response handler attached. The
// handler and the channel are released on every path.
func (m *TLSCertificateModule) capture(ctx context.Context, s browser.Session) error {
	ch, err := s.OpenChannel(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := ch.Detach(context.WithoutCancel(ctx)); err != nil {
			m.warning().Err(err).Msg("Failed to detach protocol channel")
		}
	}()

	if err := ch.Send(ctx, network.Enable()); err != nil {
		return err
	}
	release := ch.On(cdproto.EventNetworkResponseReceived, m.onResponse)
	defer release()

	current, err := s.CurrentURL(ctx)
	if err != nil {
		return err
	}
	return s.Navigate(ctx, current)
}

// onResponse keeps the first response carrying security details.
func (m *TLSCertificateModule) onResponse(ev any) {
	e, ok := ev.(*network.EventResponseReceived)
	if !ok || e.Response == nil || e.Response.SecurityDetails == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot != nil {
		return
	}
	m.snapshot = newSnapshot(e.Response.URL, e.Response.SecurityDetails)
	m.result.Positive = true
}

func (m *TLSCertificateModule) captured() *CertificateSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// analyze only logs; it never changes the result.
func (m *TLSCertificateModule) analyze(crt *CertificateSnapshot) {
	if crt == nil {
		m.warning().Msg("No TLS certificate found")
		return
	}
	m.info().Str("url", crt.URL).Str("protocol", crt.Protocol).Str("issuer", crt.Issuer).Msg("Found TLS certificate")
	if len(crt.SanList) > 0 {
		m.info().Int("count", len(crt.SanList)).Strs("domains", crt.SanList).Msg("Certificate has associated domains")
	}
	if crt.SubjectName != "" {
		m.info().Str("subject", crt.SubjectName).Msg("Found organization")
	}
}
