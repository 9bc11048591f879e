package modules

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"autoprobe/internal/browser"

	"github.com/PuerkitoBio/goquery"
)

// URLHarvesterName is the name of the URL harvester module.
const URLHarvesterName = "URLHarvesterModule"

// HarvestedLinks holds the anchors of a page split by origin, in document order.
type HarvestedLinks struct {
	Inbound  []string `json:"inbound_urls"`
	Outbound []string `json:"outbound_urls"`
}

// URLHarvesterModule collects the destinations of every anchor on the page.
// It is reconnaissance only and never turns positive.
type URLHarvesterModule struct {
	state
}

// NewURLHarvesterModule creates a new URLHarvesterModule.
func NewURLHarvesterModule(Options) *URLHarvesterModule {
	return &URLHarvesterModule{state: newState(URLHarvesterName)}
}

func (m *URLHarvesterModule) Run(ctx context.Context, s browser.Session) {
	links, err := m.harvest(ctx, s)
	if err != nil {
		m.warning().Err(err).Msg("Error running")
		return
	}
	m.info().Int("inbound", len(links.Inbound)).Int("outbound", len(links.Outbound)).Msg("Harvested URLs")
	m.setResult(links)
}

func (m *URLHarvesterModule) harvest(ctx context.Context, s browser.Session) (HarvestedLinks, error) {
	pageURL, err := s.CurrentURL(ctx)
	if err != nil {
		return HarvestedLinks{}, err
	}
	document, err := s.DocumentHTML(ctx)
	if err != nil {
		return HarvestedLinks{}, err
	}
	var baseURI string
	if err := s.Evaluate(ctx, `document.baseURI`, &baseURI); err != nil || baseURI == "" {
		baseURI = pageURL
	}

	links, err := ExtractLinks(document, pageURL, baseURI)
	if err != nil {
		return HarvestedLinks{}, err
	}
	page, err := url.Parse(pageURL)
	if err != nil {
		return HarvestedLinks{}, fmt.Errorf("failed to parse page url: %w", err)
	}
	inbound, outbound := PartitionLinks(links, page.Scheme+"://"+page.Host)
	return HarvestedLinks{Inbound: inbound, Outbound: outbound}, nil
}

// ExtractLinks returns the resolved href of every anchor in document order,
// duplicates included. Root-relative links resolve against the page origin,
// everything else against baseURI.
func ExtractLinks(document, pageURL, baseURI string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	page, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page url: %w", err)
	}
	base, err := url.Parse(baseURI)
	if err != nil {
		base = page
	}
	origin := &url.URL{Scheme: page.Scheme, Host: page.Host}

	links := make([]string, 0)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		ref, err := url.Parse(href)
		if err != nil {
			links = append(links, href)
			return
		}
		if strings.HasPrefix(href, "/") && !strings.HasPrefix(href, "//") {
			links = append(links, origin.ResolveReference(ref).String())
			return
		}
		links = append(links, base.ResolveReference(ref).String())
	})
	return links, nil
}

// PartitionLinks splits links into those on origin (or relative to it) and
// the rest. A link is on origin when origin is followed by a path, query,
// fragment or nothing, so a host that merely starts with origin's host is
// outbound.
func PartitionLinks(links []string, origin string) (inbound, outbound []string) {
	inbound, outbound = make([]string, 0), make([]string, 0)
	for _, l := range links {
		if sameOrigin(l, origin) || strings.HasPrefix(l, "/") {
			inbound = append(inbound, l)
		} else {
			outbound = append(outbound, l)
		}
	}
	return inbound, outbound
}

func sameOrigin(link, origin string) bool {
	if !strings.HasPrefix(link, origin) {
		return false
	}
	rest := link[len(origin):]
	return rest == "" || strings.ContainsRune("/?#", rune(rest[0]))
}
