package modules

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"autoprobe/internal/browser"

	"github.com/cespare/xxhash/v2"
)

// DOMFingerprintName is the name of the DOM fingerprint module.
const DOMFingerprintName = "DOMFingerprintModule"

// ElementTreeScript evaluates to the live element tree as nested {t, c} objects.
// Only element children are walked, so template contents and text are left out.
const ElementTreeScript = `(() => {
	const walk = (el) => ({ t: el.tagName, c: Array.from(el.children, walk) });
	return document.documentElement ? walk(document.documentElement) : null;
})()`

// DOMNode is one element of the live document tree.
type DOMNode struct {
	Tag      string    `json:"t"`
	Children []DOMNode `json:"c"`
}

// DOMFingerprintModule hashes the tag structure of the page so pages built
// from the same template can be recognised. It never turns positive.
type DOMFingerprintModule struct {
	state
}

// NewDOMFingerprintModule creates a new DOMFingerprintModule.
func NewDOMFingerprintModule(Options) *DOMFingerprintModule {
	return &DOMFingerprintModule{state: newState(DOMFingerprintName)}
}

func (m *DOMFingerprintModule) Run(ctx context.Context, s browser.Session) {
	var root *DOMNode
	if err := s.Evaluate(ctx, ElementTreeScript, &root); err != nil {
		m.warning().Err(err).Msg("Error running")
		return
	}
	if root == nil {
		m.warning().Err(errors.New("document has no root element")).Msg("Error running")
		return
	}
	fp := Fingerprint(*root)
	m.info().Str("fingerprint", fmt.Sprintf("%016x", fp)).Msg("HTML fingerprint")
	m.setResult(fp)
}

// Fingerprint returns the xxhash of the tag structure under root.
func Fingerprint(root DOMNode) uint64 {
	return xxhash.Sum64String(Structure(root))
}

// Structure serialises the tree under n as <TAG>children</TAG>, tag names as
// the DOM reports them. Children are sorted so sibling order does not matter.
func Structure(n DOMNode) string {
	children := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		children = append(children, Structure(c))
	}
	sort.Strings(children)

	var b strings.Builder
	b.WriteString("<" + n.Tag + ">")
	for _, c := range children {
		b.WriteString(c)
	}
	b.WriteString("</" + n.Tag + ">")
	return b.String()
}
