package modules

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Factory builds a fresh module instance.
type Factory func(Options) Module

// Registry maps configuration ids to module factories.
type Registry map[string]Factory

// DefaultRegistry holds every module shipped with autoprobe.
var DefaultRegistry = Registry{
	"xss":             func(o Options) Module { return NewXSSModule(o) },
	"sqli":            func(o Options) Module { return NewSQLiModule(o) },
	"tls_certificate": func(o Options) Module { return NewTLSCertificateModule(o) },
	"url_harvester":   func(o Options) Module { return NewURLHarvesterModule(o) },
	"dom_fingerprint": func(o Options) Module { return NewDOMFingerprintModule(o) },
}

// DefaultOrder is the module order used when the configuration names none.
var DefaultOrder = []string{"xss", "sqli", "tls_certificate", "url_harvester", "dom_fingerprint"}

// ReconOrder lists the modules that only gather data.
var ReconOrder = []string{"url_harvester", "dom_fingerprint"}

// Build creates one module per id, in the given order.
func (r Registry) Build(ids []string, opts Options) ([]Module, error) {
	mods := make([]Module, 0, len(ids))
	for _, id := range ids {
		factory, ok := r[id]
		if !ok {
			return nil, fmt.Errorf("unknown module %q", id)
		}
		m := factory(opts)
		log.Debug().Str("id", id).Str("module", m.Name()).Msg("Module registered")
		mods = append(mods, m)
	}
	return mods, nil
}
