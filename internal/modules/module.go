// Package modules contains the detection modules run against a browser session.
package modules

import (
	"context"
	"sync"
	"time"

	"autoprobe/internal/browser"
	"autoprobe/internal/models"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Module is a pluggable check run against the page the orchestrator navigated to.
type Module interface {
	// Name is the stable identifier of the module, also used as the
	// attribution token embedded in payloads.
	Name() string
	// Run performs the check. It never returns an error: failures are logged
	// and leave the result in its last-known state.
	Run(ctx context.Context, s browser.Session)
	// Result returns a snapshot of the module's result.
	Result() models.ModuleResult
}

// Options tune how modules interact with the page.
type Options struct {
	SettleInterval    time.Duration
	ResponseTimeout   time.Duration
	ResetPagePerInput bool
	XSSPayloads       []string
	SQLiPayloads      []string
}

const (
	defaultSettleInterval  = time.Second
	defaultResponseTimeout = 5 * time.Second
)

func (o Options) settle() time.Duration {
	if o.SettleInterval <= 0 {
		return defaultSettleInterval
	}
	return o.SettleInterval
}

func (o Options) responseTimeout() time.Duration {
	if o.ResponseTimeout <= 0 {
		return defaultResponseTimeout
	}
	return o.ResponseTimeout
}

// state is the result and logging helper embedded by every module. The
// result is guarded because browser event handlers update it from the
// event goroutine.
type state struct {
	mu     sync.Mutex
	result models.ModuleResult
}

func newState(name string) state {
	return state{result: models.ModuleResult{Name: name}}
}

func (s *state) Name() string { return s.result.Name }

func (s *state) Result() models.ModuleResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *state) positive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result.Positive
}

// markPositive reports whether this call flipped the flag.
func (s *state) markPositive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result.Positive {
		return false
	}
	s.result.Positive = true
	return true
}

func (s *state) setResult(v any) {
	s.mu.Lock()
	s.result.Result = v
	s.mu.Unlock()
}

func (s *state) logger() zerolog.Logger {
	return log.With().Str("module", s.result.Name).Logger()
}

func (s *state) info() *zerolog.Event {
	l := s.logger()
	return l.Info()
}

func (s *state) warning() *zerolog.Event {
	l := s.logger()
	return l.Warn().Str("channel", "warning")
}

func (s *state) critical() *zerolog.Event {
	l := s.logger()
	return l.Error().Str("channel", "critical")
}
