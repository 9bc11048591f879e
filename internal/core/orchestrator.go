package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autoprobe/internal/browser"
	"autoprobe/internal/models"
	"autoprobe/internal/modules"

	"github.com/rs/zerolog/log"
)

// ErrSessionUnavailable is returned when no browser session could be acquired.
var ErrSessionUnavailable = errors.New("browser session unavailable")

// Launcher acquires the browser session a run is performed with.
type Launcher func(ctx context.Context) (browser.Session, error)

// Orchestrator coordinates the entire scanning process: it drives one
// browser session through every registered module in order.
type Orchestrator struct {
	launch  Launcher
	modules []modules.Module
}

// NewOrchestrator creates a new orchestrator instance.
func NewOrchestrator(launch Launcher, mods ...modules.Module) *Orchestrator {
	return &Orchestrator{launch: launch, modules: mods}
}

// Use registers a module to run after the ones already registered.
func (o *Orchestrator) Use(m modules.Module) {
	o.modules = append(o.modules, m)
}

// Attack runs every module against url. The page is reloaded before each
// module, but all modules share one session, so state left by a module is
// visible to the next. A navigation failure or a module panic stops the run;
// the results gathered so far stay available through Results.
func (o *Orchestrator) Attack(ctx context.Context, url string) error {
	log.Info().Str("url", url).Int("modules", len(o.modules)).Msg("Orchestrator starting...")
	startTime := time.Now()

	session, err := o.launch(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close browser session")
		}
	}()

	for i, m := range o.modules {
		log.Info().Str("module", m.Name()).Msgf("[%d/%d] Running module", i+1, len(o.modules))
		if err := session.Navigate(ctx, url); err != nil {
			log.Error().Err(err).Str("module", m.Name()).Msg("Navigation failed, aborting run")
			break
		}
		if !o.run(ctx, m, session) {
			break
		}
	}

	log.Info().Dur("duration", time.Since(startTime)).Msg("Orchestrator finished.")
	return nil
}

// run reports false when the module panicked.
func (o *Orchestrator) run(ctx context.Context, m modules.Module, s browser.Session) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", m.Name()).Interface("panic", r).Msg("Module panicked, aborting run")
			ok = false
		}
	}()
	m.Run(ctx, s)
	return true
}

// Results returns one result per registered module, in registration order.
func (o *Orchestrator) Results() []models.ModuleResult {
	results := make([]models.ModuleResult, 0, len(o.modules))
	for _, m := range o.modules {
		results = append(results, m.Result())
	}
	return results
}
