package cmd

import (
	"bytes"
	"context"
	"testing"

	"autoprobe/internal/config"
	"autoprobe/internal/models"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestOverridesApply(t *testing.T) {
	defer func() { outputDir, logLevel = "", "" }()
	outputDir, logLevel = "out", "debug"

	cfg := config.Settings{Modules: []string{"xss", "sqli"}}
	cfg.Target.URL = "https://from-file.test/"
	overrides{URL: "https://flag.test/", Modules: []string{"url_harvester"}}.apply(&cfg)

	assert.Equal(t, "https://flag.test/", cfg.Target.URL)
	assert.Equal(t, []string{"url_harvester"}, cfg.Modules)
	assert.Equal(t, "out", cfg.Reporting.Path)
	assert.Equal(t, "debug", cfg.Log.Level)

	overrides{}.apply(&cfg)
	assert.Equal(t, "https://flag.test/", cfg.Target.URL)
}

func TestPrintSummary(t *testing.T) {
	previous := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = previous }()

	var buf bytes.Buffer
	printSummary(&buf, []models.ModuleResult{
		{Name: "XSSModule", Positive: true},
		{Name: "SQLiModule"},
	})
	assert.Equal(t, "Scan results\n  XSSModule              POSITIVE\n  SQLiModule             negative\n", buf.String())
}

func TestExportersWithoutSinks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sinks, closeSinks := exporters(ctx, config.Settings{})
	defer closeSinks()
	assert.Empty(t, sinks)
}
