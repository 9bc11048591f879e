package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"autoprobe/internal/modules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.True(t, cfg.Browser.Headless)
	assert.True(t, cfg.Browser.IgnoreCertificateErrors)
	assert.Equal(t, 30*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, time.Second, cfg.Scanner.SettleInterval)
	assert.Equal(t, 5*time.Second, cfg.Scanner.ResponseTimeout)
	assert.False(t, cfg.Scanner.ResetPagePerInput)
	assert.Equal(t, modules.DefaultOrder, cfg.Modules)
	assert.Equal(t, "reports", cfg.Reporting.Path)
	assert.Equal(t, "autoprobe:reports", cfg.Redis.Key)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigFromDirectoryAndEnv(t *testing.T) {
	dir := t.TempDir()
	body := []byte(`target:
  url: https://site.test/
scanner:
  settle_interval: 250ms
  reset_page_per_input: true
modules:
  - xss
  - url_harvester
redis:
  enabled: true
  max_reports: 50
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "autoprobe.yaml"), body, 0o600))

	t.Setenv("AUTOPROBE_SCANNER_RESPONSE_TIMEOUT", "2s")
	t.Setenv("AUTOPROBE_BROWSER_HEADLESS", "false")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://site.test/", cfg.Target.URL)
	assert.Equal(t, 250*time.Millisecond, cfg.Scanner.SettleInterval)
	assert.Equal(t, 2*time.Second, cfg.Scanner.ResponseTimeout)
	assert.True(t, cfg.Scanner.ResetPagePerInput)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, []string{"xss", "url_harvester"}, cfg.Modules)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, int64(50), cfg.Redis.MaxReports)
}

func TestLoadConfigExplicitFileMustExist(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config")
}

func TestValidate(t *testing.T) {
	cfg := Settings{Modules: []string{"xss"}}
	assert.ErrorContains(t, cfg.Validate(), "target url is required")

	cfg.Target.URL = "https://site.test/"
	assert.NoError(t, cfg.Validate())

	cfg.Modules = []string{"xss", "csrf"}
	assert.ErrorContains(t, cfg.Validate(), `unknown module "csrf"`)

	cfg.Modules = nil
	assert.Error(t, cfg.Validate())
}

func TestModuleOptionsLoadsPayloadFiles(t *testing.T) {
	dir := t.TempDir()
	xssFile := filepath.Join(dir, "xss.json")
	require.NoError(t, os.WriteFile(xssFile, []byte(`{"payloads":[{"value":"<u>{{module}}</u>"}]}`), 0o600))

	cfg := Settings{
		Scanner:  ScannerConfig{SettleInterval: time.Millisecond, ResetPagePerInput: true},
		Payloads: PayloadsConfig{XSSFile: xssFile},
	}
	opts, err := cfg.ModuleOptions()
	require.NoError(t, err)
	assert.Equal(t, time.Millisecond, opts.SettleInterval)
	assert.True(t, opts.ResetPagePerInput)
	assert.Equal(t, []string{"<u>{{module}}</u>"}, opts.XSSPayloads)
	assert.Nil(t, opts.SQLiPayloads)

	cfg.Payloads.SQLiFile = filepath.Join(dir, "missing.json")
	_, err = cfg.ModuleOptions()
	assert.Error(t, err)
}
