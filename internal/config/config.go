// Package config handles the loading and parsing of the application's configuration.
// It uses the Viper library to read from a YAML file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"autoprobe/internal/browser"
	"autoprobe/internal/logger"
	"autoprobe/internal/modules"
	"autoprobe/internal/redis"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. AUTOPROBE_TARGET_URL.
const EnvPrefix = "AUTOPROBE"

// Settings defines the overall configuration structure for autoprobe.
// It mirrors the structure of the autoprobe.yaml file and is populated by Viper.
type Settings struct {
	Target    TargetConfig    `mapstructure:"target"`
	Browser   browser.Config  `mapstructure:"browser"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Modules   []string        `mapstructure:"modules"`
	Payloads  PayloadsConfig  `mapstructure:"payloads"`
	Reporting ReportingConfig `mapstructure:"reporting"`
	Redis     redis.Config    `mapstructure:"redis"`
	Log       logger.Config   `mapstructure:"log"`
}

// TargetConfig holds the configuration related to the scan target.
type TargetConfig struct {
	URL string `mapstructure:"url"`
}

// ScannerConfig controls how the injection modules pace their interaction with the page.
type ScannerConfig struct {
	SettleInterval    time.Duration `mapstructure:"settle_interval"`
	ResponseTimeout   time.Duration `mapstructure:"response_timeout"`
	ResetPagePerInput bool          `mapstructure:"reset_page_per_input"`
}

// PayloadsConfig points at optional payload catalogs replacing the built-in ones.
type PayloadsConfig struct {
	XSSFile  string `mapstructure:"xss_file"`
	SQLiFile string `mapstructure:"sqli_file"`
}

// ReportingConfig defines how the scan results are reported.
type ReportingConfig struct {
	Path     string `mapstructure:"path"`
	JSONFile string `mapstructure:"json_file"`
	TxtFile  string `mapstructure:"txt_file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("target.url", "")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.proxy", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.ignore_certificate_errors", true)
	v.SetDefault("browser.navigation_timeout", 30*time.Second)

	v.SetDefault("scanner.settle_interval", time.Second)
	v.SetDefault("scanner.response_timeout", 5*time.Second)
	v.SetDefault("scanner.reset_page_per_input", false)

	v.SetDefault("modules", append([]string(nil), modules.DefaultOrder...))

	v.SetDefault("payloads.xss_file", "")
	v.SetDefault("payloads.sqli_file", "")

	v.SetDefault("reporting.path", "reports")
	v.SetDefault("reporting.json_file", "report.json")
	v.SetDefault("reporting.txt_file", "report.txt")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.key", "autoprobe:reports")
	v.SetDefault("redis.max_reports", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.json_format", false)
}

// LoadConfig reads configuration from path and unmarshals it into a Settings
// struct. path may name a YAML file or a directory searched for autoprobe.yaml.
// A directory without a config file yields the defaults; an explicitly named
// file must exist.
func LoadConfig(path string) (config Settings, err error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if isFile(path) {
		if _, err = os.Stat(path); err != nil {
			return config, fmt.Errorf("failed to read config: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		if path == "" {
			path = "."
		}
		v.AddConfigPath(path)
		v.SetConfigName("autoprobe")
		v.SetConfigType("yaml")
	}

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return config, nil
}

func isFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json", ".toml":
		return true
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ModuleOptions builds the module options, loading any configured payload files.
func (s Settings) ModuleOptions() (modules.Options, error) {
	opts := modules.Options{
		SettleInterval:    s.Scanner.SettleInterval,
		ResponseTimeout:   s.Scanner.ResponseTimeout,
		ResetPagePerInput: s.Scanner.ResetPagePerInput,
	}
	if s.Payloads.XSSFile != "" {
		payloads, err := modules.LoadPayloadFile(s.Payloads.XSSFile)
		if err != nil {
			return opts, err
		}
		opts.XSSPayloads = payloads
	}
	if s.Payloads.SQLiFile != "" {
		payloads, err := modules.LoadPayloadFile(s.Payloads.SQLiFile)
		if err != nil {
			return opts, err
		}
		opts.SQLiPayloads = payloads
	}
	return opts, nil
}

// Validate checks the settings a scan cannot start without.
func (s Settings) Validate() error {
	if s.Target.URL == "" {
		return errors.New("target url is required")
	}
	if len(s.Modules) == 0 {
		return errors.New("at least one module must be enabled")
	}
	for _, id := range s.Modules {
		if _, ok := modules.DefaultRegistry[id]; !ok {
			return fmt.Errorf("unknown module %q", id)
		}
	}
	return nil
}
