// Package cmd contains the command-line interface logic for autoprobe.
// It uses the Cobra library to create the CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const Version = "1.0.0"

var (
	configFile string
	outputDir  string
	logLevel   string

	rootCmd = &cobra.Command{
		Use:   "autoprobe",
		Short: "autoprobe drives a headless browser through a set of web security checks.",
		Long: `A browser-driven web vulnerability scanner. A single page is loaded in
headless Chrome and handed to each detection module in turn: reflected XSS,
error based SQL injection, TLS certificate capture, link harvesting and DOM
fingerprinting.`,
		Version: Version,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to the configuration file or directory (default is ./autoprobe.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "Directory to save reports (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// initConfig reports which config file is used.
func initConfig() {
	if configFile != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", configFile)
	}
}
