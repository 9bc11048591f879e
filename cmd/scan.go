package cmd

import (
	"github.com/spf13/cobra"
)

var (
	url         string
	moduleFlags []string
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run the detection modules against a target URL",
	Long: `The scan command loads the target in a headless browser and runs every
configured module against it in order, then writes the report.`,
	Run: func(cmd *cobra.Command, args []string) {
		runModules(cmd.Context(), overrides{URL: url, Modules: moduleFlags})
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVarP(&url, "url", "u", "", "Target URL to scan")
	scanCmd.Flags().StringSliceVarP(&moduleFlags, "modules", "m", nil, "Modules to run, in order (overrides config)")
}
