package cmd

import (
	"autoprobe/internal/modules"

	"github.com/spf13/cobra"
)

var reconURL string

// reconCmd runs only the modules that gather information without injecting anything.
var reconCmd = &cobra.Command{
	Use:   "recon",
	Short: "Harvest links and fingerprint a page without injecting payloads",
	Run: func(cmd *cobra.Command, args []string) {
		runModules(cmd.Context(), overrides{URL: reconURL, Modules: modules.ReconOrder})
	},
}

func init() {
	rootCmd.AddCommand(reconCmd)
	reconCmd.Flags().StringVarP(&reconURL, "url", "u", "", "Target URL to inspect")
}
