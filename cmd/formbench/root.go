package main

import (
	"github.com/spf13/cobra"

	"github.com/clerkops/formbench/internal/api"
	"github.com/clerkops/formbench/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "formbench",
	Short: "OCR evaluation pipeline for court-form documents",
	Long: `Formbench evaluates OCR engines and layout detectors against
court-form documents with known ground truth.

The pipeline includes:
  - Synthetic document generation from form templates
  - Scan simulation (skew, noise, blur, contrast)
  - Pluggable layout detection and OCR engines
  - Fuzzy field matching and accuracy scoring
  - Human verification of extracted values`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.formbench/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "formbench home directory (default: ~/.formbench)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
