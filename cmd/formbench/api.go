package main

import (
	"github.com/spf13/cobra"

	"github.com/clerkops/formbench/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Formbench server via HTTP.

These commands require a running server (formbench serve).
Use --server to specify a custom server URL.

Examples:
  formbench api health              # Check server health
  formbench api runs list           # List test runs
  formbench api runs get <id>       # Get a specific test run`,
}

var formsCmd = &cobra.Command{
	Use:   "forms",
	Short: "Form template management commands",
}

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "Document batch commands",
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Test run commands",
}

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Pipeline result commands",
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Result verification commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StatusEndpoint{}).Command(getServerURL))

	// Forms as subcommand group
	formsCmd.AddCommand((&endpoints.ListFormsEndpoint{}).Command(getServerURL))
	formsCmd.AddCommand((&endpoints.GetFormEndpoint{}).Command(getServerURL))
	formsCmd.AddCommand((&endpoints.UpdateFieldMappingsEndpoint{}).Command(getServerURL))
	formsCmd.AddCommand((&endpoints.DeleteFormEndpoint{}).Command(getServerURL))

	// Batches as subcommand group
	batchesCmd.AddCommand((&endpoints.GenerateBatchEndpoint{}).Command(getServerURL))
	batchesCmd.AddCommand((&endpoints.ListBatchesEndpoint{}).Command(getServerURL))
	batchesCmd.AddCommand((&endpoints.GetBatchEndpoint{}).Command(getServerURL))
	batchesCmd.AddCommand((&endpoints.DeleteBatchEndpoint{}).Command(getServerURL))

	// Test runs as subcommand group
	runsCmd.AddCommand((&endpoints.StartRunEndpoint{}).Command(getServerURL))
	runsCmd.AddCommand((&endpoints.ListRunsEndpoint{}).Command(getServerURL))
	runsCmd.AddCommand((&endpoints.GetRunEndpoint{}).Command(getServerURL))
	runsCmd.AddCommand((&endpoints.RunStatusEndpoint{}).Command(getServerURL))
	runsCmd.AddCommand((&endpoints.CancelRunEndpoint{}).Command(getServerURL))
	runsCmd.AddCommand((&endpoints.ListLibrariesEndpoint{}).Command(getServerURL))

	// Results as subcommand group
	resultsCmd.AddCommand((&endpoints.ListRunResultsEndpoint{}).Command(getServerURL))
	resultsCmd.AddCommand((&endpoints.GetDocumentResultEndpoint{}).Command(getServerURL))

	// Verification as subcommand group
	verifyCmd.AddCommand((&endpoints.ListVerificationEndpoint{}).Command(getServerURL))
	verifyCmd.AddCommand((&endpoints.VerificationSummaryEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand(formsCmd)
	apiCmd.AddCommand(batchesCmd)
	apiCmd.AddCommand(runsCmd)
	apiCmd.AddCommand(resultsCmd)
	apiCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(apiCmd)
}
