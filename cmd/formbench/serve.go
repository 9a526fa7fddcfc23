package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/clerkops/formbench/internal/config"
	"github.com/clerkops/formbench/internal/home"
	"github.com/clerkops/formbench/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Formbench server",
	Long: `Start the Formbench HTTP server.

The server owns the SQLite store, the blob store, and the adapter
registry, and runs test runs in the background. Configuration is
hot-reloaded on change.

The server provides:
  - /health - Basic server health check
  - /ready  - Readiness check (includes database status)

Examples:
  formbench serve                    # Start on default port 8080
  formbench serve --port 3000        # Start on custom port
  formbench serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		// Get home directory
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		// Load configuration with hot reload
		file := cfgFile
		if file == "" && h.ConfigExists() {
			file = h.ConfigPath()
		}
		cfgMgr, err := config.NewManager(file)
		if err != nil {
			return err
		}
		cfgMgr.WatchConfig()

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			Home:          h,
			ConfigManager: cfgMgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
