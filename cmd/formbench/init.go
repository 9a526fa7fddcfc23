package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clerkops/formbench/internal/config"
	"github.com/clerkops/formbench/internal/home"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the formbench home directory",
	Long: `Create the formbench home directory and write a default config file.

The config file lists the available OCR engines and layout detectors.
Remote engines read their API keys from environment variable references
like ${MISTRAL_API_KEY}.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		if h.ConfigExists() {
			return fmt.Errorf("config already exists at %s", h.ConfigPath())
		}
		if err := config.WriteDefault(h.ConfigPath()); err != nil {
			return err
		}

		fmt.Printf("Initialized formbench home at %s\n", h.Path())
		fmt.Printf("Config written to %s\n", h.ConfigPath())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
