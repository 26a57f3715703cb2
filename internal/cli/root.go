package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	loaded, err := LoadConfig()
	if err != nil {
		// Bad environment: fall back to defaults and let flags fix it
		loaded = &Config{ServerURL: "http://localhost:8080", TokenFile: defaultTokenFile(), Output: "text"}
	}
	cfg = loaded

	rootCmd := &cobra.Command{
		Use:   "cardroom",
		Short: "CLI tool for the cardroom API",
		Long: `cardroom is a CLI tool for interacting with the cardroom JSON API.

It signs in as a guest or with a Google/Apple ID token, creates, browses and
joins rooms, and runs the admin operations. The session token is kept in
~/.cardroom/token between invocations.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			// Load token from file if not provided via flag/env
			if err := cfg.LoadToken(); err != nil {
				return err
			}

			// Create HTTP client
			var trace = cmd.ErrOrStderr()
			if !cfg.Verbose {
				trace = nil
			}
			client = NewClient(cfg.ServerURL, cfg.Token, trace)
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Server URL (env: CARDROOM_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.Token, "token", cfg.Token, "Session token (env: CARDROOM_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&cfg.TokenFile, "token-file", cfg.TokenFile, "Token file path (env: CARDROOM_TOKEN_FILE)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newMeCmd())
	rootCmd.AddCommand(newPasswordCmd())
	rootCmd.AddCommand(newRoomCmd())
	rootCmd.AddCommand(newAdminCmd())
	rootCmd.AddCommand(newHealthCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func output(cmd *cobra.Command) *Output {
	return NewOutput(cfg.Output, cmd.OutOrStdout())
}
