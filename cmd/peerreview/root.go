package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set at build time via ldflags)
var (
	version = "dev"
	commit  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "peerreview",
	Short: "AI peer review MCP server",
	Long: `peerreview exposes a single MCP tool, ai_peer_review, that asks
Google Gemini for structured peer-review feedback on an answer.

Use 'peerreview serve' to run as an MCP server (spawned by an MCP client).
Use 'peerreview review' to request a one-shot review from the terminal.`,
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
}

func init() {
	// Disable automatic completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Suppress errors from being printed twice
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
