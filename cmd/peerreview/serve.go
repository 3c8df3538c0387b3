package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/peerreview/peerreview/internal/audit"
	"github.com/peerreview/peerreview/internal/config"
	"github.com/peerreview/peerreview/internal/server"
)

var (
	serveConfigPath string
	serveLogLevel   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as an MCP server",
	Long: `Run peerreview as an MCP server speaking JSON-RPC over stdio.

This mode is intended to be spawned by Claude Code or other MCP clients.
Configure in the client's mcp_servers.json:

  {
    "peer-review": {
      "command": "peerreview",
      "args": ["serve"],
      "env": { "GEMINI_API_KEY": "..." }
    }
  }

Stdout carries the MCP protocol; all diagnostics go to stderr. Every
invocation and its outcome are appended to the audit log file
(default: mcp-server.log in the working directory). Edits to the config
file are picked up without restarting the session.`,
	RunE: runServe,
}

func init() {
	// --stdio is a no-op flag for compatibility (stdio is the only transport)
	serveCmd.Flags().Bool("stdio", false, "Use stdio transport (default, always enabled)")
	_ = serveCmd.Flags().MarkHidden("stdio")

	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to config file (default: config.yaml if present)")
	serveCmd.Flags().StringVarP(&serveLogLevel, "log-level", "l", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Stdout is the protocol channel, so logging goes to stderr.
	logger := logrus.StandardLogger()
	logger.SetOutput(os.Stderr)
	if level, err := logrus.ParseLevel(serveLogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	logger.Infof("peerreview serve starting (version=%s)", version)

	resolvedConfigPath, err := resolveConfigPath(serveConfigPath)
	if err != nil {
		return err
	}

	cfg, err := config.Load(resolvedConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// The audit trail is best-effort; a sink that cannot open must not
	// keep the server from starting.
	var sink audit.Sink
	fileSink, err := audit.NewFileSink(cfg.Audit.LogFile)
	if err != nil {
		logger.Warnf("audit log unavailable: %v", err)
		sink = audit.Nop{}
	} else {
		defer fileSink.Close()
		sink = fileSink
	}

	srv, err := server.New(server.Options{
		Config:          cfg,
		ConfigPath:      resolvedConfigPath,
		Stdin:           os.Stdin,
		Stdout:          os.Stdout,
		Audit:           sink,
		Logger:          logger,
		ServerName:      "ai-peer-review",
		ServerVersion:   version,
		ProtocolVersion: "2024-11-05",
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Infof("Received signal %v, shutting down", sig)
		cancel()
	}()

	if err := srv.Run(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("peerreview serve exiting")
	return nil
}

// resolveConfigPath expands ~ and applies the config.yaml default.
func resolveConfigPath(path string) (string, error) {
	if path == "" {
		return "config.yaml", nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home dir: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
