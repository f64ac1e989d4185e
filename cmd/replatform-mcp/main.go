// Package main is the entry point for the replatform-mcp server and its
// companion commands.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Strob0t/replatform-mcp/internal/config"
	"github.com/Strob0t/replatform-mcp/internal/logger"
)

// Version information set at build time.
var (
	version = "1.0.0"
	commit  = "dev"
)

// Global flags.
var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "replatform-mcp",
		Short: "MCP server for code replatforming queries with a live agent dashboard",
		Long: `replatform-mcp exposes RAG and code graph query tools over the Model
Context Protocol and tracks every call as an agent session, streamed
to dashboards over WebSocket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config (default $REPLATFORM_CONFIG or replatform.yaml)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newSimulateCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// loadConfig loads configuration and installs the default logger. The
// returned closer flushes the async log handler.
func loadConfig() (*config.Config, logger.Closer, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}

	log, closer := logger.New(cfg.Logging)
	slog.SetDefault(log)
	return cfg, closer, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
