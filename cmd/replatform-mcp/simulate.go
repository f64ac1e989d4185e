package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	rphttp "github.com/Strob0t/replatform-mcp/internal/adapter/http"
	"github.com/Strob0t/replatform-mcp/internal/adapter/n8n"
	"github.com/Strob0t/replatform-mcp/internal/adapter/ws"
	"github.com/Strob0t/replatform-mcp/internal/service"
	"github.com/Strob0t/replatform-mcp/internal/simulate"
)

func newSimulateCmd() *cobra.Command {
	sc := simulate.DefaultConfig()
	var linger time.Duration

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive simulated agents through the tracker and serve the dashboard",
		Long: `Simulate runs several agents concurrently against a fake query backend
so the dashboard stream can be exercised without the remote endpoints.
The dashboard stays up for --linger after the run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulate(cmd.Context(), cmd, sc, linger)
		},
	}

	cmd.Flags().IntVar(&sc.Agents, "agents", sc.Agents, "Number of simulated agents")
	cmd.Flags().IntVar(&sc.MaxQueries, "max-queries", sc.MaxQueries, "Maximum queries per agent")
	cmd.Flags().DurationVar(&sc.MinLatency, "min-latency", sc.MinLatency, "Minimum simulated query latency")
	cmd.Flags().DurationVar(&sc.MaxLatency, "max-latency", sc.MaxLatency, "Maximum simulated query latency")
	cmd.Flags().Float64Var(&sc.ErrorRate, "error-rate", sc.ErrorRate, "Probability that a query fails (0..1)")
	cmd.Flags().Uint64Var(&sc.Seed, "seed", uint64(time.Now().UnixNano()), "Random seed")
	cmd.Flags().DurationVar(&linger, "linger", 30*time.Second, "How long to keep the dashboard up after the run")

	return cmd
}

func runSimulate(ctx context.Context, cmd *cobra.Command, sc simulate.Config, linger time.Duration) error {
	cfg, logCloser, err := loadConfig()
	if err != nil {
		return err
	}
	defer logCloser.Close()

	hub := ws.NewHub()
	tracker := service.NewTracker(hub, service.WithRetention(cfg.Tracker.Retention))
	queries := service.NewQueryService(tracker, simulate.NewQuerier(sc),
		[]service.QueryTool{service.RAGTool("simulated-rag"), service.GraphTool("simulated-graph")},
		service.WithProgress(true),
		service.WithErrorText(n8n.Describe),
	)

	srv := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: rphttp.NewRouter(rphttp.RouterConfig{
			CORSOrigin: cfg.Server.CORSOrigin,
			Handlers:   &rphttp.Handlers{Sessions: tracker, Version: version},
			WS:         ws.NewHandler(hub, tracker, cfg.Tracker.ObserverBuffer, cfg.Tracker.WriteTimeout),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("starting dashboard server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("dashboard listener failed, continuing without live observers", "addr", srv.Addr, "error", err)
		}
	}()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(sctx)
		_ = tracker.Shutdown(sctx)
	}()

	report, err := simulate.Run(ctx, queries, sc)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("simulate: %w", err)
	}

	m := tracker.Metrics()
	fmt.Fprintf(cmd.OutOrStdout(), "agents=%d queries=%d failures=%d avg_response=%.2fs\n",
		report.Agents, report.Queries, report.Failures, m.AverageResponseTime)

	if linger > 0 && ctx.Err() == nil {
		slog.Info("simulation finished, dashboard lingering", "linger", linger)
		select {
		case <-ctx.Done():
		case <-time.After(linger):
		}
	}
	return nil
}
