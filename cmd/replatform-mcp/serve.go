package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	rphttp "github.com/Strob0t/replatform-mcp/internal/adapter/http"
	rpmcp "github.com/Strob0t/replatform-mcp/internal/adapter/mcp"
	"github.com/Strob0t/replatform-mcp/internal/adapter/metrics"
	"github.com/Strob0t/replatform-mcp/internal/adapter/n8n"
	rpnats "github.com/Strob0t/replatform-mcp/internal/adapter/nats"
	"github.com/Strob0t/replatform-mcp/internal/adapter/natskv"
	rpotel "github.com/Strob0t/replatform-mcp/internal/adapter/otel"
	"github.com/Strob0t/replatform-mcp/internal/adapter/postgres"
	"github.com/Strob0t/replatform-mcp/internal/adapter/ristretto"
	"github.com/Strob0t/replatform-mcp/internal/adapter/tiered"
	"github.com/Strob0t/replatform-mcp/internal/adapter/ws"
	"github.com/Strob0t/replatform-mcp/internal/config"
	"github.com/Strob0t/replatform-mcp/internal/port/cache"
	"github.com/Strob0t/replatform-mcp/internal/port/sink"
	"github.com/Strob0t/replatform-mcp/internal/service"
)

const (
	shutdownTimeout = 10 * time.Second
	cacheBucket     = "replatform-query-cache"
)

// errClientGone ends the process when the stdio MCP client disconnects.
var errClientGone = errors.New("mcp client disconnected")

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server and the dashboard (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, logCloser, err := loadConfig()
	if err != nil {
		return err
	}
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"transport", cfg.MCP.Transport,
		"log_level", cfg.Logging.Level,
		"postgres", cfg.Postgres.DSN != "",
		"nats", cfg.NATS.URL != "",
		"otel", cfg.OTEL.Enabled,
	)

	// --- Infrastructure ---

	otelShutdown, err := rpotel.Setup(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Error("otel shutdown failed", "error", err)
		}
	}()

	instruments, err := rpotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel instruments: %w", err)
	}

	var sinks []sink.Sink
	if cfg.OTEL.Enabled {
		sinks = append(sinks, rpotel.NewEventSink(otel.GetTracerProvider()))
	}

	// PostgreSQL
	var events *postgres.EventStore
	if cfg.Postgres.DSN != "" {
		if err := postgres.Migrate(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		slog.Info("postgres connected")

		events = postgres.NewEventStore(pool)
		sinks = append(sinks, events)
	}

	// NATS
	var nc *rpnats.Client
	if cfg.NATS.URL != "" {
		nc, err = rpnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = nc.Close() }()
		sinks = append(sinks, nc)
	}

	// --- Services ---

	recorder := service.NewRecorder(service.RecorderConfig{
		Buffer:  cfg.Sink.Buffer,
		Workers: cfg.Sink.Workers,
		Timeout: cfg.Sink.Timeout,
	}, sinks...)
	hub := ws.NewHub()
	tracker := service.NewTracker(hub,
		service.WithRetention(cfg.Tracker.Retention),
		service.WithRecorder(recorder),
	)

	reaper := service.NewReaper(tracker, cfg.Tracker.ReapInterval)
	if err := reaper.Start(); err != nil {
		return fmt.Errorf("reaper: %w", err)
	}
	// Runs on every exit from here on, before the sinks' own deferred closes.
	defer stopTracking(reaper, tracker, recorder)

	client, breaker, closeCache, err := newQueryClient(ctx, cfg, nc)
	if err != nil {
		return err
	}
	defer closeCache()

	queries := service.NewQueryService(tracker, client,
		[]service.QueryTool{
			service.RAGTool(cfg.Query.RAGEndpoint),
			service.GraphTool(cfg.Query.GraphEndpoint),
		},
		service.WithProgress(cfg.Query.SimulateProgress),
		service.WithInstruments(instruments),
		service.WithErrorText(n8n.Describe),
	)

	mcpServer := rpmcp.NewServer(
		rpmcp.ServerConfig{Name: cfg.MCP.Name, Version: cfg.MCP.Version, APIKey: cfg.MCP.APIKey},
		rpmcp.ServerDeps{Queries: queries, MaxQueryLength: cfg.Query.MaxQueryLength},
	)

	// --- HTTP ---

	promRegistry, err := metrics.NewRegistry(tracker)
	if err != nil {
		return fmt.Errorf("prometheus: %w", err)
	}

	handlers := &rphttp.Handlers{
		Sessions: tracker,
		Breaker:  breaker,
		Version:  version,
	}
	if events != nil {
		handlers.History = events
	}
	routerCfg := rphttp.RouterConfig{
		CORSOrigin: cfg.Server.CORSOrigin,
		Handlers:   handlers,
		WS:         ws.NewHandler(hub, tracker, cfg.Tracker.ObserverBuffer, cfg.Tracker.WriteTimeout),
		Metrics:    promRegistry.Handler(),
		Middleware: []func(http.Handler) http.Handler{
			promRegistry.Middleware,
			rpotel.HTTPMiddleware(cfg.OTEL.ServiceName, nil),
		},
	}
	if cfg.MCP.Transport == "http" {
		routerCfg.MCP = mcpServer.HTTPHandler()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           rphttp.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			if cfg.MCP.Transport == "http" {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			// The MCP tools keep working over stdio without live observers.
			slog.Error("dashboard listener failed, continuing without live observers", "addr", srv.Addr, "error", err)
			return nil
		}
		slog.Info("starting dashboard server", "addr", srv.Addr)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("dashboard server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if cfg.MCP.Transport == "stdio" {
		g.Go(func() error {
			if err := mcpServer.ServeStdio(gctx, os.Stdin, os.Stdout); err != nil && gctx.Err() == nil {
				return fmt.Errorf("mcp stdio: %w", err)
			}
			if gctx.Err() != nil {
				return nil
			}
			return errClientGone
		})
	}

	err = g.Wait()
	slog.Info("shutting down")

	if errors.Is(err, errClientGone) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// stopTracking stops the reaper, closes observers and drains the recorder.
func stopTracking(reaper *service.Reaper, tracker *service.Tracker, recorder *service.Recorder) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := reaper.Stop(ctx); err != nil {
		slog.Warn("reaper stop", "error", err)
	}
	if err := tracker.Shutdown(ctx); err != nil {
		slog.Warn("tracker shutdown", "error", err, "dropped_events", recorder.DroppedCount())
	}
}

// newQueryClient builds the n8n client with its circuit breaker and response
// cache. With NATS configured the cache is tiered over a shared KV bucket.
func newQueryClient(ctx context.Context, cfg *config.Config, nc *rpnats.Client) (*n8n.Client, rphttp.StateReporter, func(), error) {
	client := n8n.NewClient(cfg.Query.Username, cfg.Query.Password, cfg.Query.Timeout)
	breaker := n8n.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	client.SetBreaker(breaker)
	client.SetMaxQueryLength(cfg.Query.MaxQueryLength)

	if cfg.Query.CacheTTL <= 0 {
		return client, breaker, func() {}, nil
	}

	l1, err := ristretto.New(cfg.Query.CacheMaxMB << 20)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("query cache: %w", err)
	}
	var store cache.Cache = l1
	if nc != nil {
		kv, err := nc.KeyValue(ctx, cacheBucket, cfg.Query.CacheTTL)
		if err != nil {
			l1.Close()
			return nil, nil, nil, fmt.Errorf("query cache: %w", err)
		}
		store = tiered.New(l1, natskv.New(kv), cfg.Query.CacheTTL)
	}
	client.SetCache(store, cfg.Query.CacheTTL)
	return client, breaker, l1.Close, nil
}
