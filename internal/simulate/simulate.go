// Package simulate drives several agents through the query service against
// a fake backend so the dashboard can be exercised without the remote
// endpoints.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/replatform-mcp/internal/adapter/n8n"
	"github.com/Strob0t/replatform-mcp/internal/service"
)

// Queries is the pool simulated agents draw from.
var Queries = []string{
	"How to migrate Express to Fastify?",
	"Show me dependency graph for microservices",
	"Analyze coupling between components",
	"Migration strategies for React components",
	"Database modernization approaches",
	"Convert REST API to GraphQL",
	"Modernize jQuery to React",
	"Migrate MongoDB to PostgreSQL",
	"Transform monolith to microservices",
	"Update legacy authentication system",
}

var tools = []string{service.ToolRAG, service.ToolGraph}

// Config controls the shape of a simulation run.
type Config struct {
	Agents     int
	MaxQueries int // each agent runs between 1 and MaxQueries queries
	MinLatency time.Duration
	MaxLatency time.Duration
	Pause      time.Duration // between an agent's queries
	ErrorRate  float64       // probability a query fails, 0..1
	Seed       uint64
}

// DefaultConfig mirrors a ten agent dashboard demo.
func DefaultConfig() Config {
	return Config{
		Agents:     10,
		MaxQueries: 3,
		MinLatency: time.Second,
		MaxLatency: 5 * time.Second,
		Pause:      500 * time.Millisecond,
		ErrorRate:  0.1,
	}
}

// Runner runs a tracked query; *service.QueryService satisfies it.
type Runner interface {
	Run(ctx context.Context, tool, agentID, query string) (string, error)
}

// Report summarizes a finished run.
type Report struct {
	Agents   int
	Queries  int
	Failures int
}

// Querier is a fake service.Querier with random latency and failures.
type Querier struct {
	cfg Config
	mu  sync.Mutex
	rng *rand.Rand
}

var _ service.Querier = (*Querier)(nil)

// NewQuerier creates a fake querier driven by cfg.
func NewQuerier(cfg Config) *Querier {
	return &Querier{cfg: cfg, rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))}
}

// Query waits for a random latency and then answers or fails.
func (q *Querier) Query(ctx context.Context, _, query string) (string, error) {
	q.mu.Lock()
	latency := q.cfg.MinLatency
	if spread := q.cfg.MaxLatency - q.cfg.MinLatency; spread > 0 {
		latency += time.Duration(q.rng.Int64N(int64(spread)))
	}
	fail := q.rng.Float64() < q.cfg.ErrorRate
	q.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	if fail {
		return "", &n8n.TimeoutError{After: latency}
	}
	return fmt.Sprintf("Simulated answer for %q", query), nil
}

// Run starts cfg.Agents agents concurrently and waits for all of them.
// Query failures are counted, not returned; only cancellation ends a run
// early.
func Run(ctx context.Context, runner Runner, cfg Config) (Report, error) {
	if cfg.Agents < 1 || cfg.MaxQueries < 1 {
		return Report{}, errors.New("simulate: agents and max queries must be >= 1")
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1))
	type plan struct {
		agentID string
		tools   []string
		queries []string
	}
	plans := make([]plan, cfg.Agents)
	for i := range plans {
		n := 1 + rng.IntN(cfg.MaxQueries)
		p := plan{agentID: fmt.Sprintf("agent-%02d", i+1)}
		for range n {
			p.tools = append(p.tools, tools[rng.IntN(len(tools))])
			p.queries = append(p.queries, Queries[rng.IntN(len(Queries))])
		}
		plans[i] = p
	}

	var queries, failures atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range plans {
		g.Go(func() error {
			slog.Info("simulated agent starting", "agent_id", p.agentID, "queries", len(p.queries))
			for i, q := range p.queries {
				if i > 0 && cfg.Pause > 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(cfg.Pause):
					}
				}
				queries.Add(1)
				if _, err := runner.Run(ctx, p.tools[i], p.agentID, q); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					failures.Add(1)
				}
			}
			slog.Info("simulated agent finished", "agent_id", p.agentID)
			return nil
		})
	}
	err := g.Wait()

	return Report{
		Agents:   cfg.Agents,
		Queries:  int(queries.Load()),
		Failures: int(failures.Load()),
	}, err
}
