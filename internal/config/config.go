// Package config provides hierarchical configuration loading for replatform-mcp.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the MCP server and its dashboard.
type Config struct {
	Server   Server   `yaml:"server"`
	MCP      MCP      `yaml:"mcp"`
	Query    Query    `yaml:"query"`
	Tracker  Tracker  `yaml:"tracker"`
	Logging  Logging  `yaml:"logging"`
	Breaker  Breaker  `yaml:"breaker"`
	OTEL     OTEL     `yaml:"otel"`
	Postgres Postgres `yaml:"postgres"`
	NATS     NATS     `yaml:"nats"`
	Sink     Sink     `yaml:"sink"`
}

// Server holds the dashboard HTTP/WebSocket listener configuration.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// MCP holds protocol server configuration.
type MCP struct {
	Name      string `yaml:"name"`
	Version   string `yaml:"version"`
	Transport string `yaml:"transport"` // "stdio" | "http"
	APIKey    string `yaml:"api_key"`   // guards /mcp on the http transport
}

// Query holds configuration for the remote analysis endpoints.
type Query struct {
	RAGEndpoint      string        `yaml:"rag_endpoint"`
	GraphEndpoint    string        `yaml:"graph_endpoint"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxQueryLength   int           `yaml:"max_query_length"`
	CacheTTL         time.Duration `yaml:"cache_ttl"` // 0 disables the response cache
	CacheMaxMB       int64         `yaml:"cache_max_mb"`
	SimulateProgress bool          `yaml:"simulate_progress"` // emit staged progress updates while a query runs
}

// Tracker holds session tracking and reaping configuration.
type Tracker struct {
	Retention      time.Duration `yaml:"retention"`
	ReapInterval   time.Duration `yaml:"reap_interval"`
	ObserverBuffer int           `yaml:"observer_buffer"` // frames queued per dashboard connection
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Breaker holds circuit breaker configuration for the query client.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// OTEL holds OpenTelemetry export configuration.
type OTEL struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// Postgres holds the optional event sink database configuration.
// An empty DSN disables the sink.
type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	HealthCheck     time.Duration `yaml:"health_check"`
}

// NATS holds the optional event sink broker configuration.
// An empty URL disables the sink.
type NATS struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Sink holds the async recorder configuration shared by all event sinks.
type Sink struct {
	Buffer  int           `yaml:"buffer"`
	Workers int           `yaml:"workers"`
	Timeout time.Duration `yaml:"timeout"` // per event, per sink
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "8080",
			CORSOrigin: "http://localhost:3000",
		},
		MCP: MCP{
			Name:      "replatforming-mcp",
			Version:   "1.0.0",
			Transport: "stdio",
		},
		Query: Query{
			RAGEndpoint:      "https://n8n.paloitcloud.com.sg/webhook/codebase-rag",
			GraphEndpoint:    "https://n8n.paloitcloud.com.sg/webhook/codebase-graph",
			Timeout:          30 * time.Second,
			MaxQueryLength:   10000,
			CacheTTL:         5 * time.Minute,
			CacheMaxMB:       16,
			SimulateProgress: true,
		},
		Tracker: Tracker{
			Retention:      time.Hour,
			ReapInterval:   5 * time.Minute,
			ObserverBuffer: 64,
			WriteTimeout:   5 * time.Second,
		},
		Logging: Logging{
			Level:   "info",
			Service: "replatform-mcp",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		OTEL: OTEL{
			Endpoint:    "localhost:4317",
			Insecure:    true,
			ServiceName: "replatform-mcp",
		},
		Postgres: Postgres{
			MaxConns:        5,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 10 * time.Minute,
			HealthCheck:     time.Minute,
		},
		NATS: NATS{
			SubjectPrefix: "agents.events",
		},
		Sink: Sink{
			Buffer:  1024,
			Workers: 1,
			Timeout: 5 * time.Second,
		},
	}
}
