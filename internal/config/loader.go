package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "replatform.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if v := os.Getenv("REPLATFORM_CONFIG"); v != "" {
		path = v
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied config path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "REPLATFORM_PORT")
	setString(&cfg.Server.CORSOrigin, "REPLATFORM_CORS_ORIGIN")

	setString(&cfg.MCP.Transport, "REPLATFORM_MCP_TRANSPORT")
	setString(&cfg.MCP.APIKey, "REPLATFORM_MCP_API_KEY")

	// Query endpoints
	setString(&cfg.Query.RAGEndpoint, "REPLATFORM_RAG_ENDPOINT")
	setString(&cfg.Query.GraphEndpoint, "REPLATFORM_GRAPH_ENDPOINT")
	setString(&cfg.Query.Username, "REPLATFORM_QUERY_USERNAME")
	setString(&cfg.Query.Password, "REPLATFORM_QUERY_PASSWORD")
	setDuration(&cfg.Query.Timeout, "REPLATFORM_QUERY_TIMEOUT")
	setInt(&cfg.Query.MaxQueryLength, "REPLATFORM_MAX_QUERY_LENGTH")
	setDuration(&cfg.Query.CacheTTL, "REPLATFORM_CACHE_TTL")
	setInt64(&cfg.Query.CacheMaxMB, "REPLATFORM_CACHE_MAX_MB")
	setBool(&cfg.Query.SimulateProgress, "REPLATFORM_SIMULATE_PROGRESS")

	// Tracker
	setDuration(&cfg.Tracker.Retention, "REPLATFORM_RETENTION")
	setDuration(&cfg.Tracker.ReapInterval, "REPLATFORM_REAP_INTERVAL")
	setInt(&cfg.Tracker.ObserverBuffer, "REPLATFORM_OBSERVER_BUFFER")
	setDuration(&cfg.Tracker.WriteTimeout, "REPLATFORM_WRITE_TIMEOUT")

	setString(&cfg.Logging.Level, "REPLATFORM_LOG_LEVEL")
	setString(&cfg.Logging.Service, "REPLATFORM_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "REPLATFORM_LOG_ASYNC")

	setInt(&cfg.Breaker.MaxFailures, "REPLATFORM_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "REPLATFORM_BREAKER_TIMEOUT")

	// Sinks
	setBool(&cfg.OTEL.Enabled, "REPLATFORM_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.OTEL.Insecure, "REPLATFORM_OTEL_INSECURE")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "REPLATFORM_PG_MAX_CONNS")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.SubjectPrefix, "REPLATFORM_NATS_SUBJECT_PREFIX")
	setInt(&cfg.Sink.Buffer, "REPLATFORM_SINK_BUFFER")
	setInt(&cfg.Sink.Workers, "REPLATFORM_SINK_WORKERS")
	setDuration(&cfg.Sink.Timeout, "REPLATFORM_SINK_TIMEOUT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.MCP.Transport != "stdio" && cfg.MCP.Transport != "http" {
		return fmt.Errorf("mcp.transport must be stdio or http, got %q", cfg.MCP.Transport)
	}
	if cfg.Query.Timeout <= 0 {
		return errors.New("query.timeout must be > 0")
	}
	if cfg.Query.MaxQueryLength < 1 {
		return errors.New("query.max_query_length must be >= 1")
	}
	if cfg.Query.CacheTTL < 0 {
		return errors.New("query.cache_ttl must be >= 0")
	}
	if cfg.Tracker.Retention <= 0 {
		return errors.New("tracker.retention must be > 0")
	}
	if cfg.Tracker.ReapInterval <= 0 {
		return errors.New("tracker.reap_interval must be > 0")
	}
	if cfg.Tracker.ObserverBuffer < 1 {
		return errors.New("tracker.observer_buffer must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Sink.Buffer < 1 || cfg.Sink.Workers < 1 {
		return errors.New("sink.buffer and sink.workers must be >= 1")
	}
	if cfg.Sink.Timeout <= 0 {
		return errors.New("sink.timeout must be > 0")
	}
	if cfg.Postgres.DSN != "" && cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
