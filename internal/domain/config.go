package domain

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gopkg.in/yaml.v3"
)

// Config holds the complete WelfareShield configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server" yaml:"server"`

	// Edition determines which backing services are used
	Edition Edition `json:"edition" yaml:"edition"`

	// Synthetic population sizes and seed
	Generator GeneratorConfig `json:"generator" yaml:"generator"`

	// Session snapshot bookkeeping
	Session SessionConfig `json:"session" yaml:"session"`

	// Component configurations
	Repository RepositoryConfig `json:"repository" yaml:"repository"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	EventBus   EventBusConfig   `json:"eventBus" yaml:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	ReadTimeout  int    `json:"readTimeout" yaml:"readTimeout"`   // seconds
	WriteTimeout int    `json:"writeTimeout" yaml:"writeTimeout"` // seconds
}

// GeneratorConfig sizes each session's synthetic population.
type GeneratorConfig struct {
	Beneficiaries int `json:"beneficiaries" yaml:"beneficiaries"`
	Transactions  int `json:"transactions" yaml:"transactions"`
	TrendMonths   int `json:"trendMonths" yaml:"trendMonths"`

	// Seed makes every session reproducible. Zero seeds from the clock.
	Seed uint64 `json:"seed" yaml:"seed"`

	// VelocityWindowDays is the trailing window for beneficiary velocity.
	VelocityWindowDays int `json:"velocityWindowDays" yaml:"velocityWindowDays"`
}

// SessionConfig bounds the snapshots held in memory.
type SessionConfig struct {
	// MaxSessions evicts the oldest snapshot once exceeded. Zero is unbounded.
	MaxSessions int `json:"maxSessions" yaml:"maxSessions"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	ServiceName string `json:"serviceName" yaml:"serviceName"`
}

// Tracer returns the tracer for one component, named after the service.
// When tracing is disabled spans are dropped.
func (c TracingConfig) Tracer(component string) trace.Tracer {
	name := c.ServiceName + "-" + component
	if c.ServiceName == "" {
		name = component
	}
	if !c.Enabled {
		return noop.NewTracerProvider().Tracer(name)
	}
	return otel.Tracer(name)
}

// Edition represents the deployment edition.
type Edition string

const (
	// EditionCommunity runs on SQLite + channels + in-process LRU
	EditionCommunity Edition = "community"

	// EditionPro runs on PostgreSQL + NATS + Redis
	EditionPro Edition = "pro"
)

// DefaultConfig returns a default configuration for the Community edition.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Edition: EditionCommunity,
		Generator: GeneratorConfig{
			Beneficiaries:      600,
			Transactions:       800,
			TrendMonths:        12,
			VelocityWindowDays: 90,
		},
		Session: SessionConfig{
			MaxSessions: 1000,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./welfareshield.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
			ScoreTTL:     30 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "welfareshield",
		},
	}
}

// ProConfig returns a configuration for the Pro edition.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Edition = EditionPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "welfareshield",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
		ScoreTTL:       30 * time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
		NATSQueueGroup:    "welfareshield-audit",
	}
	cfg.Tracing.Enabled = true
	return cfg
}

// LoadConfigFile overlays a YAML file onto cfg. Keys missing from the file
// keep their current values.
func LoadConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg.Validate()
}

// ApplyEnv applies WELFARESHIELD_* overrides read through getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("WELFARESHIELD_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: WELFARESHIELD_SEED: %v", ErrInvalidInput, err)
		}
		cfg.Generator.Seed = seed
	}
	if v := getenv("WELFARESHIELD_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: WELFARESHIELD_PORT: %v", ErrInvalidInput, err)
		}
		cfg.Server.Port = port
	}
	if v := getenv("WELFARESHIELD_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	return cfg.Validate()
}

// Validate rejects sizes the generator cannot honour.
func (c *Config) Validate() error {
	g := c.Generator
	if g.Beneficiaries < 0 || g.Transactions < 0 || g.TrendMonths < 0 {
		return fmt.Errorf("%w: generator sizes must not be negative", ErrInvalidInput)
	}
	if g.Transactions > 0 && g.Beneficiaries == 0 {
		return fmt.Errorf("%w: transactions require at least one beneficiary", ErrInvalidInput)
	}
	if c.Session.MaxSessions < 0 {
		return fmt.Errorf("%w: maxSessions must not be negative", ErrInvalidInput)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidInput, c.Server.Port)
	}
	return nil
}
