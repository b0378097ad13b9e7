// Unified config loading: defaults, then an optional YAML file, then
// environment variable overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("GREENLEAF").
//	    Load()
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application config.
type Config struct {
	// Server holds HTTP/gRPC/metrics server settings.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Agent holds default single-agent runtime settings.
	Agent AgentConfig `yaml:"agent" env:"AGENT"`

	// Redis holds cache connection settings.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database holds the repository layer's connection settings.
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Qdrant holds optional vector store settings (unused by the core pipelines).
	Qdrant QdrantConfig `yaml:"qdrant" env:"QDRANT"`

	// LLM holds default LLM provider settings.
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Log holds zap logging settings.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry holds OpenTelemetry settings.
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig holds HTTP/gRPC/metrics server settings.
type ServerConfig struct {
	// HTTP port
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// gRPC port
	GRPCPort int `yaml:"grpc_port" env:"GRPC_PORT"`
	// Metrics port
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// Read timeout
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// Write timeout
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// Whether an API key may be passed as a query parameter
	AllowQueryAPIKey bool `yaml:"allow_query_api_key" env:"ALLOW_QUERY_API_KEY"`
	// Requests per second allowed per client
	RateLimitRPS int `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// Burst size for the per-client rate limit
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// AgentConfig configures a single default agent runtime.
type AgentConfig struct {
	// Name
	Name string `yaml:"name" env:"NAME"`
	// Description
	Description string `yaml:"description" env:"DESCRIPTION"`
	// Model name
	Model string `yaml:"model" env:"MODEL"`
	// System prompt
	SystemPrompt string `yaml:"system_prompt" env:"SYSTEM_PROMPT"`
	// Max iterations
	MaxIterations int `yaml:"max_iterations" env:"MAX_ITERATIONS"`
	// Sampling temperature
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// Max tokens
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// Timeout
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// Whether streaming output is enabled
	StreamEnabled bool `yaml:"stream_enabled" env:"STREAM_ENABLED"`
	// Memory settings
	Memory MemoryConfig `yaml:"memory" env:"MEMORY"`
}

// MemoryConfig configures agent conversation memory.
type MemoryConfig struct {
	// Whether enabled
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Type: buffer, summary, vector
	Type string `yaml:"type" env:"TYPE"`
	// Max messages kept
	MaxMessages int `yaml:"max_messages" env:"MAX_MESSAGES"`
	// Token budget
	TokenLimit int `yaml:"token_limit" env:"TOKEN_LIMIT"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	// Address
	Addr string `yaml:"addr" env:"ADDR"`
	// Password
	Password string `yaml:"password" env:"PASSWORD"`
	// Logical DB index
	DB int `yaml:"db" env:"DB"`
	// Connection pool size
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// Minimum idle connections
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// DatabaseConfig holds repository layer connection settings.
type DatabaseConfig struct {
	// Driver: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// Host
	Host string `yaml:"host" env:"HOST"`
	// Port
	Port int `yaml:"port" env:"PORT"`
	// Username
	User string `yaml:"user" env:"USER"`
	// Password
	Password string `yaml:"password" env:"PASSWORD"`
	// Database name
	Name string `yaml:"name" env:"NAME"`
	// SSL mode
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// Max open connections
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// Max idle connections
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// Max connection lifetime
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// QdrantConfig holds optional vector store settings.
type QdrantConfig struct {
	// Host
	Host string `yaml:"host" env:"HOST"`
	// gRPC port
	Port int `yaml:"port" env:"PORT"`
	// API key (optional)
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// Default collection name
	Collection string `yaml:"collection" env:"COLLECTION"`
}

// LLMConfig holds default LLM provider settings.
type LLMConfig struct {
	// Default provider
	DefaultProvider string `yaml:"default_provider" env:"DEFAULT_PROVIDER"`
	// API key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// Base URL (optional)
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// Request timeout
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// Max retries
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
}

// LogConfig holds zap logging settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// Output paths
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// Whether caller info is logged
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// Whether stack traces are logged
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	// Whether enabled
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP endpoint
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// Service name
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// Sample rate
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Loader loads config using a builder pattern.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a new Loader.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "GREENLEAF",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a custom config validator.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load builds the config: defaults, then the YAML file (if any), then
// environment variable overrides.
func (l *Loader) Load() (*Config, error) {
	// 1. start from defaults
	cfg := DefaultConfig()

	// 2. load from file if a path was given
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. override from environment
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. run validators
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile loads and merges YAML config into cfg.
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// file missing, fall back to defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv overrides cfg fields from environment variables.
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv recursively applies env var overrides to struct fields.
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// read the env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// recurse into nested structs
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// read the environment variable
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// apply the value
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue parses and assigns a single field from a string value.
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// time.Duration gets special handling
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// comma-separated string slices
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// MustLoad loads config and panics on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv loads config from defaults plus environment variables only.
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	var errs []string

	// validate server config
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}

	// validate agent config
	if c.Agent.MaxIterations <= 0 {
		errs = append(errs, "max_iterations must be positive")
	}
	if c.Agent.Temperature < 0 || c.Agent.Temperature > 2 {
		errs = append(errs, "temperature must be between 0 and 2")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN returns the driver-specific connection string.
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
