// Package config loads the client configuration.
//
// Sources, later ones winning:
//  1. built-in defaults
//  2. config.yaml (path from GEMINIKIT_CONFIG), with ${VAR} and ${VAR:-default} expansion
//  3. environment variables, including those from an optional .env file
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultBaseURL   = "https://generativelanguage.googleapis.com/v1beta"
	DefaultUploadURL = "https://generativelanguage.googleapis.com/upload/v1beta/files"
	DefaultChunkSize = "10MiB"
	DefaultPath      = "config.yaml"
)

// Registry types
const (
	RegistryNone   = ""
	RegistryLocal  = "local"
	RegistryRedis  = "redis"
	RegistrySQLite = "sqlite"
)

// Config holds the application configuration
type Config struct {
	Gemini   GeminiConfig   `yaml:"gemini"`
	Upload   UploadConfig   `yaml:"upload"`
	HTTP     HTTPConfig     `yaml:"http"`
	Registry RegistryConfig `yaml:"registry"`
	Logging  LogConfig      `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// GeminiConfig holds the API endpoint and credentials
type GeminiConfig struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	UploadURL string `yaml:"upload_url"`
}

// UploadConfig holds resumable upload settings
type UploadConfig struct {
	// ChunkSize is a human readable size such as "10MiB" or "8388608"
	ChunkSize string `yaml:"chunk_size"`
}

// ChunkSizeBytes parses ChunkSize.
func (u UploadConfig) ChunkSizeBytes() (int64, error) {
	n, err := units.RAMInBytes(u.ChunkSize)
	if err != nil {
		return 0, fmt.Errorf("invalid upload chunk size %q: %w", u.ChunkSize, err)
	}
	return n, nil
}

// HTTPConfig holds transport timeouts in seconds
type HTTPConfig struct {
	Timeout               int                  `yaml:"timeout"`
	ResponseHeaderTimeout int                  `yaml:"response_header_timeout"`
	CircuitBreaker        CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig makes requests fail fast after repeated server errors.
// A zero FailureThreshold disables it.
type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// Enabled reports whether the circuit breaker is configured.
func (c CircuitBreakerConfig) Enabled() bool {
	return c.FailureThreshold > 0
}

// RegistryConfig selects where uploaded files are remembered.
// An empty Type disables deduplication.
type RegistryConfig struct {
	Type     string        `yaml:"type"`
	Path     string        `yaml:"path"`
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables the endpoint
	Addr string `yaml:"addr"`
}

// Load reads .env, the YAML config file and the environment.
// Missing .env and config files are not errors.
func Load() (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env file doesn't exist

	path := os.Getenv("GEMINIKIT_CONFIG")
	if path == "" {
		path = DefaultPath
	}
	return LoadFile(path)
}

// LoadFile loads path on top of the defaults and applies environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := buildDefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal([]byte(expandString(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would only fail later, mid-upload.
func (c *Config) Validate() error {
	size, err := c.Upload.ChunkSizeBytes()
	if err != nil {
		return err
	}
	if size <= 0 {
		return fmt.Errorf("upload chunk size must be positive, got %q", c.Upload.ChunkSize)
	}
	if c.HTTP.Timeout < 0 || c.HTTP.ResponseHeaderTimeout < 0 {
		return fmt.Errorf("http timeouts must not be negative")
	}
	cb := c.HTTP.CircuitBreaker
	if cb.FailureThreshold < 0 || cb.SuccessThreshold < 0 || cb.Timeout < 0 {
		return fmt.Errorf("circuit breaker settings must not be negative")
	}

	switch c.Registry.Type {
	case RegistryNone, RegistryLocal, RegistrySQLite:
	case RegistryRedis:
		if c.Registry.RedisURL == "" {
			return fmt.Errorf("registry type redis requires a redis url")
		}
	default:
		return fmt.Errorf("unknown registry type: %s (valid: local, redis, sqlite)", c.Registry.Type)
	}
	return nil
}

func buildDefaultConfig() *Config {
	return &Config{
		Gemini: GeminiConfig{
			BaseURL:   DefaultBaseURL,
			UploadURL: DefaultUploadURL,
		},
		Upload: UploadConfig{
			ChunkSize: DefaultChunkSize,
		},
		HTTP: HTTPConfig{
			Timeout:               600,
			ResponseHeaderTimeout: 300,
			CircuitBreaker: CircuitBreakerConfig{
				SuccessThreshold: 1,
				Timeout:          30 * time.Second,
			},
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

func applyEnvOverrides(cfg *Config) error {
	setString(&cfg.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&cfg.Gemini.BaseURL, "GEMINI_BASE_URL")
	setString(&cfg.Gemini.UploadURL, "GEMINI_UPLOAD_URL")
	setString(&cfg.Upload.ChunkSize, "GEMINI_CHUNK_SIZE")
	setString(&cfg.Registry.Type, "REGISTRY_TYPE")
	setString(&cfg.Registry.Path, "REGISTRY_PATH")
	setString(&cfg.Registry.RedisURL, "REDIS_URL")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	setString(&cfg.Metrics.Addr, "METRICS_ADDR")

	if err := setInt(&cfg.HTTP.Timeout, "HTTP_TIMEOUT"); err != nil {
		return err
	}
	if err := setInt(&cfg.HTTP.ResponseHeaderTimeout, "HTTP_RESPONSE_HEADER_TIMEOUT"); err != nil {
		return err
	}
	if err := setInt(&cfg.HTTP.CircuitBreaker.FailureThreshold, "CIRCUIT_BREAKER_FAILURE_THRESHOLD"); err != nil {
		return err
	}
	if err := setInt(&cfg.HTTP.CircuitBreaker.SuccessThreshold, "CIRCUIT_BREAKER_SUCCESS_THRESHOLD"); err != nil {
		return err
	}
	if err := setDuration(&cfg.HTTP.CircuitBreaker.Timeout, "CIRCUIT_BREAKER_TIMEOUT"); err != nil {
		return err
	}
	return setDuration(&cfg.Registry.TTL, "REGISTRY_TTL")
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default}.
// An unset or empty VAR without a default is left as written.
func expandString(s string) string {
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		m := placeholder.FindStringSubmatch(match)
		if v := os.Getenv(m[1]); v != "" {
			return v
		}
		if m[2] != "" {
			return m[3]
		}
		return match
	})
}
