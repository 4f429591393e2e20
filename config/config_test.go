package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable the loader reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GEMINI_API_KEY", "GEMINI_BASE_URL", "GEMINI_UPLOAD_URL", "GEMINI_CHUNK_SIZE",
		"HTTP_TIMEOUT", "HTTP_RESPONSE_HEADER_TIMEOUT",
		"CIRCUIT_BREAKER_FAILURE_THRESHOLD", "CIRCUIT_BREAKER_SUCCESS_THRESHOLD", "CIRCUIT_BREAKER_TIMEOUT",
		"REGISTRY_TYPE", "REGISTRY_PATH", "REGISTRY_TTL", "REDIS_URL",
		"LOG_LEVEL", "LOG_FORMAT", "METRICS_ADDR", "GEMINIKIT_CONFIG",
	} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestExpandString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		envVars  map[string]string
		expected string
	}{
		{name: "empty string", input: "", expected: ""},
		{name: "string without placeholders", input: "simple-string", expected: "simple-string"},
		{
			name:     "simple variable expansion",
			input:    "${GK_TEST_API_KEY}",
			envVars:  map[string]string{"GK_TEST_API_KEY": "AIza-12345"},
			expected: "AIza-12345",
		},
		{
			name:     "multiple variables",
			input:    "${GK_TEST_SCHEME}://${GK_TEST_HOST}/v1beta",
			envVars:  map[string]string{"GK_TEST_SCHEME": "https", "GK_TEST_HOST": "generativelanguage.googleapis.com"},
			expected: "https://generativelanguage.googleapis.com/v1beta",
		},
		{
			name:     "default value - env var exists",
			input:    "${GK_TEST_CHUNK:-10MiB}",
			envVars:  map[string]string{"GK_TEST_CHUNK": "8MiB"},
			expected: "8MiB",
		},
		{name: "default value - env var missing", input: "${GK_TEST_CHUNK:-10MiB}", expected: "10MiB"},
		{
			name:     "default value - env var empty",
			input:    "${GK_TEST_CHUNK:-10MiB}",
			envVars:  map[string]string{"GK_TEST_CHUNK": ""},
			expected: "10MiB",
		},
		{name: "unresolved variable - no default", input: "${GK_TEST_MISSING}", expected: "${GK_TEST_MISSING}"},
		{
			name:     "mixed resolved and unresolved with defaults",
			input:    "${GK_TEST_RESOLVED}:${GK_TEST_UNRESOLVED:-fallback}:${GK_TEST_MISSING}",
			envVars:  map[string]string{"GK_TEST_RESOLVED": "value1"},
			expected: "value1:fallback:${GK_TEST_MISSING}",
		},
		{
			name:     "default value with colon in it",
			input:    "${GK_TEST_URL:-redis://localhost:6379/0}",
			expected: "redis://localhost:6379/0",
		},
		{name: "empty default value", input: "${GK_TEST_OPTIONAL:-}", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			result := expandString(tt.input)
			if result != tt.expected {
				t.Errorf("expandString(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "api overrides",
			envVars: map[string]string{"GEMINI_API_KEY": "AIza-test", "GEMINI_BASE_URL": "http://localhost:9000/v1beta"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "AIza-test", cfg.Gemini.APIKey)
				assert.Equal(t, "http://localhost:9000/v1beta", cfg.Gemini.BaseURL)
				assert.Equal(t, DefaultUploadURL, cfg.Gemini.UploadURL)
			},
		},
		{
			name:    "registry overrides",
			envVars: map[string]string{"REGISTRY_TYPE": "redis", "REDIS_URL": "redis://localhost:6379", "REGISTRY_TTL": "24h"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, RegistryRedis, cfg.Registry.Type)
				assert.Equal(t, "redis://localhost:6379", cfg.Registry.RedisURL)
				assert.Equal(t, 24*time.Hour, cfg.Registry.TTL)
			},
		},
		{
			name:    "HTTP timeout overrides",
			envVars: map[string]string{"HTTP_TIMEOUT": "30", "HTTP_RESPONSE_HEADER_TIMEOUT": "60"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 30, cfg.HTTP.Timeout)
				assert.Equal(t, 60, cfg.HTTP.ResponseHeaderTimeout)
			},
		},
		{
			name: "circuit breaker overrides",
			envVars: map[string]string{
				"CIRCUIT_BREAKER_FAILURE_THRESHOLD": "5",
				"CIRCUIT_BREAKER_SUCCESS_THRESHOLD": "2",
				"CIRCUIT_BREAKER_TIMEOUT":           "45s",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.HTTP.CircuitBreaker.Enabled())
				assert.Equal(t, 5, cfg.HTTP.CircuitBreaker.FailureThreshold)
				assert.Equal(t, 2, cfg.HTTP.CircuitBreaker.SuccessThreshold)
				assert.Equal(t, 45*time.Second, cfg.HTTP.CircuitBreaker.Timeout)
			},
		},
		{
			name:    "no env vars set preserves defaults",
			envVars: map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultChunkSize, cfg.Upload.ChunkSize)
				assert.Equal(t, 600, cfg.HTTP.Timeout)
				assert.Equal(t, RegistryNone, cfg.Registry.Type)
				assert.False(t, cfg.HTTP.CircuitBreaker.Enabled())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := buildDefaultConfig()
			require.NoError(t, applyEnvOverrides(cfg))
			tt.check(t, cfg)
		})
	}
}

func TestApplyEnvOverrides_InvalidValues(t *testing.T) {
	for _, env := range []map[string]string{
		{"HTTP_TIMEOUT": "soon"},
		{"REGISTRY_TTL": "two days"},
		{"CIRCUIT_BREAKER_FAILURE_THRESHOLD": "many"},
		{"CIRCUIT_BREAKER_TIMEOUT": "a while"},
	} {
		clearEnv(t)
		for k, v := range env {
			t.Setenv(k, v)
		}
		assert.Error(t, applyEnvOverrides(buildDefaultConfig()), "env %v", env)
	}
}

func TestLoadFile_YAMLWithDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
gemini:
  api_key: "${GK_TEST_KEY:-default-key}"
upload:
  chunk_size: "${GK_TEST_CHUNK_SIZE:-4MiB}"
registry:
  type: sqlite
  path: /tmp/geminikit/registry.db
  ttl: 12h
http:
  circuit_breaker:
    failure_threshold: 4
    timeout: 1m
logging:
  level: debug
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "default-key", cfg.Gemini.APIKey)
	assert.Equal(t, DefaultBaseURL, cfg.Gemini.BaseURL, "unset keys keep their defaults")
	assert.Equal(t, "4MiB", cfg.Upload.ChunkSize)
	assert.Equal(t, RegistrySQLite, cfg.Registry.Type)
	assert.Equal(t, 12*time.Hour, cfg.Registry.TTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 4, cfg.HTTP.CircuitBreaker.FailureThreshold)
	assert.Equal(t, 1, cfg.HTTP.CircuitBreaker.SuccessThreshold, "unset keys keep their defaults")
	assert.Equal(t, time.Minute, cfg.HTTP.CircuitBreaker.Timeout)

	size, err := cfg.Upload.ChunkSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(4*1024*1024), size)
}

func TestLoadFile_EnvWinsOverYAML(t *testing.T) {
	clearEnv(t)
	t.Setenv("GK_TEST_KEY", "from-placeholder")
	t.Setenv("GEMINI_CHUNK_SIZE", "16MiB")
	path := writeConfig(t, `
gemini:
  api_key: "${GK_TEST_KEY:-default-key}"
upload:
  chunk_size: 4MiB
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-placeholder", cfg.Gemini.APIKey)
	assert.Equal(t, "16MiB", cfg.Upload.ChunkSize)
}

func TestLoadFile_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultUploadURL, cfg.Gemini.UploadURL)
	assert.Equal(t, DefaultChunkSize, cfg.Upload.ChunkSize)
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	clearEnv(t)
	_, err := LoadFile(writeConfig(t, "gemini: [unclosed"))
	assert.Error(t, err)
}

func TestLoad_UsesConfigPathFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINIKIT_CONFIG", writeConfig(t, "metrics:\n  addr: \":9464\"\n"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9464", cfg.Metrics.Addr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "plain byte count", mutate: func(c *Config) { c.Upload.ChunkSize = "8388608" }},
		{name: "zero chunk size", mutate: func(c *Config) { c.Upload.ChunkSize = "0" }, wantErr: true},
		{name: "garbage chunk size", mutate: func(c *Config) { c.Upload.ChunkSize = "big" }, wantErr: true},
		{name: "negative timeout", mutate: func(c *Config) { c.HTTP.Timeout = -1 }, wantErr: true},
		{name: "negative circuit breaker threshold", mutate: func(c *Config) { c.HTTP.CircuitBreaker.FailureThreshold = -1 }, wantErr: true},
		{name: "unknown registry", mutate: func(c *Config) { c.Registry.Type = "etcd" }, wantErr: true},
		{name: "redis without url", mutate: func(c *Config) { c.Registry.Type = RegistryRedis }, wantErr: true},
		{name: "redis with url", mutate: func(c *Config) {
			c.Registry.Type = RegistryRedis
			c.Registry.RedisURL = "redis://localhost:6379"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := buildDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
