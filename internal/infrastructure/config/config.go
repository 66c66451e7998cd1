package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Sandbox   SandboxConfig
	Browser   BrowserConfig
	Examples  ExamplesConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port     string `envconfig:"PORT" default:"8080"`
	Host     string `envconfig:"HOST" default:"0.0.0.0"`
	ForceSSL bool   `envconfig:"FORCE_SSL" default:"true"`
	Gzip     bool   `envconfig:"GZIP" default:"true"`
}

// SandboxConfig holds script execution limits.
type SandboxConfig struct {
	Timeout       time.Duration `envconfig:"SANDBOX_TIMEOUT" default:"40s"`
	ArtifactGrace time.Duration `envconfig:"SANDBOX_ARTIFACT_GRACE" default:"150ms"`
	WorkDir       string        `envconfig:"SANDBOX_WORK_DIR" default:""`
	MaxConcurrent int           `envconfig:"SANDBOX_MAX_CONCURRENT" default:"4"`
	QueueTimeout  time.Duration `envconfig:"SANDBOX_QUEUE_TIMEOUT" default:"5s"`
	MaxScriptSize int64         `envconfig:"SANDBOX_MAX_SCRIPT_BYTES" default:"65536"`
}

// BrowserConfig holds headless browser configuration.
type BrowserConfig struct {
	ChromePath    string `envconfig:"CHROME_PATH" default:""`
	Reuse         bool   `envconfig:"BROWSER_REUSE" default:"false"`
	WSEndpoint    string `envconfig:"BROWSER_WS_ENDPOINT" default:""`
	DebuggingPort int    `envconfig:"BROWSER_DEBUGGING_PORT" default:"9222"`
}

// ExamplesConfig holds example script catalog configuration.
type ExamplesConfig struct {
	Dir string `envconfig:"EXAMPLES_DIR" default:"./examples"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration for /run.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"2"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"5"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// CORSConfig holds allowed origins.
type CORSConfig struct {
	Origins    []string `envconfig:"CORS_ORIGINS" default:"https://try-puppeteer.appspot.com"`
	DevOrigins []string `envconfig:"CORS_DEV_ORIGINS" default:"http://localhost:8081"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	if c.Sandbox.Timeout <= 0 {
		return fmt.Errorf("SANDBOX_TIMEOUT must be positive, got %s", c.Sandbox.Timeout)
	}
	if c.Sandbox.ArtifactGrace < 100*time.Millisecond || c.Sandbox.ArtifactGrace > 150*time.Millisecond {
		return fmt.Errorf("SANDBOX_ARTIFACT_GRACE must be within 100ms-150ms, got %s", c.Sandbox.ArtifactGrace)
	}
	if c.Sandbox.MaxConcurrent <= 0 {
		return fmt.Errorf("SANDBOX_MAX_CONCURRENT must be positive, got %d", c.Sandbox.MaxConcurrent)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     "8080",
			Host:     "0.0.0.0",
			ForceSSL: true,
			Gzip:     true,
		},
		Sandbox: SandboxConfig{
			Timeout:       40 * time.Second,
			ArtifactGrace: 150 * time.Millisecond,
			MaxConcurrent: 4,
			QueueTimeout:  5 * time.Second,
			MaxScriptSize: 64 << 10,
		},
		Browser: BrowserConfig{
			DebuggingPort: 9222,
		},
		Examples: ExamplesConfig{
			Dir: "./examples",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 2,
			Burst:             5,
			Enabled:           true,
		},
		CORS: CORSConfig{
			Origins:    []string{"https://try-puppeteer.appspot.com"},
			DevOrigins: []string{"http://localhost:8081"},
		},
	}
}
