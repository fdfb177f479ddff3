// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// Sink kinds accepted in SINK.
const (
	SinkNone     = "none"
	SinkSQLite   = "sqlite"
	SinkPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	CacheDir        string `env:"CACHE_DIR" envDefault:".cache"`
	DefinitionsFile string `env:"DEFINITIONS_FILE"` // optional YAML pipelines
	NHLBaseURI      string `env:"NHL_BASE_URI" envDefault:"https://statsapi.web.nhl.com/api"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`

	HTTP   HTTPConfig
	OAuth  OAuthConfig
	Server ServerConfig

	Sink        string `env:"SINK" envDefault:"none"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"rinkjoin.db"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
}

// HTTPConfig configures the outbound transport.
type HTTPConfig struct {
	Timeout   time.Duration `env:"HTTP_TIMEOUT" envDefault:"20s"`
	UserAgent string        `env:"HTTP_USER_AGENT" envDefault:"rinkjoin/0.1"`
	Tracing   bool          `env:"HTTP_TRACING" envDefault:"false"`
}

// OAuthConfig holds optional client credentials for APIs that need them.
type OAuthConfig struct {
	ClientID     string   `env:"OAUTH_CLIENT_ID"`
	ClientSecret string   `env:"OAUTH_CLIENT_SECRET"`
	TokenURL     string   `env:"OAUTH_TOKEN_URL"`
	Scopes       []string `env:"OAUTH_SCOPES" envSeparator:","`
}

// ServerConfig holds API and worker settings.
type ServerConfig struct {
	Port              string `env:"PORT" envDefault:"8080"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY" envDefault:"4"`
	APIToken          string `env:"API_TOKEN"` // guards job submission when set
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// HasOAuth returns true if client credentials are complete
func (c *Config) HasOAuth() bool {
	return c.OAuth.ClientID != "" && c.OAuth.ClientSecret != "" && c.OAuth.TokenURL != ""
}

// Level returns the parsed log level, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Validate checks combinations the struct tags cannot express
func (c *Config) Validate() error {
	switch c.Sink {
	case SinkNone, SinkSQLite:
	case SinkPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("SINK=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown SINK %q: want none, sqlite or postgres", c.Sink)
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTP.Timeout)
	}
	if c.Server.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1, got %d", c.Server.WorkerConcurrency)
	}
	if (c.OAuth.ClientID != "" || c.OAuth.ClientSecret != "") && !c.HasOAuth() {
		return fmt.Errorf("OAUTH_CLIENT_ID, OAUTH_CLIENT_SECRET and OAUTH_TOKEN_URL must be set together")
	}
	return nil
}
