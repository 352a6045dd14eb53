package config

import (
	"fmt"
	"net/url"
	"time"

	"llmarena/internal/core"

	"github.com/ilyakaznacheev/cleanenv"
)

// ServerConfig server configuration
type ServerConfig struct {
	Port    string `env:"PORT" env-default:"8000"`
	GinMode string `env:"GIN_MODE" env-default:"release"`

	// APIKey is the single bearer credential sent to the upstream provider.
	APIKey          string `env:"OPENROUTER_API_KEY"`
	UpstreamBaseURL string `env:"UPSTREAM_BASE_URL" env-default:"https://openrouter.ai/api/v1"`

	FanoutConcurrency int           `env:"FANOUT_MAX_CONCURRENCY" env-default:"5"`
	PromptHistorySize int           `env:"PROMPT_HISTORY_SIZE" env-default:"10"`
	ModelsCacheTTL    time.Duration `env:"MODELS_CACHE_TTL" env-default:"5m"`

	// ExposeCredentials disables Authorization masking in debug traces.
	ExposeCredentials bool   `env:"TRACE_EXPOSE_CREDENTIALS" env-default:"false"`
	CORSAllowOrigin   string `env:"CORS_ALLOW_ORIGIN" env-default:"*"`

	RedisURL  string `env:"REDIS_URL"`
	StatsFile string `env:"STATS_FILE" env-default:"stats.json"`

	HTTPClientSettings HTTPClientSettings
	Storage            core.StorageInterface
	Logger             core.Logger
}

// HTTPClientSettings HTTP client configuration
type HTTPClientSettings struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration
	RequestTimeout      time.Duration
}

// DefaultHTTPClientSettings default HTTP client settings
func DefaultHTTPClientSettings() HTTPClientSettings {
	return HTTPClientSettings{
		MaxIdleConns:        core.HTTPMaxIdleConns,
		MaxIdleConnsPerHost: core.HTTPMaxIdleConnsPerHost,
		MaxConnsPerHost:     core.HTTPMaxConnsPerHost,
		IdleConnTimeout:     core.HTTPIdleConnTimeout,
		TLSHandshakeTimeout: core.HTTPTLSHandshakeTimeout,
		RequestTimeout:      core.HTTPRequestTimeout,
	}
}

// LoadServerConfigFromEnv loads server config from environment variables
func LoadServerConfigFromEnv(logger core.Logger) (ServerConfig, error) {
	var config ServerConfig
	if err := cleanenv.ReadEnv(&config); err != nil {
		return config, fmt.Errorf("failed to read environment: %w", err)
	}
	config.HTTPClientSettings = DefaultHTTPClientSettings()

	if err := config.normalize(logger); err != nil {
		return config, err
	}

	if config.APIKey == "" {
		logger.Warn("OPENROUTER_API_KEY environment variable is empty, upstream calls will be rejected")
	} else {
		logger.Info("Upstream API key loaded")
	}
	logger.Info("Upstream base URL: %s", config.UpstreamBaseURL)

	return config, nil
}

func (c *ServerConfig) normalize(logger core.Logger) error {
	if c.Port == "" {
		c.Port = core.DefaultPort
	}
	if c.GinMode == "" {
		c.GinMode = core.DefaultGinMode
	}
	if c.FanoutConcurrency < 1 {
		logger.Warn("Invalid FANOUT_MAX_CONCURRENCY %d, using default %d", c.FanoutConcurrency, core.DefaultFanoutConcurrency)
		c.FanoutConcurrency = core.DefaultFanoutConcurrency
	}
	if c.PromptHistorySize < 1 {
		logger.Warn("Invalid PROMPT_HISTORY_SIZE %d, using default %d", c.PromptHistorySize, core.DefaultHistorySize)
		c.PromptHistorySize = core.DefaultHistorySize
	}
	if c.ModelsCacheTTL < 0 {
		c.ModelsCacheTTL = 0
	}

	u, err := url.Parse(c.UpstreamBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid UPSTREAM_BASE_URL %q", c.UpstreamBaseURL)
	}
	return nil
}
